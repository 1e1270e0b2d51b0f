// Package ibderrors declares the fatal-error taxonomy shared by every
// component of the IBD/HBD engine and the shared cancellation latch
// used to unwind the worker pool on the first error.
package ibderrors

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Kind classifies a fatal error so that the CLI front-end can decide
// how to report it without string-matching the message.
type Kind int

const (
	// Config covers CLI parse/validation errors.
	Config Kind = iota
	// Io covers file-open, read, write, or compression errors.
	Io
	// Format covers malformed variant records or map lines.
	Format
	// Constraint covers unphased/missing genotypes, inconsistent
	// allele counts, mid-stream chromosome changes, and missing map
	// coverage.
	Constraint
	// Capacity covers exceeding the marker-count or sequence-class
	// limits.
	Capacity
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Io:
		return "io"
	case Format:
		return "format"
	case Constraint:
		return "constraint"
	case Capacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Error is a fatal, categorized error. It wraps errors.E's behavior
// (the errors.E(err, "context:", value) pattern) with a
// Kind so the CLI can pick an exit path.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a Kind-tagged Error the way markduplicates/metrics.go
// builds plain errors with errors.E(err, "context:", value): the
// variadic args are formatted and wrapped around err.
func E(kind Kind, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: errors.E(args...)}
}

// UnphasedOrMissing reports a Constraint error for a genotype that is
// not fully phased or carries a missing allele.
func UnphasedOrMissing(sample string, marker string) *Error {
	return E(Constraint, fmt.Sprintf("unphased or missing genotype: sample=%s marker=%s", sample, marker))
}

// Once is the shared first-error latch used by the Variant Stream
// reader and the Seed Finder/Extender workers (the output writer keeps
// its own first error), grounded on
// markduplicates/mark_duplicates.go's use of errors.Once to collect
// the first fatal error while still draining remaining goroutines.
type Once struct {
	inner errors.Once
}

// Set records err as the first error seen, if any. Subsequent calls
// after the first non-nil error are no-ops, matching errors.Once's
// contract.
func (o *Once) Set(err error) {
	o.inner.Set(err)
}

// Err returns the first error recorded, or nil.
func (o *Once) Err() error {
	return o.inner.Err()
}
