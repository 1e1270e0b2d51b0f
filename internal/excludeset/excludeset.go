// Package excludeset parses the excludesamples file: one
// identifier per line, blank lines ignored; a line with two
// non-whitespace tokens is an error.
package excludeset

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Set holds sample identifiers to drop from the analysis.
type Set struct {
	names map[string]bool
}

// Parse reads an excluded-samples file.
func Parse(r io.Reader) (*Set, error) {
	s := &Set{names: make(map[string]bool)}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 1 {
			return nil, errors.Errorf("excludesamples: line %d: expected one token, got %d: %q", lineNo, len(fields), line)
		}
		s.names[fields[0]] = true
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "excludesamples: read")
	}
	return s, nil
}

// Contains reports whether sample is excluded.
func (s *Set) Contains(sample string) bool {
	if s == nil {
		return false
	}
	return s.names[sample]
}

// Len returns the number of excluded samples.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}
