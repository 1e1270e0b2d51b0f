// Package genomic holds the immutable Marker type and the small
// position/range comparison helpers the rest of the engine shares,
// adapted from biopb.Coord/CoordRange's comparison-method idiom.
package genomic

// Marker is one genomic variant position, immutable for the lifetime
// of the chromosome's analysis.
type Marker struct {
	Chrom    int32   // interned chromosome id
	BP       int32   // base-pair position
	CM       float64 // genetic position, centimorgans
	NAlleles int     // >= 1
}

// Compare returns <0, 0, >0 if m sorts before, at, or after m1,
// ordering first by chromosome then by base-pair position, mirroring
// biopb.Coord.Compare's (RefId, Pos, Seq) lexicographic ordering.
func (m Marker) Compare(m1 Marker) int {
	if m.Chrom != m1.Chrom {
		return int(m.Chrom - m1.Chrom)
	}
	if m.BP != m1.BP {
		return int(m.BP - m1.BP)
	}
	return 0
}

// LE reports whether m sorts at or before m1.
func (m Marker) LE(m1 Marker) bool { return m.Compare(m1) <= 0 }

// BPRange returns m's position as the unit-length half-open interval
// [BP, BP+1), so callers can use GapTo to test attachability against
// another marker without repeating the bp arithmetic.
func (m Marker) BPRange() BPRange { return BPRange{Start: m.BP, Limit: m.BP + 1} }

// BPRange is a half-open [Start, Limit) base-pair interval, used by
// the Extender to test max-gap attachability.
type BPRange struct {
	Start, Limit int32
}

// GapTo returns the base-pair distance between r and r1 when they are
// disjoint (the gap an extension must bridge), or 0 if they overlap
// or touch.
func (r BPRange) GapTo(r1 BPRange) int32 {
	if r.Limit <= r1.Start {
		return r1.Start - r.Limit
	}
	if r1.Limit <= r.Start {
		return r.Start - r1.Limit
	}
	return 0
}

// HapSample returns the sample index for haplotype index h (h >> 1).
func HapSample(h int32) int32 { return h >> 1 }

// HapSide returns the within-sample side (0 or 1) for haplotype index h.
func HapSide(h int32) int32 { return h & 1 }

// CanonPair reorders (a, b) so the lower haplotype index comes first,
// matching the canonical ordering used throughout.
func CanonPair(a, b int32) (int32, int32) {
	if a < b {
		return a, b
	}
	return b, a
}
