package extend

import (
	"github.com/grailbio/bio-ibdhbd/internal/genomic"
	"github.com/grailbio/bio-ibdhbd/internal/seedfinder"
)

// OutputSegment is the serializable output record, after
// merge, dedup, and HBD/IBD classification.
type OutputSegment struct {
	Sample1, Sample2 int32
	Side1, Side2     int32 // 0 or 1; serialized as 1 or 2
	Chrom            int32
	BPStart, BPEnd   int32
	CMLength         float64
	HBD              bool
}

// Classify converts a merged Segment into an OutputSegment. Because
// Segment.Hap1 < Segment.Hap2 and
// hap = 2*sample+side, (sample1,side1) is already lexicographically
// <= (sample2,side2), so no further reordering is needed.
func Classify(seg Segment, pos seedfinder.MarkerPos) OutputSegment {
	s1, side1 := genomic.HapSample(seg.Hap1), genomic.HapSide(seg.Hap1)
	s2, side2 := genomic.HapSample(seg.Hap2), genomic.HapSide(seg.Hap2)
	start := pos(seg.MarkerStart)
	end := pos(seg.MarkerEnd)
	return OutputSegment{
		Sample1: s1, Side1: side1, Sample2: s2, Side2: side2,
		Chrom: start.Chrom, BPStart: start.BP, BPEnd: end.BP,
		CMLength: end.CM - start.CM,
		HBD:      s1 == s2 && side1 != side2,
	}
}

// PassesMinOutput reports whether o clears the min-output cM filter.
func (o OutputSegment) PassesMinOutput(minOutput float64) bool {
	return o.CMLength >= minOutput
}
