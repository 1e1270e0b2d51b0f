package extend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/bio-ibdhbd/internal/genomic"
	"github.com/grailbio/bio-ibdhbd/internal/seedfinder"
)

func pos(idx int32) genomic.Marker {
	return genomic.Marker{Chrom: 7, BP: int32(idx) * 1000, CM: float64(idx)}
}

func TestMergeAttachesBothSides(t *testing.T) {
	idx := NewExtensionIndex()
	idx.Add(seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 5, MarkerEnd: 9})
	idx.Add(seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 15, MarkerEnd: 20})
	idx.Freeze()

	m := NewMerger(idx, pos, 5000)
	seed := seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 10, MarkerEnd: 12}
	seg := m.Merge(seed)

	assert.Equal(t, int32(5), seg.MarkerStart)
	assert.Equal(t, int32(20), seg.MarkerEnd)
}

func TestMergeRespectsMaxGap(t *testing.T) {
	idx := NewExtensionIndex()
	// GapTo from MarkerEnd(12)=12000 to MarkerStart(20)=20000 is 7999 bp.
	idx.Add(seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 20, MarkerEnd: 25})
	idx.Freeze()

	m := NewMerger(idx, pos, 1000)
	seed := seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 10, MarkerEnd: 12}
	seg := m.Merge(seed)

	assert.Equal(t, int32(10), seg.MarkerStart)
	assert.Equal(t, int32(12), seg.MarkerEnd)
}

func TestMergeDisabledByNegativeMaxGap(t *testing.T) {
	idx := NewExtensionIndex()
	idx.Add(seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 13, MarkerEnd: 14})
	idx.Freeze()

	m := NewMerger(idx, pos, -1)
	seed := seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 10, MarkerEnd: 12}
	seg := m.Merge(seed)

	assert.Equal(t, seed.MarkerStart, seg.MarkerStart)
	assert.Equal(t, seed.MarkerEnd, seg.MarkerEnd)
}

func TestMergeDoesNotReuseExtension(t *testing.T) {
	idx := NewExtensionIndex()
	idx.Add(seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 13, MarkerEnd: 14})
	idx.Freeze()

	m := NewMerger(idx, pos, 10000)
	seed1 := seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 10, MarkerEnd: 12}
	seg1 := m.Merge(seed1)
	assert.Equal(t, int32(14), seg1.MarkerEnd)

	seed2 := seedfinder.Seed{Hap1: 0, Hap2: 1, MarkerStart: 5, MarkerEnd: 9}
	seg2 := m.Merge(seed2)
	assert.Equal(t, int32(9), seg2.MarkerEnd) // the only candidate was already used
}

func TestClassifyHBDRequiresSameSampleDifferentSide(t *testing.T) {
	// Hap 0 and Hap 1 are both sides of sample 0: HBD.
	seg := Segment{Hap1: 0, Hap2: 1, MarkerStart: 0, MarkerEnd: 4}
	out := Classify(seg, pos)
	assert.True(t, out.HBD)
	assert.Equal(t, out.Sample1, out.Sample2)

	// Hap 0 (sample 0) and Hap 2 (sample 1): IBD, not HBD.
	seg2 := Segment{Hap1: 0, Hap2: 2, MarkerStart: 0, MarkerEnd: 4}
	out2 := Classify(seg2, pos)
	assert.False(t, out2.HBD)
}

func TestPassesMinOutput(t *testing.T) {
	seg := Segment{Hap1: 0, Hap2: 2, MarkerStart: 0, MarkerEnd: 4}
	out := Classify(seg, pos)
	assert.True(t, out.PassesMinOutput(4.0))
	assert.False(t, out.PassesMinOutput(4.1))
}

func TestDedupRejectsRepeatedTuple(t *testing.T) {
	d := NewDedup()
	assert.True(t, d.TryClaim(3, 7, 100, 200))
	assert.False(t, d.TryClaim(7, 3, 100, 200)) // reverse order, same canonical pair
	assert.True(t, d.TryClaim(3, 7, 100, 300))  // different bp range is distinct
}
