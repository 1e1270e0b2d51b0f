// Package extend implements the Extender: attaching flanking
// extension candidates to each seed across base-pair gaps no larger
// than max-gap.
package extend

import (
	"sort"
	"sync"

	"github.com/grailbio/bio-ibdhbd/internal/genomic"
	"github.com/grailbio/bio-ibdhbd/internal/seedfinder"
)

// Segment is a merged seed, before deduplication, length filtering,
// and output classification.
type Segment struct {
	Hap1, Hap2             int32
	MarkerStart, MarkerEnd int32
}

// PairKey canonicalizes a haplotype pair for use as a map key.
type PairKey struct{ Hap1, Hap2 int32 }

// KeyOf builds the canonical PairKey for (h1, h2) in either order.
func KeyOf(h1, h2 int32) PairKey {
	h1, h2 = genomic.CanonPair(h1, h2)
	return PairKey{h1, h2}
}

// ExtensionIndex groups extension candidates (from the backward Seed
// Finder pass) by haplotype pair. A single ExtensionIndex is now built
// once over the whole chromosome (see buildExtensionIndex in
// cmd/ibdhbd) and shared read-and-claim by every window's Merger
// concurrently, so claiming a candidate is mutex-guarded.
type ExtensionIndex struct {
	mu     sync.Mutex
	byPair map[PairKey][]seedfinder.Seed
	used   map[PairKey][]bool
}

// NewExtensionIndex creates an empty index. Add every extension
// candidate for the chromosome, then call Freeze before constructing a
// Merger over it.
func NewExtensionIndex() *ExtensionIndex {
	return &ExtensionIndex{byPair: make(map[PairKey][]seedfinder.Seed)}
}

// Add records one extension candidate.
func (x *ExtensionIndex) Add(s seedfinder.Seed) {
	k := KeyOf(s.Hap1, s.Hap2)
	x.byPair[k] = append(x.byPair[k], s)
}

// Freeze sorts each pair's candidate list by MarkerStart and
// allocates the per-candidate "used" tracking required by the merge
// procedure's "each extension may be used at most once" rule.
func (x *ExtensionIndex) Freeze() {
	x.used = make(map[PairKey][]bool, len(x.byPair))
	for k, list := range x.byPair {
		sort.Slice(list, func(i, j int) bool { return list[i].MarkerStart < list[j].MarkerStart })
		x.used[k] = make([]bool, len(list))
	}
}

// attach finds the closest unclaimed candidate for key attachable to
// [start, end] within maxGap bp on either side, claims it atomically,
// and returns it; ok is false once no attachable candidate remains.
// The gap itself is genomic.BPRange.GapTo between the candidate's and
// the segment boundary's unit-length positions, rather than a raw bp
// subtraction, so the attachability test and BPRange's own unit test
// agree on what "touching" means.
func (x *ExtensionIndex) attach(key PairKey, start, end int32, pos seedfinder.MarkerPos, maxGap int32) (cand seedfinder.Seed, attachRight, ok bool) {
	list := x.byPair[key]
	if len(list) == 0 {
		return seedfinder.Seed{}, false, false
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	used := x.used[key]
	bestIdx := -1
	var bestGap int32
	for i, s := range list {
		if used[i] {
			continue
		}
		switch {
		case s.MarkerStart > end:
			gap := pos(end).BPRange().GapTo(pos(s.MarkerStart).BPRange())
			if gap <= maxGap && (bestIdx == -1 || gap < bestGap) {
				bestIdx, bestGap, attachRight = i, gap, true
			}
		case s.MarkerEnd < start:
			gap := pos(s.MarkerEnd).BPRange().GapTo(pos(start).BPRange())
			if gap <= maxGap && (bestIdx == -1 || gap < bestGap) {
				bestIdx, bestGap, attachRight = i, gap, false
			}
		}
	}
	if bestIdx == -1 {
		return seedfinder.Seed{}, false, false
	}
	used[bestIdx] = true
	return list[bestIdx], attachRight, true
}

// Merger attaches extension candidates to seeds on either side of a
// seed.
type Merger struct {
	ext    *ExtensionIndex
	pos    seedfinder.MarkerPos
	maxGap int32 // -1 disables merging
}

// NewMerger builds a Merger over a frozen ExtensionIndex. pos resolves
// marker indices to genomic positions for gap (bp) checks.
func NewMerger(ext *ExtensionIndex, pos seedfinder.MarkerPos, maxGap int32) *Merger {
	return &Merger{ext: ext, pos: pos, maxGap: maxGap}
}

// Merge repeatedly attaches the closest unattached, attachable
// extension on either side of seed until none remain. max-gap=-1
// disables merging entirely: the seed is returned unchanged.
func (m *Merger) Merge(seed seedfinder.Seed) Segment {
	seg := Segment{Hap1: seed.Hap1, Hap2: seed.Hap2, MarkerStart: seed.MarkerStart, MarkerEnd: seed.MarkerEnd}
	if m.maxGap < 0 {
		return seg
	}
	key := KeyOf(seed.Hap1, seed.Hap2)
	for {
		cand, attachRight, ok := m.ext.attach(key, seg.MarkerStart, seg.MarkerEnd, m.pos, m.maxGap)
		if !ok {
			return seg
		}
		if attachRight {
			seg.MarkerEnd = cand.MarkerEnd
		} else {
			seg.MarkerStart = cand.MarkerStart
		}
	}
}
