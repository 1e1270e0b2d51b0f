// Package seedfinder drives the PBWT engine across a marker window
// and, at every marker, enumerates every haplotype pair whose maximal
// IBS match ends exactly at that marker. The exact
// inner-loop shape is deliberately not pinned down; this
// package implements the behavioral contract (every maximal match
// above threshold reported exactly once) via a direct divide-and-
// conquer over the divergence array's implied "tree of ancestors",
// rather than the more elaborate block-merge inner loop a production
// PBWT implementation would use.
package seedfinder

import (
	"github.com/grailbio/bio-ibdhbd/internal/genomic"
	"github.com/grailbio/bio-ibdhbd/internal/pbwt"
)

// Seed is one reported maximal IBS match.
type Seed struct {
	Hap1, Hap2         int32
	MarkerStart, MarkerEnd int32
	CMLength           float64
}

// Thresholds bundles the length requirements a candidate match must
// clear to be reported, shared by both the seed pass (min-seed,
// min-markers) and the extension pass (min-extend, the scaled
// min-markers)
type Thresholds struct {
	MinCM      float64
	MinMarkers int
}

// MarkerPos resolves a window-local marker index to its genomic
// position, used to convert marker-index divergence into cM length
// and to canonicalize out-of-window sentinel divergences.
type MarkerPos func(idx int32) genomic.Marker

// Finder drives one forward (or backward) PBWT pass across a window
// of markers and reports seeds via a callback, so the caller (the
// per-window worker) can batch them without this package owning an
// output channel.
type Finder struct {
	state      *pbwt.State
	thresholds Thresholds
	windowLo   int32 // first valid marker index in the window (forward sentinel clamp)
	windowHi   int32 // last valid marker index in the window (backward sentinel clamp)
}

// New creates a Finder over nHaps haplotypes for the given thresholds.
// windowLo and windowHi bound the marker range this Finder's state
// has actually seen: no match is reported as ending outside them, the
// backward pass starts from windowHi, and a match start that falls
// outside them is clamped to a position that MarkerPos can actually
// resolve. A caller
// that drives this Finder across a sub-range of a larger chromosome
// (rather than the whole thing) must still pass the true chromosome
// bounds here, not its own sub-range: clamping to a sub-range edge
// would silently truncate any match whose real divergence lies
// further back than that edge, rather than only at a genuine
// chromosome boundary.
func New(nHaps int, windowLo, windowHi int32, th Thresholds) *Finder {
	return &Finder{state: pbwt.NewState(nHaps), thresholds: th, windowLo: windowLo, windowHi: windowHi}
}

// State exposes the underlying PBWT state, e.g. so a caller can Clone
// it to fork an independent backward pass from the same boundary.
func (f *Finder) State() *pbwt.State { return f.state }

// StepForward advances the PBWT state from marker idx-1 to idx and
// reports every seed whose match terminates exactly at idx-1 (i.e.
// straddles the update just performed), into emit. k is the number of
// distinct alleles at marker idx, pos gives marker positions for cM
// conversion, and allele is the per-haplotype allele function for
// marker idx.
//
// Detection happens BEFORE the bucket-sort update, using the old
// prefix/divergence arrays (valid through idx-1) plus the new
// marker's allele assignment: any pair (x, y), old-array positions
// x<y, whose current allele differs terminates its match at idx-1,
// with start = max(d[x+1..y]).
func (f *Finder) StepForward(idx int32, k int, allele pbwt.AlleleFunc, pos MarkerPos, emit func(Seed)) {
	n := len(f.state.A)
	curAllele := make([]int8, n)
	for i, h := range f.state.A {
		curAllele[i] = allele(h)
	}
	differs := func(x, y int) bool { return curAllele[x] != curAllele[y] }

	endMarker := idx - 1
	if endMarker >= f.windowLo && n > 0 {
		f.reportBreaks(0, n-1, differs, endMarker, pos, emit)
	}

	f.state.UpdateForward(idx, k, allele)
}

// Finish reports every haplotype pair still matching in the current
// state as terminating at lastMarker: a match still open when a
// window's data runs out is maximal by construction (there is no
// further marker to test against), so every remaining adjacent/cross
// pair qualifies unconditionally, unlike the mid-stream StepForward
// case which only reports pairs whose alleles actually diverge.
func (f *Finder) Finish(lastMarker int32, pos MarkerPos, emit func(Seed)) {
	n := len(f.state.A)
	if n == 0 {
		return
	}
	f.reportBreaks(0, n-1, func(int, int) bool { return true }, lastMarker, pos, emit)
}

// FinishBackward is Finish's mirror for the backward pass.
func (f *Finder) FinishBackward(firstMarker int32, pos MarkerPos, emit func(Seed)) {
	n := len(f.state.A)
	if n == 0 {
		return
	}
	f.reportBreaksBackward(0, n-1, func(int, int) bool { return true }, firstMarker, pos, emit)
}

// StepBackward is StepForward's mirror for the backward pass used to
// generate extension candidates: it advances from
// marker idx+1 down to idx and reports matches terminating at idx+1.
func (f *Finder) StepBackward(idx int32, k int, allele pbwt.AlleleFunc, pos MarkerPos, emit func(Seed)) {
	if idx == f.windowHi {
		// First backward step: every pair matches over the empty range
		// beyond windowHi, the mirror of the forward pass's all-zero start.
		for i := range f.state.D {
			f.state.D[i] = f.windowHi
		}
	}
	n := len(f.state.A)
	curAllele := make([]int8, n)
	for i, h := range f.state.A {
		curAllele[i] = allele(h)
	}
	differs := func(x, y int) bool { return curAllele[x] != curAllele[y] }

	endMarker := idx + 1
	if endMarker <= f.windowHi && n > 0 {
		f.reportBreaksBackward(0, n-1, differs, endMarker, pos, emit)
	}

	f.state.UpdateBackward(idx, k, allele)
}

// reportBreaks implements the recursive divide-and-conquer described
// in the package doc: split [lo,hi] at the position of maximum
// interior divergence, recurse on both halves, then emit every cross
// pair whose endpoints carry different current alleles, using the
// split's divergence value as their shared match start. This is
// correct because any x<split<=y has [x+1,y] containing split, and
// the split value is the max over the whole [lo+1,hi] range, so it is
// also the max (and hence the true common divergence) over [x+1,y].
func (f *Finder) reportBreaks(lo, hi int, differs func(x, y int) bool, endMarker int32, pos MarkerPos, emit func(Seed)) {
	if lo >= hi {
		return
	}
	d := f.state.D
	a := f.state.A
	splitIdx := lo + 1
	maxD := d[lo+1]
	for i := lo + 2; i <= hi; i++ {
		if d[i] > maxD {
			maxD = d[i]
			splitIdx = i
		}
	}

	f.reportBreaks(lo, splitIdx-1, differs, endMarker, pos, emit)
	f.reportBreaks(splitIdx, hi, differs, endMarker, pos, emit)

	start := maxD
	if start < f.windowLo {
		start = f.windowLo
	}
	if endMarker-start+1 < int32(f.thresholds.MinMarkers) {
		return
	}
	cmLen := pos(endMarker).CM - pos(start).CM
	if cmLen < f.thresholds.MinCM {
		return
	}
	for x := lo; x < splitIdx; x++ {
		for y := splitIdx; y <= hi; y++ {
			if !differs(x, y) {
				continue
			}
			h1, h2 := genomic.CanonPair(a[x], a[y])
			emit(Seed{Hap1: h1, Hap2: h2, MarkerStart: start, MarkerEnd: endMarker, CMLength: cmLen})
		}
	}
}

// reportBreaksBackward mirrors reportBreaks for the backward pass,
// where divergence values decrease away from the current marker and
// the relevant endMarker is idx+1 (the backward
// update: sentinel is +infinity, tracking minima).
func (f *Finder) reportBreaksBackward(lo, hi int, differs func(x, y int) bool, endMarker int32, pos MarkerPos, emit func(Seed)) {
	if lo >= hi {
		return
	}
	d := f.state.D
	a := f.state.A
	splitIdx := lo + 1
	minD := d[lo+1]
	for i := lo + 2; i <= hi; i++ {
		if d[i] < minD {
			minD = d[i]
			splitIdx = i
		}
	}

	f.reportBreaksBackward(lo, splitIdx-1, differs, endMarker, pos, emit)
	f.reportBreaksBackward(splitIdx, hi, differs, endMarker, pos, emit)

	start := minD
	if start > f.windowHi {
		start = f.windowHi
	}
	if start-endMarker+1 < int32(f.thresholds.MinMarkers) {
		return
	}
	cmLen := pos(start).CM - pos(endMarker).CM
	if cmLen < f.thresholds.MinCM {
		return
	}
	for x := lo; x < splitIdx; x++ {
		for y := splitIdx; y <= hi; y++ {
			if !differs(x, y) {
				continue
			}
			h1, h2 := genomic.CanonPair(a[x], a[y])
			emit(Seed{Hap1: h1, Hap2: h2, MarkerStart: endMarker, MarkerEnd: start, CMLength: cmLen})
		}
	}
}

// ExtendThresholds derives the extension-candidate thresholds from
// the seed thresholds: min-extend cM and
// ceil((min-seed/min-extend)*min-markers) markers.
func ExtendThresholds(minSeedCM, minExtendCM float64, minMarkers int) Thresholds {
	markers := int(minSeedCM / minExtendCM * float64(minMarkers))
	if float64(markers) < minSeedCM/minExtendCM*float64(minMarkers) {
		markers++
	}
	if markers < 1 {
		markers = 1
	}
	return Thresholds{MinCM: minExtendCM, MinMarkers: markers}
}
