// Package pbwt implements the Positional Burrows-Wheeler Transform
// update step: given a prefix array, a divergence array, and the
// current marker's allele function, produce updated arrays for the
// next marker, forward or backward.
package pbwt

import "math"

// AlleleFunc returns the allele carried by haplotype hap at the
// current marker. Implementations must be side-effect free and O(1).
type AlleleFunc func(hap int32) int8

// State holds the prefix array a and divergence array d for a PBWT
// window, owned exclusively by one worker.
type State struct {
	A []int32
	D []int32

	// scratch is reused across calls to avoid per-marker allocation,
	// in the same caller-owned, Reset()-able style as
	// ShardedBAMCompressor.uncompressed.
	scratch Scratch
}

// Scratch holds the per-allele bucket buffers reused by UpdateForward
// and UpdateBackward. Callers that run both a forward and a backward
// pass concurrently (Seed Finder) must give each pass
// its own Scratch.
type Scratch struct {
	buckets   [][]int32
	divBucket [][]int32
}

// NewState creates a State over nHaps haplotypes with the identity
// prefix array and an all-zero divergence array, the state before the
// first forward marker (marker 0) has been processed.
func NewState(nHaps int) *State {
	s := &State{A: make([]int32, nHaps), D: make([]int32, nHaps)}
	for i := range s.A {
		s.A[i] = int32(i)
	}
	return s
}

func (s *Scratch) ensure(k int) {
	if cap(s.buckets) < k {
		s.buckets = make([][]int32, k)
		s.divBucket = make([][]int32, k)
	}
	s.buckets = s.buckets[:k]
	s.divBucket = s.divBucket[:k]
	for i := 0; i < k; i++ {
		s.buckets[i] = s.buckets[i][:0]
		s.divBucket[i] = s.divBucket[i][:0]
	}
}

// UpdateForward advances s from marker m-1 to marker m, given the
// allele function for marker m and the number of distinct alleles k.
// This implements the Durbin (2014) PBWT update, generalized from a
// biallelic to a k-allele encoding.
func (s *State) UpdateForward(m int32, k int, allele AlleleFunc) {
	s.scratch.ensure(k)
	n := len(s.A)
	p := make([]int32, k)
	for j := range p {
		p[j] = m + 1
	}

	for i := 0; i < n; i++ {
		h := s.A[i]
		a := allele(h)
		if i > 0 {
			d := s.D[i]
			for j := range p {
				if d > p[j] {
					p[j] = d
				}
			}
		}
		s.scratch.buckets[a] = append(s.scratch.buckets[a], h)
		s.scratch.divBucket[a] = append(s.scratch.divBucket[a], p[a])
		p[a] = math.MinInt32
	}

	s.concat()
}

// UpdateBackward is the symmetric backward update: it tracks minima
// and uses +infinity as the reset sentinel
func (s *State) UpdateBackward(m int32, k int, allele AlleleFunc) {
	s.scratch.ensure(k)
	n := len(s.A)
	p := make([]int32, k)
	for j := range p {
		p[j] = m - 1
	}

	for i := 0; i < n; i++ {
		h := s.A[i]
		a := allele(h)
		if i > 0 {
			d := s.D[i]
			for j := range p {
				if d < p[j] {
					p[j] = d
				}
			}
		}
		s.scratch.buckets[a] = append(s.scratch.buckets[a], h)
		s.scratch.divBucket[a] = append(s.scratch.divBucket[a], p[a])
		p[a] = math.MaxInt32
	}

	s.concat()
}

func (s *State) concat() {
	n := len(s.A)
	idx := 0
	for b := range s.scratch.buckets {
		for j, h := range s.scratch.buckets[b] {
			s.A[idx] = h
			s.D[idx] = s.scratch.divBucket[b][j]
			idx++
		}
	}
	if idx != n {
		panic("pbwt: bucket sizes did not sum to n_haps")
	}
}

// Clone returns a deep copy of s, used when a worker needs to run
// independent forward/backward passes starting from the same
// boundary state without the passes interfering.
func (s *State) Clone() *State {
	c := &State{
		A: make([]int32, len(s.A)),
		D: make([]int32, len(s.D)),
	}
	copy(c.A, s.A)
	copy(c.D, s.D)
	return c
}
