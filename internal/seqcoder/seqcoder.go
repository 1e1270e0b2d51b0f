// Package seqcoder implements the online sequence-coding compressor:
// it maintains a partition of haplotypes
// into classes that share identical alleles across a contiguous run
// of low-MAF markers, and flushes the run as a shared hap2seq map
// plus one seq2allele map per accepted marker.
package seqcoder

import (
	"math"

	"github.com/grailbio/bio-ibdhbd/internal/genomic"
)

// MaxClasses computes the maxNSeq cap:
// min(floor(2^(2*log10(n_samples)+1)), 32767).
func MaxClasses(nSamples int) int {
	if nSamples <= 0 {
		return 1
	}
	v := math.Floor(math.Pow(2, 2*math.Log10(float64(nSamples))+1))
	if v > 32767 || math.IsInf(v, 1) {
		return 32767
	}
	return int(v)
}

// FlushedMarker is one accepted marker's sequence-coded column.
type FlushedMarker struct {
	Marker     genomic.Marker
	Seq2Allele []int8 // indexed by sequence class id
}

// Coder maintains the growing equivalence partition over one
// contiguous run of markers. A Coder is not safe for concurrent use;
// each Variant Stream owns one Coder and drives it sequentially from
// its ingest step, after the parallel line decoding.
type Coder struct {
	nHaps     int
	maxNSeq   int
	hap2seq   []int32
	nextClass int32

	pending []pendingMarker
}

type pendingMarker struct {
	marker genomic.Marker
	allele []int8
}

// New creates a Coder for a run over nHaps haplotypes, capped at
// maxNSeq distinct sequence classes.
func New(nHaps, maxNSeq int) *Coder {
	c := &Coder{nHaps: nHaps, maxNSeq: maxNSeq}
	c.reset()
	return c
}

func (c *Coder) reset() {
	c.hap2seq = make([]int32, c.nHaps)
	c.nextClass = 1
	c.pending = nil
}

// TryAccept attempts to fold marker's allele column (indexed by
// haplotype) into the run. It returns false, leaving all persistent
// state untouched, if doing so would push the number of sequence
// classes above maxNSeq.
//
// Unlike a snapshot-then-rollback approach, this
// implementation builds the candidate partition into a fresh slice
// and only installs it on acceptance; a rejected column therefore
// never needs an undo step, which is behaviorally equivalent to a
// rollback but avoids keeping a second copy of hap2seq around.
func (c *Coder) TryAccept(marker genomic.Marker, allele []int8) bool {
	// Group haplotypes by (current class, allele) to find, per class,
	// the majority allele that inherits the class's id.
	type classAlleles struct {
		counts  map[int8]int
		members map[int8][]int32
	}
	byClass := make(map[int32]*classAlleles)
	for h := 0; h < c.nHaps; h++ {
		s := c.hap2seq[h]
		ca, ok := byClass[s]
		if !ok {
			ca = &classAlleles{counts: map[int8]int{}, members: map[int8][]int32{}}
			byClass[s] = ca
		}
		a := allele[h]
		ca.counts[a]++
		ca.members[a] = append(ca.members[a], int32(h))
	}

	newHap2Seq := make([]int32, c.nHaps)
	nextClass := c.nextClass
	numClasses := int32(0)
	for parent, ca := range byClass {
		major := majorityAllele(ca.counts)
		for _, h := range ca.members[major] {
			newHap2Seq[h] = parent
		}
		numClasses++
		for a, members := range ca.members {
			if a == major {
				continue
			}
			id := nextClass
			nextClass++
			numClasses++
			for _, h := range members {
				newHap2Seq[h] = id
			}
		}
	}

	if int(numClasses) > c.maxNSeq {
		return false
	}

	c.hap2seq = newHap2Seq
	c.nextClass = nextClass
	stored := make([]int8, c.nHaps)
	copy(stored, allele)
	c.pending = append(c.pending, pendingMarker{marker: marker, allele: stored})
	return true
}

// majorityAllele returns the allele with the most members, breaking
// ties by smallest allele value for determinism across map iteration
// order.
func majorityAllele(counts map[int8]int) int8 {
	best := int8(math.MaxInt8)
	bestCount := -1
	for a, n := range counts {
		if n > bestCount || (n == bestCount && a < best) {
			best = a
			bestCount = n
		}
	}
	return best
}

// Flush emits the accumulated run as one FlushedMarker per accepted
// marker, sharing the final hap2seq partition, and resets the Coder
// for the next run.
func (c *Coder) Flush() (hap2seq []int32, markers []FlushedMarker) {
	nClasses := int(c.nextClass)
	representative := make([]int32, nClasses)
	for i := range representative {
		representative[i] = -1
	}
	for h, s := range c.hap2seq {
		if representative[s] == -1 {
			representative[s] = int32(h)
		}
	}

	markers = make([]FlushedMarker, len(c.pending))
	for i, pm := range c.pending {
		s2a := make([]int8, nClasses)
		for cls := 0; cls < nClasses; cls++ {
			rep := representative[cls]
			if rep == -1 {
				continue
			}
			s2a[cls] = pm.allele[rep]
		}
		markers[i] = FlushedMarker{Marker: pm.marker, Seq2Allele: s2a}
	}

	hap2seq = make([]int32, c.nHaps)
	copy(hap2seq, c.hap2seq)

	c.reset()
	return hap2seq, markers
}

// Len returns the number of markers accepted into the current,
// not-yet-flushed run.
func (c *Coder) Len() int { return len(c.pending) }
