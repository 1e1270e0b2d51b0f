package seedfinder

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/bio-ibdhbd/internal/genomic"
)

// matrix is markers x haplotypes; matrix[m][h] is the allele carried
// by haplotype h at marker m.
var matrix = [][]int8{
	{0, 0, 1, 1},
	{0, 0, 1, 0},
	{0, 1, 1, 0},
	{0, 1, 0, 0},
	{1, 1, 0, 0},
	{1, 1, 0, 1},
}

func testPos(idx int32) genomic.Marker {
	return genomic.Marker{Chrom: 0, BP: int32(idx) * 100, CM: float64(idx)}
}

type oracleSeed struct {
	h1, h2     int32
	start, end int32
}

// bruteForce computes, for every haplotype pair, every maximal run of
// marker-by-marker allele agreement: the ground truth a correct
// Finder must reproduce exactly (as a multiset, once both sides are
// canonicalized and sorted).
func bruteForce(m [][]int8, th Thresholds) []oracleSeed {
	nHaps := len(m[0])
	nMarkers := len(m)
	var out []oracleSeed
	for h1 := int32(0); h1 < int32(nHaps); h1++ {
		for h2 := h1 + 1; h2 < int32(nHaps); h2++ {
			i := 0
			for i < nMarkers {
				if m[i][h1] != m[i][h2] {
					i++
					continue
				}
				start := i
				for i < nMarkers && m[i][h1] == m[i][h2] {
					i++
				}
				end := i - 1
				cmLen := testPos(int32(end)).CM - testPos(int32(start)).CM
				if int32(end-start+1) < int32(th.MinMarkers) {
					continue
				}
				if cmLen < th.MinCM {
					continue
				}
				out = append(out, oracleSeed{h1, h2, int32(start), int32(end)})
			}
		}
	}
	return out
}

func runForward(m [][]int8, th Thresholds) []Seed {
	nHaps := len(m[0])
	nMarkers := len(m)
	f := New(nHaps, 0, int32(nMarkers-1), th)
	var seeds []Seed
	collect := func(s Seed) { seeds = append(seeds, s) }
	for i := 0; i < nMarkers; i++ {
		row := m[i]
		allele := func(h int32) int8 { return row[h] }
		f.StepForward(int32(i), 2, allele, testPos, collect)
	}
	f.Finish(int32(nMarkers-1), testPos, collect)
	return seeds
}

func normalize(seeds []Seed) []oracleSeed {
	out := make([]oracleSeed, len(seeds))
	for i, s := range seeds {
		out[i] = oracleSeed{s.Hap1, s.Hap2, s.MarkerStart, s.MarkerEnd}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].h1 != out[j].h1 {
			return out[i].h1 < out[j].h1
		}
		if out[i].h2 != out[j].h2 {
			return out[i].h2 < out[j].h2
		}
		return out[i].start < out[j].start
	})
	return out
}

func TestForwardPassMatchesBruteForce(t *testing.T) {
	th := Thresholds{MinCM: 0, MinMarkers: 1}
	got := normalize(runForward(matrix, th))
	want := bruteForce(matrix, th)
	sort.Slice(want, func(i, j int) bool {
		if want[i].h1 != want[j].h1 {
			return want[i].h1 < want[j].h1
		}
		if want[i].h2 != want[j].h2 {
			return want[i].h2 < want[j].h2
		}
		return want[i].start < want[j].start
	})
	assert.Equal(t, want, got)
}

func TestThresholdsFilterShortMatches(t *testing.T) {
	th := Thresholds{MinCM: 3, MinMarkers: 1}
	got := normalize(runForward(matrix, th))
	for _, s := range got {
		assert.True(t, testPos(s.end).CM-testPos(s.start).CM >= 3)
	}
	// At least one short run from the brute-force (unfiltered) result
	// must have been dropped.
	unfiltered := bruteForce(matrix, Thresholds{MinCM: 0, MinMarkers: 1})
	assert.True(t, len(unfiltered) > len(got))
}

func TestFinishReportsOpenMatchAtWindowEnd(t *testing.T) {
	// Two haplotypes that never diverge: the only possible report is
	// from Finish, since StepForward never sees a differing allele.
	m := [][]int8{{0, 0}, {1, 1}, {0, 0}}
	th := Thresholds{MinCM: 0, MinMarkers: 1}
	seeds := runForward(m, th)
	assert.Equal(t, 1, len(seeds))
	assert.Equal(t, int32(0), seeds[0].MarkerStart)
	assert.Equal(t, int32(2), seeds[0].MarkerEnd)
}

func TestExtendThresholdsScalesMarkerCount(t *testing.T) {
	th := ExtendThresholds(4.0, 1.0, 2)
	assert.Equal(t, 1.0, th.MinCM)
	assert.Equal(t, 8, th.MinMarkers)

	th2 := ExtendThresholds(2.0, 1.5, 1)
	assert.Equal(t, 2, th2.MinMarkers) // ceil(2/1.5*1) = ceil(1.33) = 2
}
