package pbwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStateIdentityPrefix(t *testing.T) {
	s := NewState(4)
	assert.Equal(t, []int32{0, 1, 2, 3}, s.A)
	assert.Equal(t, 4, len(s.D))
}

// allelesOf returns an AlleleFunc backed by a plain slice, indexed by
// haplotype.
func allelesOf(vals []int8) AlleleFunc {
	return func(h int32) int8 { return vals[h] }
}

func TestUpdateForwardGroupsMatchingAlleles(t *testing.T) {
	// Four haplotypes, two alleles (0/1). After one marker, the prefix
	// array should group all 0s before all 1s.
	s := NewState(4)
	alleles := []int8{1, 0, 1, 0}
	s.UpdateForward(0, 2, allelesOf(alleles))

	var group0, group1 []int32
	for _, h := range s.A {
		if alleles[h] == 0 {
			group0 = append(group0, h)
		} else {
			group1 = append(group1, h)
		}
	}
	// group0 entries must all precede group1 entries in s.A.
	seenGroup1 := false
	for _, h := range s.A {
		if alleles[h] == 1 {
			seenGroup1 = true
		} else if seenGroup1 {
			t.Fatalf("allele-0 haplotype found after an allele-1 haplotype in %v", s.A)
		}
	}
	assert.Equal(t, 2, len(group0))
	assert.Equal(t, 2, len(group1))
}

func TestUpdateForwardBackwardAreSymmetricOnConstantColumn(t *testing.T) {
	// A marker where every haplotype carries the same allele should
	// leave the prefix array's relative order untouched, forward or
	// backward.
	s1 := NewState(3)
	same := []int8{1, 1, 1}
	s1.UpdateForward(5, 2, allelesOf(same))
	assert.Equal(t, []int32{0, 1, 2}, s1.A)

	s2 := NewState(3)
	s2.UpdateBackward(5, 2, allelesOf(same))
	assert.Equal(t, []int32{0, 1, 2}, s2.A)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewState(3)
	s.UpdateForward(0, 2, allelesOf([]int8{0, 1, 0}))
	c := s.Clone()
	c.UpdateForward(1, 2, allelesOf([]int8{1, 1, 0}))
	assert.NotEqual(t, s.A, c.A)
}
