package excludeset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSkipsBlankLines(t *testing.T) {
	s, err := Parse(strings.NewReader("sample1\n\nsample2\n   \nsample3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("sample1"))
	assert.True(t, s.Contains("sample2"))
	assert.True(t, s.Contains("sample3"))
	assert.False(t, s.Contains("sample4"))
}

func TestParseRejectsMultiTokenLine(t *testing.T) {
	_, err := Parse(strings.NewReader("sample1 extra\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected one token")
}

func TestParseTrimsWhitespace(t *testing.T) {
	s, err := Parse(strings.NewReader("  sample1  \n"))
	require.NoError(t, err)
	assert.True(t, s.Contains("sample1"))
}

func TestNilSetIsEmptyAndSafe(t *testing.T) {
	var s *Set
	assert.False(t, s.Contains("anything"))
	assert.Equal(t, 0, s.Len())
}

func TestEmptyInputYieldsEmptySet(t *testing.T) {
	s, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}
