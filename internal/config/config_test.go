package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequiredFields(t *testing.T) {
	c, err := Parse([]string{"gt=in.vcf.gz", "map=genetic.map", "out=out.tsv.gz"})
	require.NoError(t, err)
	assert.Equal(t, "in.vcf.gz", c.GT)
	assert.Equal(t, "genetic.map", c.Map)
	assert.Equal(t, "out.tsv.gz", c.Out)
	assert.Equal(t, "", c.ExcludeSamples)
}

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]string{"gt=in.vcf.gz", "map=genetic.map", "out=out.tsv.gz"})
	require.NoError(t, err)
	assert.Equal(t, defaultMinSeed, c.MinSeed)
	assert.Equal(t, int32(defaultMaxGap), c.MaxGap)
	assert.Equal(t, defaultMinOutput, c.MinOutput)
	assert.Equal(t, defaultMinMarkers, c.MinMarkers)
	assert.Equal(t, defaultMinMAC, c.MinMAC)
	assert.True(t, c.NThreads >= 1)
}

func TestMinExtendDefaultsFromMinSeed(t *testing.T) {
	// min-seed below 1.0: min-extend defaults to min-seed.
	c, err := Parse([]string{"gt=g", "map=m", "out=o", "min-seed=0.5"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, c.MinExtend)

	// min-seed above 1.0: min-extend is capped at 1.0.
	c2, err := Parse([]string{"gt=g", "map=m", "out=o", "min-seed=3.0"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, c2.MinExtend)

	// explicit min-extend overrides the derived default entirely.
	c3, err := Parse([]string{"gt=g", "map=m", "out=o", "min-seed=3.0", "min-extend=2.5"})
	require.NoError(t, err)
	assert.Equal(t, 2.5, c3.MinExtend)
}

func TestParseRejectsUnknownToken(t *testing.T) {
	_, err := Parse([]string{"gt=g", "map=m", "out=o", "bogus=1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown token: bogus")
}

func TestParseRejectsMalformedToken(t *testing.T) {
	_, err := Parse([]string{"gt=g", "map=m", "out=o", "no-equals-sign"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a name=value token")
}

func TestParseCollectsAllMissingRequiredFields(t *testing.T) {
	_, err := Parse([]string{"min-seed=1.0"})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "gt is required")
	assert.Contains(t, msg, "map is required")
	assert.Contains(t, msg, "out is required")
}

func TestParseRejectsNonNumericValue(t *testing.T) {
	_, err := Parse([]string{"gt=g", "map=m", "out=o", "min-seed=notanumber"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min-seed: not a number")
}

func TestValidateRangeChecks(t *testing.T) {
	_, err := Parse([]string{"gt=g", "map=m", "out=o", "min-seed=0", "min-mac=-1", "nthreads=0"})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "min-seed must be > 0")
	assert.Contains(t, msg, "min-mac must be >= 0")
	assert.Contains(t, msg, "nthreads must be >= 1")
}

func TestMaxGapAllowsNegativeOneToDisableMerging(t *testing.T) {
	c, err := Parse([]string{"gt=g", "map=m", "out=o", "max-gap=-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), c.MaxGap)

	_, err = Parse([]string{"gt=g", "map=m", "out=o", "max-gap=-2"})
	assert.Error(t, err)
}

func TestExcludeSamplesPassthrough(t *testing.T) {
	c, err := Parse([]string{"gt=g", "map=m", "out=o", "excludesamples=drop.txt"})
	require.NoError(t, err)
	assert.Equal(t, "drop.txt", c.ExcludeSamples)
}
