// Package config parses the engine's name=value command-line tokens
// into a validated Config. It deliberately does not use the standard
// flag package, since the wire format is not GNU-style flags; it
// follows the usual cmd/*/main.go validation style of collecting
// every problem before erroring, just with a different tokenizer.
package config

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/bio-ibdhbd/internal/ibderrors"
)

// Config holds the fully resolved, validated set of engine parameters.
type Config struct {
	GT             string
	Map            string
	Out            string
	MinSeed        float64
	MaxGap         int32
	MinExtend      float64
	MinOutput      float64
	MinMarkers     int
	MinMAC         int
	NThreads       int
	ExcludeSamples string // "" if not given
}

// defaults for optional tokens not explicitly set. Note
// that min-extend's default depends on the resolved min-seed value
// (min(1.0, min-seed)), so it is computed after parsing rather than
// listed here.
const (
	defaultMinSeed    = 2.0
	defaultMaxGap     = 1000
	defaultMinOutput  = 2.0
	defaultMinMarkers = 1
	defaultMinMAC     = 2
)

// Parse tokenizes args as "name=value" pairs in any order, applies
// defaults, and validates ranges. Unknown tokens and invalid ranges
// both produce a single Config error listing every problem found.
func Parse(args []string) (*Config, error) {
	raw := make(map[string]string, len(args))
	var problems []string
	for _, a := range args {
		eq := strings.IndexByte(a, '=')
		if eq < 0 {
			problems = append(problems, "not a name=value token: "+a)
			continue
		}
		raw[a[:eq]] = a[eq+1:]
	}

	known := map[string]bool{
		"gt": true, "map": true, "out": true, "min-seed": true, "max-gap": true,
		"min-extend": true, "min-output": true, "min-markers": true, "min-mac": true,
		"nthreads": true, "excludesamples": true,
	}
	for name := range raw {
		if !known[name] {
			problems = append(problems, "unknown token: "+name)
		}
	}

	c := &Config{
		MinSeed:    defaultMinSeed,
		MaxGap:     defaultMaxGap,
		MinOutput:  defaultMinOutput,
		MinMarkers: defaultMinMarkers,
		MinMAC:     defaultMinMAC,
		NThreads:   runtime.NumCPU(),
	}

	requireString(raw, "gt", &c.GT, &problems)
	requireString(raw, "map", &c.Map, &problems)
	requireString(raw, "out", &c.Out, &problems)
	c.ExcludeSamples = raw["excludesamples"]

	parseFloat(raw, "min-seed", &c.MinSeed, &problems)
	parseInt32(raw, "max-gap", &c.MaxGap, &problems)
	parseFloat(raw, "min-output", &c.MinOutput, &problems)
	parseIntOpt(raw, "min-markers", &c.MinMarkers, &problems)
	parseIntOpt(raw, "min-mac", &c.MinMAC, &problems)
	parseIntOpt(raw, "nthreads", &c.NThreads, &problems)

	c.MinExtend = c.MinSeed
	if c.MinExtend > 1.0 {
		c.MinExtend = 1.0
	}
	parseFloat(raw, "min-extend", &c.MinExtend, &problems)

	validate(c, &problems)

	if len(problems) > 0 {
		return nil, ibderrors.E(ibderrors.Config, "invalid configuration:", strings.Join(problems, "; "))
	}
	return c, nil
}

func requireString(raw map[string]string, name string, dst *string, problems *[]string) {
	v, ok := raw[name]
	if !ok || v == "" {
		*problems = append(*problems, name+" is required")
		return
	}
	*dst = v
}

func parseFloat(raw map[string]string, name string, dst *float64, problems *[]string) {
	v, ok := raw[name]
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*problems = append(*problems, name+": not a number: "+v)
		return
	}
	*dst = f
}

func parseInt32(raw map[string]string, name string, dst *int32, problems *[]string) {
	v, ok := raw[name]
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		*problems = append(*problems, name+": not an integer: "+v)
		return
	}
	*dst = int32(n)
}

func parseIntOpt(raw map[string]string, name string, dst *int, problems *[]string) {
	v, ok := raw[name]
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*problems = append(*problems, name+": not an integer: "+v)
		return
	}
	*dst = n
}

func validate(c *Config, problems *[]string) {
	if c.MinSeed <= 0 {
		*problems = append(*problems, "min-seed must be > 0")
	}
	if c.MinExtend <= 0 {
		*problems = append(*problems, "min-extend must be > 0")
	}
	if c.MinOutput <= 0 {
		*problems = append(*problems, "min-output must be > 0")
	}
	if c.MinMarkers < 1 {
		*problems = append(*problems, "min-markers must be >= 1")
	}
	if c.MinMAC < 0 {
		*problems = append(*problems, "min-mac must be >= 0")
	}
	if c.MaxGap < -1 {
		*problems = append(*problems, "max-gap must be -1 or >= 0")
	}
	if c.NThreads < 1 {
		*problems = append(*problems, "nthreads must be >= 1")
	}
}
