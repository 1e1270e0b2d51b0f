// Package genmap parses PLINK-format genetic maps and answers
// bp -> cM queries for the Variant Stream and Seed Finder. It is an
// external-collaborator contract ("genetic-map file
// parsing"), implemented here concretely so the rest of the engine is
// runnable and testable.
package genmap

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/bio-ibdhbd/internal/interner"

	"github.com/pkg/errors"
)

type entry struct {
	bp int32
	cm float64
}

// Map holds, per chromosome, a sorted list of (bp, cM) anchor points.
type Map struct {
	byChrom map[int32][]entry
}

// Parse reads a whitespace-delimited genetic map: "chrom ignored cM bp"
// per line cM must be finite and non-decreasing
// within a chromosome; duplicate bp within a chromosome is an error.
func Parse(r io.Reader, chroms *interner.Table) (*Map, error) {
	m := &Map{byChrom: make(map[int32][]entry)}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, errors.Errorf("genmap: line %d: expected 4 fields, got %d: %q", lineNo, len(fields), line)
		}
		chrom := chroms.Intern(fields[0])
		cm, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "genmap: line %d: bad cM field %q", lineNo, fields[2])
		}
		if cm != cm || cm > 1e300 || cm < -1e300 {
			return nil, errors.Errorf("genmap: line %d: cM value %v is not finite", lineNo, cm)
		}
		bp, err := strconv.ParseInt(fields[3], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "genmap: line %d: bad bp field %q", lineNo, fields[3])
		}

		es := m.byChrom[chrom]
		if len(es) > 0 {
			last := es[len(es)-1]
			if int32(bp) == last.bp {
				return nil, errors.Errorf("genmap: line %d: duplicate bp %d for chromosome %q", lineNo, bp, fields[0])
			}
			if int32(bp) < last.bp {
				return nil, errors.Errorf("genmap: line %d: bp %d out of order for chromosome %q", lineNo, bp, fields[0])
			}
			if cm < last.cm {
				return nil, errors.Errorf("genmap: line %d: cM values not non-decreasing for chromosome %q", lineNo, fields[0])
			}
		}
		m.byChrom[chrom] = append(es, entry{bp: int32(bp), cm: cm})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "genmap: read")
	}
	return m, nil
}

// CM returns the interpolated genetic position, in centimorgans, for
// base-pair position bp on the given (interned) chromosome. Positions
// outside the map's covered range are extrapolated linearly from the
// nearest two anchor points, the convention used by PBWT-based IBD
// tools for markers at the ends of a map.
func (m *Map) CM(chrom int32, bp int32) (float64, bool) {
	es := m.byChrom[chrom]
	if len(es) == 0 {
		return 0, false
	}
	if len(es) == 1 {
		return es[0].cm, true
	}
	i := sort.Search(len(es), func(i int) bool { return es[i].bp >= bp })
	switch {
	case i == 0:
		return interp(es[0], es[1], bp), true
	case i == len(es):
		return interp(es[len(es)-2], es[len(es)-1], bp), true
	case es[i].bp == bp:
		return es[i].cm, true
	default:
		return interp(es[i-1], es[i], bp), true
	}
}

func interp(a, b entry, bp int32) float64 {
	if b.bp == a.bp {
		return a.cm
	}
	frac := float64(bp-a.bp) / float64(b.bp-a.bp)
	return a.cm + frac*(b.cm-a.cm)
}

// HasChrom reports whether the map has any coverage for chrom.
func (m *Map) HasChrom(chrom int32) bool {
	return len(m.byChrom[chrom]) > 0
}
