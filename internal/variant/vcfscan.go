package variant

import (
	"bufio"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/bio-ibdhbd/internal/ibderrors"
)

// openMaybeGzip wraps r in a gzip.Reader if the stream starts with
// the gzip magic bytes. A BGZF stream is read here as an ordinary
// concatenated gzip stream, which Go's compress/gzip already handles
// transparently via multistream support.
func openMaybeGzip(r *bufio.Reader) (io.Reader, error) {
	magic, err := r.Peek(2)
	if err != nil && err != io.EOF {
		return nil, ibderrors.E(ibderrors.Io, "variant: peek magic:", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, ibderrors.E(ibderrors.Io, "variant: gzip open:", err)
		}
		return gz, nil
	}
	return r, nil
}

// rawLine is one parsed data line's raw fields, ready for allele
// decoding. header lines (starting with "#") are consumed eagerly by
// readHeader and never appear here.
type rawLine struct {
	chrom string
	bp    int32
	alts  int // number of ALT alleles
	gts   []string
}

// readHeader scans leading "##" meta-lines and the "#CHROM" header
// line, returning the sample names in column order.
func readHeader(sc *bufio.Scanner) ([]string, error) {
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			fields := strings.Split(line, "\t")
			if len(fields) <= 9 {
				return nil, ibderrors.E(ibderrors.Format, "variant: header has no sample columns")
			}
			return fields[9:], nil
		}
		return nil, ibderrors.E(ibderrors.Format, "variant: expected #CHROM header, got:", line)
	}
	if err := sc.Err(); err != nil {
		return nil, ibderrors.E(ibderrors.Io, "variant: read header:", err)
	}
	return nil, ibderrors.E(ibderrors.Format, "variant: empty input, no header")
}

// parseDataLine parses one tab-separated VCF-like data line: CHROM
// POS ID REF ALT QUAL FILTER INFO FORMAT sample...  Only the GT field
// (genotype, phased, "a|b") is consulted; every other FORMAT subfield
// is ignored.
func parseDataLine(line string) (rawLine, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 10 {
		return rawLine{}, ibderrors.E(ibderrors.Format, "variant: short record:", line)
	}
	bp64, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return rawLine{}, ibderrors.E(ibderrors.Format, "variant: bad POS:", fields[1])
	}
	alts := strings.Split(fields[4], ",")

	gtFieldIdx := 0
	formatParts := strings.Split(fields[8], ":")
	for i, p := range formatParts {
		if p == "GT" {
			gtFieldIdx = i
			break
		}
	}

	gts := make([]string, len(fields)-9)
	for i, sampleField := range fields[9:] {
		parts := strings.Split(sampleField, ":")
		if gtFieldIdx >= len(parts) {
			return rawLine{}, ibderrors.E(ibderrors.Format, "variant: sample field missing GT:", sampleField)
		}
		gts[i] = parts[gtFieldIdx]
	}

	return rawLine{
		chrom: fields[0],
		bp:    int32(bp64),
		alts:  len(alts),
		gts:   gts,
	}, nil
}

// decodeGT decodes a phased "a|b" genotype string into two allele
// values. ok is false if the separator isn't "|" or either allele is
// missing ('.'); the caller (decodeLine) is the one with the sample
// and marker context needed to report which genotype failed.
func decodeGT(gt string) (a0, a1 int8, ok bool) {
	sep := strings.IndexByte(gt, '|')
	if sep < 0 {
		return 0, 0, false
	}
	left, right := gt[:sep], gt[sep+1:]
	av0, err0 := strconv.Atoi(left)
	av1, err1 := strconv.Atoi(right)
	if err0 != nil || err1 != nil || left == "." || right == "." {
		return 0, 0, false
	}
	return int8(av0), int8(av1), true
}
