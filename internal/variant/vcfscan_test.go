package variant

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMaybeGzipPassesThroughPlainText(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("hello\n"))
	out, err := openMaybeGzip(r)
	require.NoError(t, err)
	sc := bufio.NewScanner(out)
	require.True(t, sc.Scan())
	assert.Equal(t, "hello", sc.Text())
}

func TestReadHeaderExtractsSampleNames(t *testing.T) {
	text := "##fileformat=VCFv4.2\n##contig=<ID=1>\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tsampleA\tsampleB\n"
	sc := bufio.NewScanner(strings.NewReader(text))
	samples, err := readHeader(sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"sampleA", "sampleB"}, samples)
}

func TestReadHeaderRejectsMissingHeader(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("##meta\n1\t100\t.\tA\tG\t.\t.\t.\tGT\t0|1\n"))
	_, err := readHeader(sc)
	assert.Error(t, err)
}

func TestReadHeaderRejectsNoSamples(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\n"))
	_, err := readHeader(sc)
	assert.Error(t, err)
}

func TestParseDataLineExtractsFields(t *testing.T) {
	line := "1\t12345\trs1\tA\tG\t.\t.\t.\tGT:DP\t0|1:30\t1|1:25"
	raw, err := parseDataLine(line)
	require.NoError(t, err)
	assert.Equal(t, "1", raw.chrom)
	assert.Equal(t, int32(12345), raw.bp)
	assert.Equal(t, 1, raw.alts) // "alts" counts ALT tokens split by comma; decodeLine adds REF for 2 alleles total
	assert.Equal(t, []string{"0|1", "1|1"}, raw.gts)
}

func TestParseDataLineLocatesGTNotInFirstPosition(t *testing.T) {
	line := "1\t100\trs1\tA\tG\t.\t.\t.\tDP:GT\t30:0|1"
	raw, err := parseDataLine(line)
	require.NoError(t, err)
	assert.Equal(t, []string{"0|1"}, raw.gts)
}

func TestParseDataLineRejectsShortRecord(t *testing.T) {
	_, err := parseDataLine("1\t100\t.\tA\tG")
	assert.Error(t, err)
}

func TestParseDataLineRejectsBadPos(t *testing.T) {
	_, err := parseDataLine("1\tnotanumber\t.\tA\tG\t.\t.\t.\tGT\t0|1")
	assert.Error(t, err)
}

func TestDecodeGTPhased(t *testing.T) {
	a0, a1, ok := decodeGT("1|0")
	require.True(t, ok)
	assert.Equal(t, int8(1), a0)
	assert.Equal(t, int8(0), a1)
}

func TestDecodeGTRejectsUnphased(t *testing.T) {
	_, _, ok := decodeGT("1/0")
	assert.False(t, ok)
}

func TestDecodeGTRejectsMissing(t *testing.T) {
	_, _, ok := decodeGT(".|0")
	assert.False(t, ok)
	_, _, ok = decodeGT("0|.")
	assert.False(t, ok)
}
