package variant

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/grailbio/bio-ibdhbd/internal/excludeset"
	"github.com/grailbio/bio-ibdhbd/internal/genmap"
	"github.com/grailbio/bio-ibdhbd/internal/genomic"
	"github.com/grailbio/bio-ibdhbd/internal/ibderrors"
	"github.com/grailbio/bio-ibdhbd/internal/interner"
	"github.com/grailbio/bio-ibdhbd/internal/seqcoder"
)

// batchSize is the number of raw lines the reader goroutine hands to
// the parser at a time, favoring fixed-size
// batches between a background reader and its consumer
// (encoding/bam.ShardedBAMWriter's shard queue plays the same role
// for output; here it is mirrored on the input side).
const batchSize = 256

// Options configures a Stream.
type Options struct {
	MinMAC   int
	Excludes *excludeset.Set
	NWorkers int // batch-line parse parallelism; 0 means 1
}

// Stream is the single-producer, single-consumer, finite, pull
// iterator over allele-coded columns.
type Stream struct {
	chroms *interner.Table
	genMap *genmap.Map
	opts   Options

	keepIdx     []int    // indices into the VCF's sample columns to retain
	sampleNames []string // kept sample names, same order as keepIdx, for error context
	nHaps       int
	maxNSeq     int
	coder       *seqcoder.Coder
	curChrom    int32
	haveChrom   bool
	lastBP      int32
	haveBP      bool

	lineCh  chan []string
	readErr ibderrors.Once
	cancel  int32

	ready []*Column // columns ready to be returned by Next, FIFO
}

// New constructs a Stream reading from r. It also returns the names of
// the kept (non-excluded) samples in VCF column order; kept[i] is the
// sample whose haplotypes are 2*i and 2*i+1.
func New(r io.Reader, chroms *interner.Table, genMap *genmap.Map, opts Options) (*Stream, []string, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	body, err := openMaybeGzip(br)
	if err != nil {
		return nil, nil, err
	}
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 1<<20), 1<<24)
	samples, err := readHeader(sc)
	if err != nil {
		return nil, nil, err
	}

	var keepIdx []int
	var kept []string
	for i, s := range samples {
		if opts.Excludes.Contains(s) {
			continue
		}
		keepIdx = append(keepIdx, i)
		kept = append(kept, s)
	}
	nHaps := 2 * len(kept)

	s := &Stream{
		chroms:      chroms,
		genMap:      genMap,
		opts:        opts,
		keepIdx:     keepIdx,
		sampleNames: kept,
		nHaps:       nHaps,
		maxNSeq:     seqcoder.MaxClasses(len(kept)),
		coder:       seqcoder.New(nHaps, seqcoder.MaxClasses(len(kept))),
		lineCh:      make(chan []string, 4),
	}
	go s.readLoop(sc)
	return s, kept, nil
}

// NHaps returns 2*len(kept samples).
func (s *Stream) NHaps() int { return s.nHaps }

// Cancel requests the reader goroutine stop: it checks the request
// before scanning each line and drops the batch it was filling.
func (s *Stream) Cancel() { atomic.StoreInt32(&s.cancel, 1) }

func (s *Stream) cancelled() bool { return atomic.LoadInt32(&s.cancel) != 0 }

func (s *Stream) readLoop(sc *bufio.Scanner) {
	defer close(s.lineCh)
	batch := make([]string, 0, batchSize)
	for sc.Scan() {
		if s.cancelled() {
			return
		}
		batch = append(batch, sc.Text())
		if len(batch) == batchSize {
			s.lineCh <- batch
			batch = make([]string, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		s.lineCh <- batch
	}
	if err := sc.Err(); err != nil {
		s.readErr.Set(ibderrors.E(ibderrors.Io, "variant: read:", err))
	}
}

// decodeResult is the per-line decode result, computed in parallel
// across a batch
// and then folded into the Stream's sequential state (MAC filtering,
// packing, sequence coding) in original order.
type decodeResult struct {
	marker  genomic.Marker
	alleles []int8
	skip    bool // never set by decodeLine; every decoded line is ingested
	err     error
}

func (s *Stream) decodeLine(line string) decodeResult {
	raw, err := parseDataLine(line)
	if err != nil {
		return decodeResult{err: err}
	}
	nAlleles := raw.alts + 1
	if len(raw.gts) < len(s.keepIdx) {
		return decodeResult{err: ibderrors.E(ibderrors.Format, "variant: fewer genotype fields than samples")}
	}

	markerID := fmt.Sprintf("%s:%d", raw.chrom, raw.bp)
	alleles := make([]int8, s.nHaps)
	for outSample, srcIdx := range s.keepIdx {
		a0, a1, ok := decodeGT(raw.gts[srcIdx])
		if !ok {
			return decodeResult{err: ibderrors.UnphasedOrMissing(s.sampleNames[outSample], markerID)}
		}
		if int(a0) >= nAlleles || int(a1) >= nAlleles {
			return decodeResult{err: ibderrors.E(ibderrors.Constraint, "variant: allele index out of range")}
		}
		alleles[2*outSample] = a0
		alleles[2*outSample+1] = a1
	}

	chrom := s.chroms.Intern(raw.chrom)
	cm, ok := s.genMap.CM(chrom, raw.bp)
	if !ok {
		return decodeResult{err: ibderrors.E(ibderrors.Constraint, "variant: no genetic map coverage for chromosome")}
	}
	marker := genomic.Marker{Chrom: chrom, BP: raw.bp, CM: cm, NAlleles: nAlleles}
	return decodeResult{marker: marker, alleles: alleles}
}

// fillReady decodes and packs the next batch of lines, appending
// ready-to-emit Columns to s.ready. It returns false at end of
// stream.
func (s *Stream) fillReady() (bool, error) {
	// Keep consuming batches while there is nothing ready to emit yet,
	// or while the head of the queue is still an unresolved
	// sequence-coding placeholder: a placeholder can
	// only become a real Column once its run is flushed, which may
	// require more input than the current batch.
	for len(s.ready) == 0 || s.ready[0] == nil {
		batch, ok := <-s.lineCh
		if !ok {
			if err := s.readErr.Err(); err != nil {
				return false, err
			}
			// flush any partial sequence-coding run
			if s.coder.Len() > 0 {
				s.flushCoder()
			}
			return len(s.ready) > 0, nil
		}

		results := s.decodeBatch(batch)
		for _, r := range results {
			if r.err != nil {
				return false, r.err
			}
			if err := s.validateOrder(r.marker); err != nil {
				return false, err
			}
			s.ingest(r.marker, r.alleles)
		}
	}
	return true, nil
}

func (s *Stream) validateOrder(m genomic.Marker) error {
	if s.haveChrom && m.Chrom != s.curChrom {
		return ibderrors.E(ibderrors.Constraint, "variant: chromosome changed mid-stream")
	}
	s.curChrom = m.Chrom
	s.haveChrom = true
	if s.haveBP && m.BP < s.lastBP {
		return ibderrors.E(ibderrors.Format, "variant: base positions not non-decreasing")
	}
	s.lastBP = m.BP
	s.haveBP = true
	return nil
}

func (s *Stream) decodeBatch(batch []string) []decodeResult {
	n := s.opts.NWorkers
	if n <= 1 || len(batch) < 2*n {
		results := make([]decodeResult, len(batch))
		for i, l := range batch {
			results[i] = s.decodeLine(l)
		}
		return results
	}

	results := make([]decodeResult, len(batch))
	var wg sync.WaitGroup
	chunk := (len(batch) + n - 1) / n
	for w := 0; w < n; w++ {
		lo := w * chunk
		hi := lo + chunk
		if lo >= len(batch) {
			break
		}
		if hi > len(batch) {
			hi = len(batch)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				results[i] = s.decodeLine(batch[i])
			}
		}(lo, hi)
	}
	wg.Wait()
	return results
}

// isLowMAFCandidate implements the low-MAF predicate shared by the
// sparse representation and sequence coding: n_alleles<=2 and minor
// count <= floor(2N*0.995)-1.
func isLowMAFCandidate(nHaps int, counts []int) (minorCount int, isCandidate bool) {
	if len(counts) != 2 {
		return 0, false
	}
	minor := counts[0]
	if counts[1] < minor {
		minor = counts[1]
	}
	threshold := int(float64(nHaps)*0.995) - 1
	return minor, minor <= threshold
}

func (s *Stream) ingest(marker genomic.Marker, alleles []int8) {
	counts := alleleCounts(alleles, marker.NAlleles)

	minorAllele, minorCount := secondMostFrequent(counts)
	_ = minorAllele
	if minorCount < s.opts.MinMAC {
		return // dropped per min-mac
	}

	_, lowMAF := isLowMAFCandidate(s.nHaps, counts)
	if lowMAF {
		if s.coder.TryAccept(marker, alleles) {
			s.ready = append(s.ready, nil) // placeholder, replaced on flush
			return
		}
		// Coder rejected: flush what we have, then retry once against
		// a fresh run.
		s.flushCoder()
		if s.coder.TryAccept(marker, alleles) {
			s.ready = append(s.ready, nil)
			return
		}
		// Even a fresh run rejects a single marker only if maxNSeq<2,
		// a degenerate configuration; fall through to direct packing.
	} else {
		// Not a low-MAF candidate: flush any open run so it stays a
		// contiguous block of low-MAF markers, rather than spanning this
		// directly-packed column.
		s.flushCoder()
	}

	major := majorAllele(counts)
	if marker.NAlleles <= 2 {
		s.ready = append(s.ready, packSparse(marker, alleles, major))
	} else {
		s.ready = append(s.ready, packDense(marker, alleles))
	}
}

func (s *Stream) flushCoder() {
	if s.coder.Len() == 0 {
		return
	}
	hap2seq, markers := s.coder.Flush()
	// Replace placeholders (nil) at the tail of s.ready, in order, with
	// the flushed sequence-coded columns
	fi := 0
	for i := len(s.ready) - 1; i >= 0 && fi < len(markers); i-- {
		if s.ready[i] == nil {
			fm := markers[len(markers)-1-fi]
			s.ready[i] = packSeqCoded(fm.Marker, s.nHaps, hap2seq, fm.Seq2Allele)
			fi++
		}
	}
}

// Next returns the next Column in marker order, or (nil, nil) at end
// of stream. Next is not safe for concurrent use; the Stream is a
// single-consumer iterator.
func (s *Stream) Next() (*Column, error) {
	ok, err := s.fillReady()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	c := s.ready[0]
	s.ready = s.ready[1:]
	return c, nil
}
