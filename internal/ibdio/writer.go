// Package ibdio implements the gzip tab-separated output streams
// (<out>.ibd.gz, <out>.hbd.gz), one writer
// goroutine per file draining a bounded batch queue, grounded on
// encoding/bam.ShardedBAMWriter's shard-queue pattern (plain gzip in
// place of bgzf block framing).
package ibdio

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/bio-ibdhbd/internal/extend"
	"github.com/grailbio/bio-ibdhbd/internal/ibderrors"
	"github.com/grailbio/bio-ibdhbd/internal/interner"
)

// queueDepth bounds the writer's backpressure queue, mirroring
// bounds memory use under a slow or blocked downstream consumer.
const queueDepth = 64

// Writer drains a bounded queue of output-segment batches and appends
// them, in arrival order, to a single gzip-compressed tab-separated
// stream.
type Writer struct {
	queue   chan []extend.OutputSegment
	done    chan error
	samples []string // indexed by the local sample index used in hap encoding
	chroms  *interner.Table
}

// NewWriter starts a writer goroutine over w. samples maps a local
// sample index (hap>>1) to its original name; chroms resolves an
// interned chromosome id back to its original name.
func NewWriter(w io.Writer, samples []string, chroms *interner.Table) *Writer {
	wr := &Writer{
		queue:   make(chan []extend.OutputSegment, queueDepth),
		done:    make(chan error, 1),
		samples: samples,
		chroms:  chroms,
	}
	go wr.run(w)
	return wr
}

func (w *Writer) run(dst io.Writer) {
	gz := gzip.NewWriter(dst)
	bw := bufio.NewWriterSize(gz, 1<<20)
	var firstErr error
	for batch := range w.queue {
		if firstErr != nil {
			continue // drain remaining batches without writing
		}
		for _, seg := range batch {
			if err := w.writeLine(bw, seg); err != nil {
				firstErr = err
				break
			}
		}
	}
	if firstErr == nil {
		if err := bw.Flush(); err != nil {
			firstErr = ibderrors.E(ibderrors.Io, "ibdio: flush:", err)
		}
	}
	if firstErr == nil {
		if err := gz.Close(); err != nil {
			firstErr = ibderrors.E(ibderrors.Io, "ibdio: gzip close:", err)
		}
	}
	w.done <- firstErr
}

// writeLine serializes the eight core fields of a segment record:
// sample1, side1, sample2, side2, chrom, bp_start, bp_end, cm_length.
func (w *Writer) writeLine(bw *bufio.Writer, seg extend.OutputSegment) error {
	sample1, sample2 := w.samples[seg.Sample1], w.samples[seg.Sample2]
	chrom, _ := w.chroms.Lookup(seg.Chrom)
	_, err := fmt.Fprintf(bw, "%s\t%d\t%s\t%d\t%s\t%d\t%d\t%.4f\n",
		sample1, seg.Side1+1, sample2, seg.Side2+1, chrom, seg.BPStart, seg.BPEnd, seg.CMLength)
	if err != nil {
		return ibderrors.E(ibderrors.Io, "ibdio: write:", err)
	}
	return nil
}

// Write enqueues a batch of segments, blocking if the queue is full.
// An empty batch is a no-op.
func (w *Writer) Write(batch []extend.OutputSegment) {
	if len(batch) == 0 {
		return
	}
	w.queue <- batch
}

// Close signals that no more batches will arrive and waits for the
// writer goroutine to flush and close the underlying stream,
// returning the first I/O error encountered, if any.
func (w *Writer) Close() error {
	close(w.queue)
	return <-w.done
}
