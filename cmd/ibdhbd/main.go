// Command ibdhbd detects IBD and HBD segments from a phased VCF and
// a PLINK-format genetic map, using a Positional Burrows-Wheeler
// Transform seed-and-extend pipeline. See Config for the full set of
// name=value parameters.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/bio-ibdhbd/internal/config"
	"github.com/grailbio/bio-ibdhbd/internal/excludeset"
	"github.com/grailbio/bio-ibdhbd/internal/extend"
	"github.com/grailbio/bio-ibdhbd/internal/genmap"
	"github.com/grailbio/bio-ibdhbd/internal/genomic"
	"github.com/grailbio/bio-ibdhbd/internal/ibderrors"
	"github.com/grailbio/bio-ibdhbd/internal/ibdio"
	"github.com/grailbio/bio-ibdhbd/internal/interner"
	"github.com/grailbio/bio-ibdhbd/internal/seedfinder"
	"github.com/grailbio/bio-ibdhbd/internal/variant"
)

func main() {
	start := time.Now()
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg, start); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(1)
	}
}

// Window is the core marker range one goroutine is responsible for
// emitting seeds into: CoreLo:CoreHi are global column indices,
// half-open and non-overlapping across workers. A window's own PBWT
// pass still runs from the true start of the chromosome (marker 0)
// through CoreHi, rather than being seeded fresh at CoreLo, so that a
// maximal match ending inside this core is reported with its true
// start no matter how far back it began -- see processWindow.
type Window struct {
	CoreLo, CoreHi int
}

func run(cfg *config.Config, start time.Time) error {
	ctx := vcontext.Background()

	mapFile, err := file.Open(ctx, cfg.Map)
	if err != nil {
		return ibderrors.E(ibderrors.Io, "open map file:", err)
	}
	defer mapFile.Close(ctx)

	gtFile, err := file.Open(ctx, cfg.GT)
	if err != nil {
		return ibderrors.E(ibderrors.Io, "open genotype file:", err)
	}
	defer gtFile.Close(ctx)

	chroms := interner.New()

	genMap, err := genmap.Parse(mapFile.Reader(ctx), chroms)
	if err != nil {
		return err
	}

	var excludes *excludeset.Set
	if cfg.ExcludeSamples != "" {
		exFile, err := file.Open(ctx, cfg.ExcludeSamples)
		if err != nil {
			return ibderrors.E(ibderrors.Io, "open excludesamples file:", err)
		}
		excludes, err = excludeset.Parse(exFile.Reader(ctx))
		closeErr := exFile.Close(ctx)
		if err != nil {
			return err
		}
		if closeErr != nil {
			return ibderrors.E(ibderrors.Io, "close excludesamples file:", closeErr)
		}
	}

	st, sampleNames, err := variant.New(gtFile.Reader(ctx), chroms, genMap, variant.Options{
		MinMAC:   cfg.MinMAC,
		Excludes: excludes,
		NWorkers: cfg.NThreads,
	})
	if err != nil {
		return err
	}

	cols, err := materialize(st)
	if err != nil {
		return err
	}
	log.Printf("ibdhbd: loaded %d markers, %d samples", len(cols), len(sampleNames))

	nHaps := st.NHaps()
	seedTh := seedfinder.Thresholds{MinCM: cfg.MinSeed, MinMarkers: cfg.MinMarkers}
	extendTh := seedfinder.ExtendThresholds(cfg.MinSeed, cfg.MinExtend, cfg.MinMarkers)

	// The extension candidates a seed may attach to are built once,
	// sequentially, over the whole chromosome: an extension candidate
	// is itself a maximal IBS run and can be just as long as a seed, so
	// there is no marker-index radius around a core boundary that would
	// safely bound a per-window backward pass.
	extIdx := buildExtensionIndex(cols, nHaps, extendTh)

	windows := partitionWindows(len(cols), cfg.NThreads)

	var (
		wg      sync.WaitGroup
		once    ibderrors.Once
		mu      sync.Mutex
		allSegs []extend.OutputSegment
	)
	for _, w := range windows {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			segs, err := processWindow(cols, w, nHaps, seedTh, extIdx, cfg.MaxGap, cfg.MinOutput)
			if err != nil {
				once.Set(err)
				return
			}
			mu.Lock()
			allSegs = append(allSegs, segs...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	if err := once.Err(); err != nil {
		return err
	}

	dedup := extend.NewDedup()
	var ibdSegs, hbdSegs []extend.OutputSegment
	for _, seg := range allSegs {
		hap1, hap2 := haplotypesOf(seg)
		if !dedup.TryClaim(hap1, hap2, seg.BPStart, seg.BPEnd) {
			continue
		}
		if seg.HBD {
			hbdSegs = append(hbdSegs, seg)
		} else {
			ibdSegs = append(ibdSegs, seg)
		}
	}

	if err := writeSegments(ctx, cfg.Out+".ibd.gz", sampleNames, chroms, ibdSegs); err != nil {
		return err
	}
	if err := writeSegments(ctx, cfg.Out+".hbd.gz", sampleNames, chroms, hbdSegs); err != nil {
		return err
	}

	return writeLog(ctx, cfg, start, len(cols), len(sampleNames), len(ibdSegs), len(hbdSegs))
}

// haplotypesOf recovers the canonical haplotype pair backing an
// already-classified OutputSegment, since Dedup keys on haplotype
// index rather than (sample, side).
func haplotypesOf(seg extend.OutputSegment) (int32, int32) {
	h1 := 2*seg.Sample1 + seg.Side1
	h2 := 2*seg.Sample2 + seg.Side2
	return genomic.CanonPair(h1, h2)
}

// materialize reads every column off the stream, per the engine's
// read-only shared Markers list: once loaded, every window worker
// indexes cols independently without further contention on the
// Stream, whose pull-iterator contract only ever had one consumer.
func materialize(st *variant.Stream) ([]*variant.Column, error) {
	var cols []*variant.Column
	for {
		c, err := st.Next()
		if err != nil {
			return nil, err
		}
		if c == nil {
			return cols, nil
		}
		cols = append(cols, c)
	}
}

// partitionWindows splits the n columns into nWindows contiguous,
// non-overlapping core ranges, each owned by a single worker. A
// window's PBWT pass always starts at the true chromosome beginning
// (see processWindow), so cores need no flanking margin: there is no
// boundary a maximal match can be clamped against.
func partitionWindows(n int, nWindows int) []Window {
	if n == 0 {
		return nil
	}
	if nWindows < 1 {
		nWindows = 1
	}
	if nWindows > n {
		nWindows = n
	}
	chunk := (n + nWindows - 1) / nWindows

	var windows []Window
	for coreLo := 0; coreLo < n; coreLo += chunk {
		coreHi := coreLo + chunk
		if coreHi > n {
			coreHi = n
		}
		windows = append(windows, Window{CoreLo: coreLo, CoreHi: coreHi})
	}
	return windows
}

// buildExtensionIndex runs the single-threaded backward Seed Finder
// pass across the whole chromosome once, before any core is
// processed, and returns the frozen, shared ExtensionIndex every
// window's Merger draws from. Because this pass's windowLo/windowHi
// are the true chromosome bounds, every reported candidate carries
// its real (MarkerStart, MarkerEnd), however far it reaches -- there
// is no per-window truncation to reconcile.
func buildExtensionIndex(cols []*variant.Column, nHaps int, extendTh seedfinder.Thresholds) *extend.ExtensionIndex {
	extIdx := extend.NewExtensionIndex()
	n := len(cols)
	if n == 0 {
		extIdx.Freeze()
		return extIdx
	}

	pos := func(idx int32) genomic.Marker { return cols[idx].Marker }
	bwd := seedfinder.New(nHaps, 0, int32(n-1), extendTh)
	for i := n - 1; i >= 0; i-- {
		col := cols[i]
		allele := func(h int32) int8 { return col.Allele(h) }
		bwd.StepBackward(int32(i), col.Marker.NAlleles, allele, pos, extIdx.Add)
	}
	bwd.FinishBackward(0, pos, extIdx.Add)
	extIdx.Freeze()
	return extIdx
}

// processWindow drives a forward Seed Finder pass from the true start
// of the chromosome (marker 0) through w.CoreHi, emitting only the
// seeds whose end marker falls in [CoreLo, CoreHi): since the PBWT
// state has seen every marker before CoreHi, not just this window's
// own core, a maximal match ending in this core is reported with its
// true start regardless of how far back it began. Finish is only
// called by the last window (CoreHi == len(cols)): an earlier
// window's pass stopping at CoreHi is a worker-imposed cutoff, not the
// true end of data, so a pair still open there is not yet known to be
// maximal -- it is picked up correctly by whichever later window's
// core contains its real end marker.
func processWindow(
	cols []*variant.Column,
	w Window,
	nHaps int,
	seedTh seedfinder.Thresholds,
	extIdx *extend.ExtensionIndex,
	maxGap int32,
	minOutput float64,
) ([]extend.OutputSegment, error) {
	n := len(cols)
	if w.CoreHi <= w.CoreLo {
		return nil, nil
	}

	pos := func(idx int32) genomic.Marker { return cols[idx].Marker }
	coreLo, coreHi := int32(w.CoreLo), int32(w.CoreHi)

	var seeds []seedfinder.Seed
	collect := func(s seedfinder.Seed) {
		if s.MarkerEnd >= coreLo && s.MarkerEnd < coreHi {
			seeds = append(seeds, s)
		}
	}

	fwd := seedfinder.New(nHaps, 0, int32(n-1), seedTh)
	hi := w.CoreHi
	if hi > n-1 {
		hi = n - 1
	}
	for i := 0; i <= hi; i++ {
		col := cols[i]
		allele := func(h int32) int8 { return col.Allele(h) }
		fwd.StepForward(int32(i), col.Marker.NAlleles, allele, pos, collect)
	}
	if w.CoreHi >= n {
		fwd.Finish(int32(n-1), pos, collect)
	}

	merger := extend.NewMerger(extIdx, pos, maxGap)
	out := make([]extend.OutputSegment, 0, len(seeds))
	for _, seed := range seeds {
		seg := merger.Merge(seed)
		o := extend.Classify(seg, pos)
		if o.PassesMinOutput(minOutput) {
			out = append(out, o)
		}
	}
	return out, nil
}

func writeSegments(ctx context.Context, path string, sampleNames []string, chroms *interner.Table, segs []extend.OutputSegment) error {
	f, err := file.Create(ctx, path)
	if err != nil {
		return ibderrors.E(ibderrors.Io, "create output file:", path, err)
	}
	w := ibdio.NewWriter(f.Writer(ctx), sampleNames, chroms)
	w.Write(segs)
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close(ctx)
}

func writeLog(ctx context.Context, cfg *config.Config, start time.Time, nMarkers, nSamples, nIBD, nHBD int) error {
	f, err := file.Create(ctx, cfg.Out+".log")
	if err != nil {
		return ibderrors.E(ibderrors.Io, "create log file:", err)
	}
	w := bufio.NewWriter(f.Writer(ctx))
	fmt.Fprintf(w, "ibdhbd\n")
	fmt.Fprintf(w, "gt=%s\n", cfg.GT)
	fmt.Fprintf(w, "map=%s\n", cfg.Map)
	fmt.Fprintf(w, "out=%s\n", cfg.Out)
	fmt.Fprintf(w, "min-seed=%g\n", cfg.MinSeed)
	fmt.Fprintf(w, "min-extend=%g\n", cfg.MinExtend)
	fmt.Fprintf(w, "min-output=%g\n", cfg.MinOutput)
	fmt.Fprintf(w, "max-gap=%d\n", cfg.MaxGap)
	fmt.Fprintf(w, "min-markers=%d\n", cfg.MinMarkers)
	fmt.Fprintf(w, "min-mac=%d\n", cfg.MinMAC)
	fmt.Fprintf(w, "nthreads=%d\n", cfg.NThreads)
	fmt.Fprintf(w, "markers=%d\n", nMarkers)
	fmt.Fprintf(w, "samples=%d\n", nSamples)
	fmt.Fprintf(w, "ibd_segments=%d\n", nIBD)
	fmt.Fprintf(w, "hbd_segments=%d\n", nHBD)
	fmt.Fprintf(w, "elapsed=%s\n", time.Since(start))
	if err := w.Flush(); err != nil {
		return ibderrors.E(ibderrors.Io, "write log file:", err)
	}
	return f.Close(ctx)
}
