package extend

import (
	"sync"

	farm "github.com/dgryski/go-farm"
)

const numShards = 256

type segKey struct {
	bpStart, bpEnd int32
}

type dedupShard struct {
	mu   sync.Mutex
	seen map[PairKey]map[segKey]struct{}
}

// Dedup is the process-wide, sharded set of already-emitted
// (hap1, hap2, bp_start, bp_end) tuples, preventing the same segment
// from being reported twice when several seeds merge into it.
// Grounded on the seahash-sharded map in
// encoding/bamprovider/concurrentmap.go, generalized to use go-farm's
// 64-bit hash over the numeric pair key (no strings to hash here,
// unlike the sample/chromosome interner).
type Dedup struct {
	shards [numShards]*dedupShard
}

// NewDedup creates an empty, concurrency-safe Dedup set.
func NewDedup() *Dedup {
	d := &Dedup{}
	for i := range d.shards {
		d.shards[i] = &dedupShard{seen: make(map[PairKey]map[segKey]struct{})}
	}
	return d
}

func (d *Dedup) shardFor(k PairKey) *dedupShard {
	var buf [8]byte
	buf[0] = byte(k.Hap1)
	buf[1] = byte(k.Hap1 >> 8)
	buf[2] = byte(k.Hap1 >> 16)
	buf[3] = byte(k.Hap1 >> 24)
	buf[4] = byte(k.Hap2)
	buf[5] = byte(k.Hap2 >> 8)
	buf[6] = byte(k.Hap2 >> 16)
	buf[7] = byte(k.Hap2 >> 24)
	h := farm.Hash64(buf[:])
	return d.shards[h%uint64(numShards)]
}

// TryClaim returns true and marks (hap1, hap2, bpStart, bpEnd) seen if
// it has not been claimed before; returns false on a duplicate. Safe
// for concurrent use across writer-bound worker batches.
func (d *Dedup) TryClaim(hap1, hap2, bpStart, bpEnd int32) bool {
	k := KeyOf(hap1, hap2)
	sh := d.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.seen[k]
	if !ok {
		set = make(map[segKey]struct{})
		sh.seen[k] = set
	}
	sk := segKey{bpStart, bpEnd}
	if _, dup := set[sk]; dup {
		return false
	}
	set[sk] = struct{}{}
	return true
}
