// Package interner provides the process-wide chromosome and sample
// identifier tables shared by reference across the engine's
// components. It is grounded on the sharded-mutex-map pattern in
// encoding/bamprovider/concurrentmap.go, generalized from
// map[string]*sam.Record to a string<->int32 intern table.
package interner

import (
	"sync"

	"blainsmith.com/go/seahash"
)

const numShards = 256

type shard struct {
	mu     sync.RWMutex
	byName map[string]int32
}

// Table interns strings (sample or chromosome identifiers) to small
// non-negative integers. It is safe for concurrent use by the Variant
// Stream, the genetic-map loader, and the Extender & Writer, all of
// which hold a reference to the same Table for the lifetime of one
// chromosome's analysis.
type Table struct {
	shards [numShards]*shard

	// mu guards id allocation and namesByID, the reverse index used by
	// Lookup. Intern only takes this lock on a miss; Lookup takes a
	// read lock, so the hot path (segment emission resolving sample
	// names) never contends with shard-local interning.
	mu        sync.RWMutex
	size      int32
	namesByID []string
}

// New creates an empty Table.
func New() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i] = &shard{byName: make(map[string]int32)}
	}
	return t
}

func (t *Table) shardFor(name string) *shard {
	h := seahash.Sum64([]byte(name))
	return t.shards[h%uint64(numShards)]
}

// Intern returns the integer id for name, allocating a fresh one on
// first use. Concurrent callers interning the same new name are
// serialized by the name's shard lock; no two names ever race for the
// same id because id allocation happens under the table-wide mutex.
func (t *Table) Intern(name string) int32 {
	s := t.shardFor(name)

	s.mu.RLock()
	if id, ok := s.byName[name]; ok {
		s.mu.RUnlock()
		return id
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[name]; ok {
		return id
	}

	t.mu.Lock()
	id := t.size
	t.size++
	t.namesByID = append(t.namesByID, name)
	t.mu.Unlock()

	s.byName[name] = id
	return id
}

// Lookup returns the string for a previously interned id in O(1),
// backed by the append-only namesByID reverse index.
func (t *Table) Lookup(id int32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || int(id) >= len(t.namesByID) {
		return "", false
	}
	return t.namesByID[id], true
}

// Len returns the number of distinct interned identifiers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(t.size)
}
