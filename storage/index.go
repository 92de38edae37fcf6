package storage

import "sync"

// valuePointer addresses the payload bytes of a Set record in the active
// log: the byte offset where the value begins, and its length.
type valuePointer struct {
	offset int64
	size   int64
}

// indexEntry is either a live valuePointer or a tombstone. A zero-value
// entry (zero pointer, tombstone == false) never appears in the index
// map itself — keys never observed simply have no map entry.
type indexEntry struct {
	pointer   valuePointer
	tombstone bool
}

// index maps keys to the location of their currently live value, or to a
// tombstone marking removal. Safe for concurrent Get (read lock) and
// Set/Remove/compaction (write lock) callers.
type index struct {
	mu      sync.RWMutex
	entries map[int64]indexEntry
}

func newIndex() *index {
	return &index{entries: make(map[int64]indexEntry)}
}

// lookup returns the entry for key and whether it was found at all. The
// caller must inspect entry.tombstone to distinguish a live pointer from a
// removed key.
func (idx *index) lookup(key int64) (indexEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[key]
	return e, ok
}

// setPointer installs a live value pointer for key, replacing any prior
// entry (pointer or tombstone).
func (idx *index) setPointer(key int64, ptr valuePointer) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key] = indexEntry{pointer: ptr}
}

// setTombstone installs a tombstone for key, replacing any prior entry.
func (idx *index) setTombstone(key int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key] = indexEntry{tombstone: true}
}

// replace swaps the entire entry set, used by the compactor to install the
// freshly rebuilt index after a rewrite.
func (idx *index) replace(entries map[int64]indexEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = entries
}
