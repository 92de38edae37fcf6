// Package storage implements ledgerkv's log-structured storage engine: an
// append-only log file, an in-memory index over live records, a
// byte-budgeted read-through value cache, and an online compactor that
// rewrites the log to reclaim space from obsolete records.
//
// Keys are fixed-width signed 64-bit integers; values are opaque byte
// strings. The engine exposes three operations — Set, Get, Remove — and
// survives restarts by reconstructing its index from the log on Open.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Engine is the storage engine for the key-value store. It coordinates the
// log file, the in-memory index, and the value cache, and triggers
// compaction when the log grows past its configured threshold.
//
// Engine is safe for concurrent use by multiple goroutines. It is not safe
// for concurrent use by multiple processes against the same data
// directory — Open takes an exclusive lock to fail fast on that misuse
// rather than risk silent corruption.
type Engine struct {
	dir    string
	cfg    config
	lockFl *os.File

	closedMu sync.RWMutex
	closed   bool

	fileMu sync.Mutex
	file   *os.File

	sizeMu sync.Mutex
	size   int64

	idx   *index
	cache *cache
}

// Open creates or reopens an engine backed by the data.db log file under
// dir, creating dir if it doesn't exist. The index is rebuilt by scanning
// the entire log in order; later writes of the same key overwrite the
// prior index entry, so the latest record wins.
func Open(dir string, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validateDataPath(dir); err != nil {
		return nil, err
	}

	lockFl, err := createFlock(dir)
	if err != nil {
		return nil, err
	}

	// A temp.db left behind by a compaction that crashed before its rename
	// holds nothing data.db does not; discard it.
	if err := os.Remove(filepath.Join(dir, tempFileName)); err != nil && !os.IsNotExist(err) {
		cfg.logger.Warn("storage: failed to remove stale compaction temp file", "dir", dir, "err", err)
	}

	file, size, err := openActiveLog(dir)
	if err != nil {
		releaseFlock(lockFl)
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	entries, err := recoverIndex(file, size)
	if err != nil {
		file.Close()
		releaseFlock(lockFl)
		return nil, err
	}

	idx := newIndex()
	idx.replace(entries)

	e := &Engine{
		dir:    dir,
		cfg:    cfg,
		lockFl: lockFl,
		file:   file,
		size:   size,
		idx:    idx,
		cache:  newCache(cfg.cacheBudget),
	}

	cfg.logger.Info("storage: engine opened", "dir", dir, "size", size, "records", len(entries))

	runtime.SetFinalizer(e, func(e *Engine) {
		if e.isClosed() {
			return
		}
		if err := e.Close(); err != nil {
			e.cfg.logger.Warn("storage: engine finalized without an explicit Close, and Close failed", "dir", e.dir, "err", err)
			return
		}
		e.cfg.logger.Warn("storage: engine finalized without an explicit Close", "dir", e.dir)
	})

	return e, nil
}

// Set stores value for key, returning the prior value if one existed (a
// live Set not superseded by a Remove).
func (e *Engine) Set(key int64, value []byte) ([]byte, bool, error) {
	if e.isClosed() {
		return nil, false, ErrClosed
	}

	prior, hadPrior, err := e.Get(key)
	if err != nil {
		return nil, false, err
	}

	record := encodeSet(key, value)

	offset, err := e.appendAndAdvance(record)
	if err != nil {
		return nil, false, fmt.Errorf("appending set record: %w", err)
	}

	ptr := valuePointer{offset: offset + setHeaderSize, size: int64(len(value))}
	e.idx.setPointer(key, ptr)

	cached := make([]byte, len(value))
	copy(cached, value)
	e.cache.put(key, cached)

	if e.currentSize() > e.cfg.gcThreshold {
		if err := e.compact(); err != nil {
			return prior, hadPrior, fmt.Errorf("set succeeded but compaction failed: %w", err)
		}
	}

	return prior, hadPrior, nil
}

// Get returns the value for key, and whether it was found (a live Set not
// superseded by a Remove or never written at all).
func (e *Engine) Get(key int64) ([]byte, bool, error) {
	if e.isClosed() {
		return nil, false, ErrClosed
	}

	if v, ok := e.cache.get(key); ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, true, nil
	}

	entry, ok := e.idx.lookup(key)
	if !ok || entry.tombstone {
		return nil, false, nil
	}

	e.fileMu.Lock()
	value, err := readValueAt(e.file, entry.pointer.offset, entry.pointer.size)
	e.fileMu.Unlock()
	if err != nil {
		return nil, false, fmt.Errorf("reading value: %w", err)
	}

	e.cache.put(key, value)

	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Remove deletes key, returning the prior value if one existed. Removing a
// key with no prior live value (absent or already tombstoned) is a no-op:
// per spec.md §4.2/§9, no Remove record is appended in that case.
func (e *Engine) Remove(key int64) ([]byte, bool, error) {
	if e.isClosed() {
		return nil, false, ErrClosed
	}

	prior, hadPrior, err := e.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !hadPrior {
		return nil, false, nil
	}

	record := encodeRemove(key)

	if _, err := e.appendAndAdvance(record); err != nil {
		return nil, false, fmt.Errorf("appending remove record: %w", err)
	}

	e.idx.setTombstone(key)
	e.cache.evict(key)

	if e.currentSize() > e.cfg.gcThreshold {
		if err := e.compact(); err != nil {
			return prior, hadPrior, fmt.Errorf("remove succeeded but compaction failed: %w", err)
		}
	}

	return prior, hadPrior, nil
}

// Close flips the engine to the closed state. All later Set/Get/Remove
// calls fail with ErrClosed. Close is idempotent: calling it again after
// the first successful call is a no-op that returns nil.
func (e *Engine) Close() error {
	e.closedMu.Lock()
	if e.closed {
		e.closedMu.Unlock()
		return nil
	}
	e.closed = true
	e.closedMu.Unlock()

	runtime.SetFinalizer(e, nil)

	e.fileMu.Lock()
	closeErr := e.file.Close()
	e.fileMu.Unlock()

	lockErr := releaseFlock(e.lockFl)

	e.cfg.logger.Info("storage: engine closed", "dir", e.dir)

	if closeErr != nil {
		return fmt.Errorf("closing log file: %w", closeErr)
	}
	return lockErr
}

func (e *Engine) isClosed() bool {
	e.closedMu.RLock()
	defer e.closedMu.RUnlock()
	return e.closed
}

func (e *Engine) currentSize() int64 {
	e.sizeMu.Lock()
	defer e.sizeMu.Unlock()
	return e.size
}

// appendAndAdvance appends record to the active log and advances the
// file-size counter as a single critical section, so the offset a caller
// computes a value pointer from can never be stale by the time the
// counter moves past it. Locks are acquired size-then-file, matching the
// order compact() itself uses, so the two never deadlock against each
// other.
func (e *Engine) appendAndAdvance(record []byte) (int64, error) {
	e.sizeMu.Lock()
	defer e.sizeMu.Unlock()

	e.fileMu.Lock()
	defer e.fileMu.Unlock()

	offset := e.size
	if err := appendRecord(e.file, record, e.cfg.syncWrites); err != nil {
		return 0, err
	}
	e.size += int64(len(record))

	return offset, nil
}
