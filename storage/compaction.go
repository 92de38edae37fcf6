package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// compact rewrites the log to a temp file containing only live records,
// atomically swaps it in, and rebuilds the index. It is invoked
// synchronously at the end of a Set or Remove whenever the log exceeds
// cfg.gcThreshold (spec.md §4.5).
//
// Compaction holds exclusive access to the log, index, and cache for its
// duration — readers and writers are blocked. This is the simplest
// correct design (spec.md §4.5 "Concurrency"); a future variant could run
// it off the hot path behind a single-writer lock instead.
//
// Locks are acquired in the order required by spec.md §5: closed-flag,
// cache, index, file-size, log-file.
func (e *Engine) compact() error {
	e.closedMu.RLock()
	defer e.closedMu.RUnlock()

	e.cache.mu.Lock()
	defer e.cache.mu.Unlock()

	e.idx.mu.Lock()
	defer e.idx.mu.Unlock()

	e.sizeMu.Lock()
	defer e.sizeMu.Unlock()

	e.fileMu.Lock()
	defer e.fileMu.Unlock()

	e.cfg.logger.Info("storage: compaction starting", "dir", e.dir, "size", e.size)

	tempPath := filepath.Join(e.dir, tempFileName)

	// A stale temp file is a sign of a crash mid-compaction; remove it
	// before starting a fresh rewrite, per spec.md §4.5's crash recovery
	// note (temp.db is discarded on next open/compaction, data.db is
	// untouched until the rename).
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale compaction temp file: %w", err)
	}

	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating compaction temp file: %w", err)
	}

	freshEntries := make(map[int64]indexEntry, len(e.idx.entries))
	var newOffset int64

	for key, entry := range e.idx.entries {
		if entry.tombstone {
			// Tombstones are preserved in the rebuilt index but not
			// written to the temp file: after a restart the compacted
			// log no longer mentions the key, so it is simply absent
			// (spec.md §9, "forget-after-compaction").
			freshEntries[key] = entry
			continue
		}

		value, err := readValueAt(e.file, entry.pointer.offset, entry.pointer.size)
		if err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return fmt.Errorf("reading live value for key %d: %w", key, err)
		}

		record := encodeSet(key, value)
		if _, err := tempFile.Write(record); err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return fmt.Errorf("writing compacted record for key %d: %w", key, err)
		}

		freshEntries[key] = indexEntry{pointer: valuePointer{
			offset: newOffset + setHeaderSize,
			size:   entry.pointer.size,
		}}
		newOffset += int64(len(record))
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("fsyncing compaction temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing compaction temp file: %w", err)
	}

	logPath := filepath.Join(e.dir, logFileName)
	if err := os.Rename(tempPath, logPath); err != nil {
		return fmt.Errorf("renaming compacted log into place: %w", err)
	}

	// Rename succeeded: from here on the new log is committed. A failure
	// reopening the handle is treated as fatal to this Engine instance
	// (spec.md §9) — the caller must re-open.
	if err := e.file.Close(); err != nil {
		e.cfg.logger.Warn("storage: failed to close stale log handle after compaction", "err", err)
	}

	newFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopening log file after compaction: %w", err)
	}

	e.file = newFile
	e.size = newOffset
	e.idx.entries = freshEntries
	e.cache.clearLocked()

	e.cfg.logger.Info("storage: compaction finished", "dir", e.dir, "newSize", newOffset, "liveKeys", len(freshEntries))

	return nil
}
