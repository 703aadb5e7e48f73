package extension

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// nameLocks serializes mutations of installed directories within a process.
// Keys are directory paths, so the active and disabled slots of a name are
// locked independently and callers lock every slot they may touch.
type nameLocks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newNameLocks() *nameLocks {
	return &nameLocks{held: make(map[string]*lockEntry)}
}

// acquire blocks until every key is held or ctx is done. Keys are taken in
// sorted order so overlapping requests cannot deadlock.
func (l *nameLocks) acquire(ctx context.Context, keys ...string) (func(), error) {
	normalized := make([]string, 0, len(keys))
	for _, k := range keys {
		normalized = append(normalized, lockKey(k))
	}
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)

	acquired := make([]string, 0, len(normalized))
	for _, key := range normalized {
		entry := l.ref(key)
		if err := entry.sem.Acquire(ctx, 1); err != nil {
			l.unref(key)
			l.releaseAll(acquired)
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", key, err)
		}
		acquired = append(acquired, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.releaseAll(acquired) })
	}, nil
}

func (l *nameLocks) ref(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.held[key]
	if !ok {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.held[key] = entry
	}
	entry.refs++
	return entry
}

func (l *nameLocks) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.held[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.held, key)
	}
}

func (l *nameLocks) releaseAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		entry := l.held[keys[i]]
		l.mu.Unlock()
		if entry != nil {
			entry.sem.Release(1)
		}
		l.unref(keys[i])
	}
}

// size returns the number of keys currently referenced.
func (l *nameLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
