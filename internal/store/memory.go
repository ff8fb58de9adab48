package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of [Store].
//
// Records are keyed by ID with a secondary URL index. All methods are safe
// for concurrent use; UpdateState holds the write lock across the callback
// so each read-modify-write is atomic.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]CheckRecord
	byURL  map[string]string
	closed bool
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. Close is a no-op beyond marking
// the store unusable.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]CheckRecord),
		byURL: make(map[string]string),
	}
}

// Insert implements [Store].
func (m *MemoryStore) Insert(_ context.Context, rec CheckRecord) (CheckRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return CheckRecord{}, ErrClosed
	}
	if _, ok := m.byURL[rec.URL]; ok {
		return CheckRecord{}, fmt.Errorf("insert %s: %w", rec.URL, ErrDuplicateURL)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, ok := m.byID[rec.ID]; ok {
		return CheckRecord{}, fmt.Errorf("insert %s: id %s already exists", rec.URL, rec.ID)
	}

	m.byID[rec.ID] = rec
	m.byURL[rec.URL] = rec.ID
	return rec, nil
}

// Get implements [Store].
func (m *MemoryStore) Get(_ context.Context, id string) (CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return CheckRecord{}, ErrClosed
	}
	rec, ok := m.byID[id]
	if !ok {
		return CheckRecord{}, ErrNotFound
	}
	return rec, nil
}

// GetByURL implements [Store].
func (m *MemoryStore) GetByURL(_ context.Context, url string) (CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return CheckRecord{}, ErrClosed
	}
	id, ok := m.byURL[url]
	if !ok {
		return CheckRecord{}, ErrNotFound
	}
	return m.byID[id], nil
}

// List implements [Store]. Records are ordered by URL.
func (m *MemoryStore) List(_ context.Context) ([]CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	records := make([]CheckRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].URL < records[j].URL })
	return records, nil
}

// UpdateConfig implements [Store].
func (m *MemoryStore) UpdateConfig(_ context.Context, id string, intervalSeconds int, searchPattern string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	rec, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.IntervalSeconds = intervalSeconds
	rec.SearchPattern = searchPattern
	rec.ConfigUpdatedAt = at
	m.byID[id] = rec
	return nil
}

// UpdateState implements [Store].
func (m *MemoryStore) UpdateState(_ context.Context, id string, fn func(*CheckRecord) error) (CheckRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return CheckRecord{}, ErrClosed
	}
	stored, ok := m.byID[id]
	if !ok {
		return CheckRecord{}, ErrNotFound
	}

	working := stored
	if err := fn(&working); err != nil {
		return CheckRecord{}, err
	}
	ApplyState(&stored, working)
	m.byID[id] = stored
	return stored, nil
}

// DeleteStale implements [Store].
func (m *MemoryStore) DeleteStale(_ context.Context, cutoff time.Time) ([]CheckRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	var deleted []CheckRecord
	for id, rec := range m.byID {
		if rec.ConfigUpdatedAt.Before(cutoff) {
			deleted = append(deleted, rec)
			delete(m.byID, id)
			delete(m.byURL, rec.URL)
		}
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i].URL < deleted[j].URL })
	return deleted, nil
}

// EnsureURLIndex implements [Store]. The URL map is the index, so this only
// checks that the store is open.
func (m *MemoryStore) EnsureURLIndex(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close implements [Store]. Safe to call multiple times.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
