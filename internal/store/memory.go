package store

import (
	"context"
	"sync"
)

// ProgressFunc reports how many records of a bulk replace have been saved.
type ProgressFunc func(saved, total int)

// Memory is a process-local record store.
type Memory struct {
	mu        sync.RWMutex
	records   []Record
	nextID    int64
	batchSize int
}

// NewMemory creates an empty store. batchSize controls how often
// ReplaceAll reports progress and checks for cancellation.
func NewMemory(batchSize int) *Memory {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Memory{batchSize: batchSize, nextID: 1}
}

// ReplaceAll swaps the contents for records. A cancelled context leaves the
// previous contents in place.
func (m *Memory) ReplaceAll(ctx context.Context, records []Record, onProgress ProgressFunc) error {
	next := make([]Record, 0, len(records))
	id := int64(1)

	for start := 0; start < len(records); start += m.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+m.batchSize, len(records))
		for _, r := range records[start:end] {
			r.ID = id
			id++
			next = append(next, r)
		}
		if onProgress != nil {
			onProgress(end, len(records))
		}
	}

	m.mu.Lock()
	m.records = next
	m.nextID = id
	m.mu.Unlock()
	return nil
}

// All returns every record in insertion order.
func (m *Memory) All(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Search returns records whose Client ID, Name, CO Name or Branch contains query.
func (m *Memory) Search(ctx context.Context, query string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		if r.Matches(query) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Count returns the number of stored records.
func (m *Memory) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

// DeleteAll removes every record.
func (m *Memory) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	m.records = nil
	m.nextID = 1
	m.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() {}
