// Package mock provides an in-memory store backend for testing.
package mock

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/kozaktomas/face-registry/internal/store"
)

// Store is an in-memory implementation of store.Backend.
type Store struct {
	mu      sync.RWMutex
	records []store.FaceRecord
	writes  int
	gate    chan struct{}
	entered chan struct{}

	// Error injection
	SubmitError error
	ListError   error
	CountError  error
}

// New creates an empty mock store.
func New() *Store {
	return &Store{}
}

func (m *Store) Name() string {
	return "mock"
}

func (m *Store) Close() error {
	return nil
}

// Block makes subsequent Submit calls wait until Unblock. The returned channel
// receives once per Submit that reaches the gate.
func (m *Store) Block() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.entered = make(chan struct{}, 16)
	return m.entered
}

// Unblock releases Submit calls waiting on Block.
func (m *Store) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Submit counts the write attempt and stores the record unless SubmitError is set.
func (m *Store) Submit(ctx context.Context, record store.FaceRecord) (store.Ack, error) {
	m.mu.Lock()
	m.writes++
	gate, entered := m.gate, m.entered
	m.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	if m.SubmitError != nil {
		return store.Ack{}, m.SubmitError
	}
	if err := record.Validate(); err != nil {
		return store.Ack{}, store.NewSubmitError("", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return store.Ack{
		ID:         strconv.Itoa(len(m.records)),
		Label:      record.Label,
		CapturedAt: record.CapturedAt,
	}, nil
}

// Writes returns the number of Submit calls, successful or not.
func (m *Store) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Records returns a copy of the stored records in insertion order.
func (m *Store) Records() []store.FaceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// List returns stored records newest first.
func (m *Store) List(ctx context.Context, opts store.ListOptions) ([]store.Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	opts = opts.Normalize()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]store.Record, 0, min(opts.Limit, len(m.records)))
	for i := len(m.records) - 1; i >= 0 && len(out) < opts.Limit; i-- {
		r := m.records[i]
		rec := store.Record{
			ID:         strconv.Itoa(i + 1),
			Label:      r.Label,
			CapturedAt: r.CapturedAt.UTC(),
		}
		if opts.IncludeImages {
			rec.ImageData = r.Image.DataURL()
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of stored records.
func (m *Store) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
