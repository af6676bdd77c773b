package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-onboard/pkg/form"
)

// Memory keeps snapshots in process memory. Entries older than the TTL are
// dropped lazily on access.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	snap    form.Snapshot
	expires time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryTTL expires snapshots ttl after their last save. Zero keeps them
// forever.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		m.ttl = ttl
	}
}

// NewMemory constructs an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

var _ Store = (*Memory)(nil)

func (m *Memory) Save(ctx context.Context, id string, snap form.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap.Answers = snap.Answers.Clone()
	entry := memoryEntry{snap: snap}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = entry
	return nil
}

func (m *Memory) Load(ctx context.Context, id string) (form.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return form.Snapshot{}, err
	}
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || m.expired(entry) {
		return form.Snapshot{}, ErrSessionNotFound
	}
	snap := entry.snap
	snap.Answers = snap.Answers.Clone()
	return snap, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// List returns the live session ids, sorted.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.entries))
	for id, entry := range m.entries {
		if m.expired(entry) {
			delete(m.entries, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) expired(entry memoryEntry) bool {
	return !entry.expires.IsZero() && !m.now().Before(entry.expires)
}
