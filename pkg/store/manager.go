package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/pkg/form"
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serialises access per session id on top of a Store. Lock entries
// are reference counted and dropped when unused.
type Manager struct {
	store  Store
	locker Locker
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*lockEntry
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLocker adds a cross-process lock taken after the local one.
func WithLocker(locker Locker) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger sets the logger for lock release failures.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager wraps store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: zap.NewNop(),
		locks:  make(map[string]*lockEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[id]
	if !ok {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock runs fn while holding the lock for id.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id)
		if err != nil {
			return err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release session lock", zap.String("session", id), zap.Error(err))
			}
		}()
	}
	return fn(ctx)
}

// Load returns the snapshot for id.
func (m *Manager) Load(ctx context.Context, id string) (form.Snapshot, error) {
	var snap form.Snapshot
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, id)
		return err
	})
	return snap, err
}

// Save persists snap under id.
func (m *Manager) Save(ctx context.Context, id string, snap form.Snapshot) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Save(ctx, id, snap)
	})
}

// Create saves snap under id unless a snapshot already exists.
func (m *Manager) Create(ctx context.Context, id string, snap form.Snapshot) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, id)
		switch {
		case err == nil:
			return fmt.Errorf("store: session %s already exists", id)
		case !errors.Is(err, ErrSessionNotFound):
			return err
		}
		return m.store.Save(ctx, id, snap)
	})
}

// Update loads the snapshot for id, applies fn and saves the result, all
// under the session lock. Nothing is saved when fn fails.
func (m *Manager) Update(ctx context.Context, id string, fn func(form.Snapshot) (form.Snapshot, error)) (form.Snapshot, error) {
	var out form.Snapshot
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		snap, err := m.store.Load(ctx, id)
		if err != nil {
			return err
		}
		next, err := fn(snap)
		if err != nil {
			return err
		}
		if err := m.store.Save(ctx, id, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

// Delete removes the snapshot for id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}
