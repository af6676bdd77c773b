// Package store persists onboarding session snapshots between requests. It
// ships an in-memory store, a Redis store and a Manager that serialises
// access per session id.
package store

import (
	"context"
	"errors"

	"github.com/goliatone/go-onboard/pkg/form"
)

// ErrSessionNotFound is returned when no snapshot exists for an id.
var ErrSessionNotFound = errors.New("store: session not found")

// Store saves and loads session snapshots by id.
type Store interface {
	Save(ctx context.Context, id string, snap form.Snapshot) error
	Load(ctx context.Context, id string) (form.Snapshot, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// UnlockFunc releases a lock obtained from a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker coordinates access to a session across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}
