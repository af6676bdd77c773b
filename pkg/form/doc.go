// Package form drives an onboarding session through the steps of a schema.
//
// A Session is an immutable value: SetAnswer, Next, Back and Submit return a
// new Session and leave the receiver untouched, so callers can keep history,
// replay transitions or share a session across goroutines without locking.
// Navigation guards fail with ErrInvalidTransition; every query is total.
//
// Controller wraps a Session for interactive front-ends that prefer a single
// mutable owner with undo and logging.
package form
