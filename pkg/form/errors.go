package form

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when Next, Back or Submit is called while
// its guard does not hold.
var ErrInvalidTransition = errors.New("form: invalid transition")

// Transition names reported in TransitionError.Op.
const (
	OpNext   = "next"
	OpBack   = "back"
	OpSubmit = "submit"
	OpGoTo   = "goto"
)

// TransitionError describes a rejected transition.
type TransitionError struct {
	Op     string
	Step   int
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("form: invalid transition %s at step %d: %s", e.Op, e.Step, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func reject(op string, step int, format string, args ...any) error {
	return &TransitionError{Op: op, Step: step, Reason: fmt.Sprintf(format, args...)}
}
