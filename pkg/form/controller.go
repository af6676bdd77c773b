package form

import (
	"errors"

	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/pkg/answers"
)

// Observer receives controller events. internal/metrics implements it.
type Observer interface {
	OnTransition(op string, from, to int, err error)
	OnSubmit(p Payload)
}

// Controller owns a session for interactive front-ends. It keeps every
// previous session so Undo can step back through edits and transitions. A
// Controller is not safe for concurrent use.
type Controller struct {
	current   Session
	history   []Session
	logger    *zap.Logger
	observers []Observer
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger used for transition events.
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an observer.
func WithObserver(observer Observer) ControllerOption {
	return func(c *Controller) {
		if observer != nil {
			c.observers = append(c.observers, observer)
		}
	}
}

// NewController wraps session.
func NewController(session Session, opts ...ControllerOption) *Controller {
	c := &Controller{current: session, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With(zap.String("schema", session.schema.ID))
	return c
}

// Session returns the current session value.
func (c *Controller) Session() Session { return c.current }

// View projects the current session.
func (c *Controller) View() View { return c.current.View() }

// SetAnswer records value for id.
func (c *Controller) SetAnswer(id string, value answers.Value) {
	c.push(c.current.SetAnswer(id, value))
	c.logger.Debug("answer set", zap.String("field", id), zap.Int("step", c.current.step))
}

// ClearAnswer removes the answer for id.
func (c *Controller) ClearAnswer(id string) {
	c.push(c.current.ClearAnswer(id))
	c.logger.Debug("answer cleared", zap.String("field", id), zap.Int("step", c.current.step))
}

// Next advances to the following step.
func (c *Controller) Next() error {
	return c.transition(OpNext, c.current.Next)
}

// Back returns to the previous step.
func (c *Controller) Back() error {
	return c.transition(OpBack, c.current.Back)
}

// GoTo jumps back to an earlier step.
func (c *Controller) GoTo(index int) error {
	return c.transition(OpGoTo, func() (Session, error) { return c.current.GoTo(index) })
}

// Submit finalises the session and returns the payload.
func (c *Controller) Submit() (Payload, error) {
	from := c.current.step
	payload, next, err := c.current.Submit()
	c.notify(OpSubmit, from, next.step, err)
	if err != nil {
		return Payload{}, err
	}
	c.push(next)
	c.logger.Info("session submitted", zap.Int("answers", payload.Len()))
	for _, observer := range c.observers {
		observer.OnSubmit(payload)
	}
	return payload, nil
}

// Undo restores the previous session. It reports false when there is nothing
// to undo.
func (c *Controller) Undo() bool {
	if len(c.history) == 0 {
		return false
	}
	last := len(c.history) - 1
	c.current = c.history[last]
	c.history = c.history[:last]
	c.logger.Debug("undo", zap.Int("step", c.current.step))
	return true
}

// Depth reports how many sessions can be undone.
func (c *Controller) Depth() int { return len(c.history) }

func (c *Controller) transition(op string, fn func() (Session, error)) error {
	from := c.current.step
	next, err := fn()
	c.notify(op, from, next.step, err)
	if err != nil {
		return err
	}
	c.push(next)
	return nil
}

func (c *Controller) notify(op string, from, to int, err error) {
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			c.logger.Warn("transition rejected",
				zap.String("op", op), zap.Int("step", from), zap.String("reason", te.Reason))
		} else {
			c.logger.Warn("transition failed", zap.String("op", op), zap.Error(err))
		}
	} else {
		c.logger.Info("transition", zap.String("op", op), zap.Int("from", from), zap.Int("to", to))
	}
	for _, observer := range c.observers {
		observer.OnTransition(op, from, to, err)
	}
}

func (c *Controller) push(next Session) {
	c.history = append(c.history, c.current)
	c.current = next
}
