package form

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-onboard/pkg/answers"
)

type recordingObserver struct {
	transitions []string
	failures    int
	submits     int
}

func (r *recordingObserver) OnTransition(op string, _, _ int, err error) {
	r.transitions = append(r.transitions, op)
	if err != nil {
		r.failures++
	}
}

func (r *recordingObserver) OnSubmit(Payload) { r.submits++ }

func TestController_FlowLogsAndUndo(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	rec := &recordingObserver{}
	ctrl := NewController(mustNew(t, scenarioSchema()), WithLogger(zap.New(core)), WithObserver(rec))

	if err := ctrl.Next(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if logs.FilterMessage("transition rejected").Len() != 1 {
		t.Fatalf("expected a warn entry, got %v", logs.All())
	}

	ctrl.SetAnswer("industry", answers.Text("SaaS"))
	if err := ctrl.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	ctrl.SetAnswer("features_modules", answers.Text("SSO"))

	payload, err := ctrl.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if payload.Len() != 2 {
		t.Fatalf("expected 2 answers, got %d", payload.Len())
	}
	if rec.submits != 1 || rec.failures != 1 || len(rec.transitions) != 3 {
		t.Fatalf("unexpected observer record %+v", rec)
	}

	if !ctrl.Undo() || ctrl.Session().Submitted() {
		t.Fatal("expected undo to leave the submitted state")
	}
	if !ctrl.Undo() {
		t.Fatal("expected undo of features_modules")
	}
	if _, ok := ctrl.Session().Answer("features_modules"); ok {
		t.Fatal("expected features_modules to be undone")
	}
	for ctrl.Undo() {
	}
	if ctrl.Depth() != 0 || ctrl.Session().StepIndex() != 0 {
		t.Fatalf("expected initial session after full undo, depth=%d step=%d", ctrl.Depth(), ctrl.Session().StepIndex())
	}
}

func TestController_GoTo(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	ctrl := NewController(mustNew(t, scenarioSchema()), WithObserver(rec))
	ctrl.SetAnswer("industry", answers.Text("SaaS"))
	if err := ctrl.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	if err := ctrl.GoTo(1); err != nil {
		t.Fatalf("goto current step: %v", err)
	}
	if err := ctrl.GoTo(0); err != nil || ctrl.Session().StepIndex() != 0 {
		t.Fatalf("goto 0: step=%d err=%v", ctrl.Session().StepIndex(), err)
	}
	var te *TransitionError
	if err := ctrl.GoTo(1); !errors.As(err, &te) || te.Op != OpGoTo {
		t.Fatalf("expected a rejected forward jump, got %v", err)
	}
	if diff := cmp.Diff([]string{OpNext, OpGoTo, OpGoTo, OpGoTo}, rec.transitions); diff != "" {
		t.Fatalf("observed transitions mismatch (-want +got):\n%s", diff)
	}
	if rec.failures != 1 {
		t.Fatalf("expected one failure, got %d", rec.failures)
	}
	if !ctrl.Undo() || ctrl.Session().StepIndex() != 1 {
		t.Fatal("expected undo to return to the jump origin")
	}
}

func TestController_ClearAnswer(t *testing.T) {
	t.Parallel()

	ctrl := NewController(mustNew(t, scenarioSchema()))
	ctrl.SetAnswer("industry", answers.Text("D2C"))
	ctrl.ClearAnswer("industry")

	if _, ok := ctrl.Session().Answer("industry"); ok {
		t.Fatal("expected industry to be cleared")
	}
	if ctrl.Depth() != 2 {
		t.Fatalf("expected two undo entries, got %d", ctrl.Depth())
	}
	ctrl.Undo()
	if v, ok := ctrl.Session().Answer("industry"); !ok || v.Text != "D2C" {
		t.Fatalf("expected undo to restore D2C, got %v (ok=%v)", v, ok)
	}
}
