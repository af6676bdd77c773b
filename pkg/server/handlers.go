package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/orchestrator"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/store"
)

const (
	opNext   = "next"
	opBack   = "back"
	opSubmit = "submit"
)

// ErrUnknownField is reported for answers naming a field the schema lacks.
var ErrUnknownField = errors.New("server: unknown field")

type sessionResponse struct {
	ID      string        `json:"id"`
	View    form.View     `json:"view"`
	Payload *form.Payload `json:"payload,omitempty"`
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
	View   *form.View          `json:"view,omitempty"`
}

type createRequest struct {
	Answers map[string]any `json:"answers"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "schema": s.Schema().ID})
}

func (s *Server) getSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Schema())
}

func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	contract := s.current.Load().contract
	if r.URL.Query().Get("format") == "yaml" {
		data, err := contract.YAML()
		if err != nil {
			s.fail(w, err, nil)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(data)
		return
	}
	data, err := contract.JSON()
	if err != nil {
		s.fail(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeOptional(r, &req); err != nil {
		badRequest(w, err, err.Error())
		return
	}

	sch := s.Schema()
	initial, err := coerceAll(sch, req.Answers)
	if err != nil {
		s.fail(w, err, nil)
		return
	}
	session, err := s.orch.Start(r.Context(), sch, initial.set, 0)
	if err != nil {
		s.fail(w, err, nil)
		return
	}

	id := s.newID()
	if err := s.sessions.Create(r.Context(), id, session.Snapshot()); err != nil {
		s.fail(w, err, nil)
		return
	}
	if s.metrics != nil {
		s.metrics.SessionStarted()
	}
	s.logger.Info("session started", zap.String("session", id), zap.String("schema", sch.ID))

	w.Header().Set("Location", "/sessions/"+id)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, View: session.View()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.load(r.Context(), id)
	if err != nil {
		s.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, View: session.View()})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Load(r.Context(), id); err != nil {
		s.fail(w, err, nil)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) renderSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.load(r.Context(), id)
	if err != nil {
		s.fail(w, err, nil)
		return
	}
	s.writeRendered(w, r, id, session, http.StatusOK, render.RenderOptions{})
}

func (s *Server) writeRendered(w http.ResponseWriter, r *http.Request, id string, session form.Session, status int, opts render.RenderOptions) {
	query := r.URL.Query()
	name := query.Get("renderer")
	renderer, err := s.orch.Renderer(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	opts.Action = "/sessions/" + id + "/form"
	opts.Method = http.MethodPost
	opts.HiddenFields = render.MergeHiddenFields(opts.HiddenFields, render.StepField(session.StepIndex()))
	opts.Subset = render.ParseSubset(query.Get("fields"))
	opts.Locale = query.Get("locale")

	out, err := s.orch.Render(r.Context(), session, orchestrator.Request{
		Renderer:      renderer.Name(),
		ThemeName:     query.Get("theme"),
		ThemeVariant:  query.Get("variant"),
		RenderOptions: opts,
	})
	if err != nil {
		s.fail(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

func (s *Server) putAnswers(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		badRequest(w, err, "body must be a JSON object of answers")
		return
	}

	id := chi.URLParam(r, "id")
	var view form.View
	err := s.update(r.Context(), id, func(session form.Session) (form.Session, error) {
		changes, err := coerceAll(session.Schema(), raw)
		if err != nil {
			view = session.View()
			return session, err
		}
		for _, fieldID := range changes.order {
			if value, ok := changes.set[fieldID]; ok {
				session = session.SetAnswer(fieldID, value)
				continue
			}
			session = session.ClearAnswer(fieldID)
		}
		view = session.View()
		return session, nil
	})
	if err != nil {
		s.fail(w, err, &view)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, View: view})
}

func (s *Server) transition(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var view form.View
		err := s.update(r.Context(), id, func(session form.Session) (form.Session, error) {
			next, err := s.step(session, op)
			if err != nil {
				view = session.View()
				return session, err
			}
			view = next.View()
			return next, nil
		})
		if err != nil {
			s.fail(w, err, &view)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{ID: id, View: view})
	}
}

func (s *Server) step(session form.Session, op string) (form.Session, error) {
	var (
		next form.Session
		err  error
	)
	from := session.StepIndex()
	switch op {
	case opNext:
		next, err = session.Next()
	case opBack:
		next, err = session.Back()
	default:
		return session, fmt.Errorf("server: unknown operation %q", op)
	}
	if s.metrics != nil {
		to := from
		if err == nil {
			to = next.StepIndex()
		}
		s.metrics.OnTransition(op, from, to, err)
	}
	return next, err
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		before, after form.View
		payload       form.Payload
	)
	err := s.commit(r.Context(), id, func(session form.Session) (form.Session, *form.Payload, error) {
		before = session.View()
		p, submitted, err := s.submitSession(session)
		if err != nil {
			return session, nil, err
		}
		payload, after = p, submitted.View()
		return submitted, &payload, nil
	})
	if err != nil {
		s.fail(w, err, &before)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, View: after, Payload: &payload})
}

// submitSession runs the submit transition. Delivery happens in commit once
// the submitted snapshot is saved.
func (s *Server) submitSession(session form.Session) (form.Payload, form.Session, error) {
	payload, submitted, err := session.Submit()
	if s.metrics != nil {
		s.metrics.OnTransition(opSubmit, session.StepIndex(), session.StepIndex(), err)
	}
	if err != nil {
		return form.Payload{}, session, err
	}
	return payload, submitted, nil
}

// deliver hands a payload whose submitted snapshot is already saved to the
// sink. A failed delivery restores prev so the submit can be retried.
func (s *Server) deliver(ctx context.Context, id string, prev form.Snapshot, payload form.Payload) error {
	if err := s.sink.Deliver(ctx, payload); err != nil {
		s.logger.Error("payload delivery failed", zap.String("session", id), zap.Error(err))
		if rerr := s.sessions.Store().Save(context.WithoutCancel(ctx), id, prev); rerr != nil {
			s.logger.Error("failed to reopen session after delivery failure",
				zap.String("session", id), zap.Error(rerr))
		}
		return &deliveryError{err: err}
	}
	if s.metrics != nil {
		s.metrics.OnSubmit(payload)
	}
	s.logger.Info("session submitted", zap.String("session", id), zap.Int("answers", payload.Len()))
	return nil
}

type deliveryError struct{ err error }

func (e *deliveryError) Error() string { return "server: deliver payload: " + e.err.Error() }
func (e *deliveryError) Unwrap() error { return e.err }

func (s *Server) load(ctx context.Context, id string) (form.Session, error) {
	snap, err := s.sessions.Load(ctx, id)
	if err != nil {
		return form.Session{}, err
	}
	return form.Restore(s.Schema(), snap, s.orch.SessionOptions()...)
}

// update restores the session under its lock, applies fn and persists the
// result. Nothing is saved when fn fails.
func (s *Server) update(ctx context.Context, id string, fn func(form.Session) (form.Session, error)) error {
	return s.commit(ctx, id, func(session form.Session) (form.Session, *form.Payload, error) {
		next, err := fn(session)
		return next, nil, err
	})
}

// commit applies fn to the stored session and saves the result under the
// session lock. Nothing is saved when fn fails. A payload returned by fn is
// delivered only after its submitted snapshot is saved, so a failed save never
// reaches the sink.
func (s *Server) commit(ctx context.Context, id string, fn func(form.Session) (form.Session, *form.Payload, error)) error {
	sch := s.Schema()
	return s.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		backend := s.sessions.Store()
		snap, err := backend.Load(ctx, id)
		if err != nil {
			return err
		}
		session, err := form.Restore(sch, snap, s.orch.SessionOptions()...)
		if err != nil {
			return err
		}
		next, payload, err := fn(session)
		if err != nil {
			return err
		}
		if err := backend.Save(ctx, id, next.Snapshot()); err != nil {
			return err
		}
		if payload == nil {
			return nil
		}
		return s.deliver(ctx, id, snap, *payload)
	})
}

type coerced struct {
	set   answers.Answers
	order []string
}

// coerceAll converts raw answers keyed by field id. A null value clears the
// answer. Every problem is reported, joined.
func coerceAll(sch *schema.Schema, raw map[string]any) (coerced, error) {
	out := coerced{set: answers.Answers{}}
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var problems []error
	for _, id := range ids {
		field, ok := sch.Field(id)
		if !ok {
			problems = append(problems, fmt.Errorf("%w: %q", ErrUnknownField, id))
			continue
		}
		out.order = append(out.order, id)
		if raw[id] == nil {
			continue
		}
		value, err := answers.Coerce(field, raw[id])
		if err != nil {
			problems = append(problems, err)
			continue
		}
		out.set[id] = value
	}
	return out, errors.Join(problems...)
}

func statusFor(err error) int {
	var delivery *deliveryError
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, form.ErrInvalidTransition), errors.Is(err, form.ErrSchemaMismatch):
		return http.StatusConflict
	case errors.Is(err, answers.ErrInvalidValue), errors.Is(err, ErrUnknownField):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrLockAcquire):
		return http.StatusServiceUnavailable
	case errors.As(err, &delivery):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error, view *form.View) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}
	if view != nil && view.StepCount > 0 {
		mapping := render.MapError(*view, err)
		body.Fields = mapping.Fields
		body.Form = mapping.Form
		body.View = view
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest answers 413 when the body hit the size cap and 400 otherwise.
func badRequest(w http.ResponseWriter, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("server: request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("server: invalid body: %w", err)
	}
	return nil
}
