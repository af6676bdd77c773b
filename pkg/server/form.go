package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/renderers/vanilla"
	"github.com/goliatone/go-onboard/pkg/schema"
)

var errStaleStep = fmt.Errorf("%w: the form was submitted for another step", form.ErrInvalidTransition)

// postForm handles posts from the html renderer. The visible fields of the
// active step are applied, then the "op" button runs. Failures re-render the
// step with field errors; success redirects to the rendered session.
func (s *Server) postForm(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(r); err != nil {
		badRequest(w, err, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	op := r.PostFormValue("op")
	if op == "" {
		op = opNext
	}

	var current form.Session
	err := s.commit(r.Context(), id, func(session form.Session) (form.Session, *form.Payload, error) {
		current = session
		if posted := r.PostFormValue("step"); posted != "" {
			if step, err := strconv.Atoi(posted); err != nil || step != session.StepIndex() {
				return session, nil, errStaleStep
			}
		}

		// Going back never applies the posted values.
		if op != opBack {
			next, err := applyPosted(session, r)
			current = next
			if err != nil {
				return session, nil, err
			}
			session = next
		}

		switch op {
		case opNext, opBack:
			next, err := s.step(session, op)
			return next, nil, err
		case opSubmit:
			payload, submitted, err := s.submitSession(session)
			if err != nil {
				return session, nil, err
			}
			return submitted, &payload, nil
		default:
			return session, nil, fmt.Errorf("%w: unknown operation %q", form.ErrInvalidTransition, op)
		}
	})

	switch {
	case err == nil:
		http.Redirect(w, r, "/sessions/"+id+"/render?renderer="+vanilla.Name, http.StatusSeeOther)
	case current.Schema() == nil:
		s.fail(w, err, nil)
	default:
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.fail(w, err, nil)
			return
		}
		mapping := render.MapError(current.View(), err)
		q := r.URL.Query()
		q.Set("renderer", vanilla.Name)
		r.URL.RawQuery = q.Encode()
		s.writeRendered(w, r, id, current, status, render.RenderOptions{
			Errors:     mapping.Fields,
			FormErrors: mapping.Form,
		})
	}
}

func (s *Server) parseForm(r *http.Request) error {
	if err := r.ParseMultipartForm(s.maxForm); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return fmt.Errorf("server: parse form: %w", err)
	}
	if r.PostForm == nil {
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("server: parse form: %w", err)
		}
	}
	return nil
}

// applyPosted copies the posted values of the active step. Fields missing
// from the post keep their answers; an empty value clears the answer. File
// inputs record the upload's metadata only. The returned session carries
// every value that coerced, even when others failed.
func applyPosted(session form.Session, r *http.Request) (form.Session, error) {
	var problems []error
	for _, field := range session.Step().Fields {
		if field.Type == schema.FieldTypeFile {
			if r.MultipartForm == nil {
				continue
			}
			headers := r.MultipartForm.File[field.ID]
			if len(headers) == 0 || headers[0].Filename == "" {
				continue
			}
			header := headers[0]
			session = session.SetAnswer(field.ID, answers.File(answers.FileRef{
				Name:        header.Filename,
				Size:        header.Size,
				ContentType: header.Header.Get("Content-Type"),
			}))
			continue
		}

		values, ok := r.PostForm[field.ID]
		if !ok {
			continue
		}
		raw := ""
		if len(values) > 0 {
			raw = values[0]
		}
		if raw == "" {
			session = session.ClearAnswer(field.ID)
			continue
		}
		value, err := answers.Coerce(field, raw)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		session = session.SetAnswer(field.ID, value)
	}
	return session, errors.Join(problems...)
}
