package render_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/openapi"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/schema"
)

type stubRenderer struct {
	name string
}

func (s stubRenderer) Name() string        { return s.name }
func (s stubRenderer) ContentType() string { return "text/plain" }
func (s stubRenderer) Render(_ context.Context, view form.View, _ render.RenderOptions) ([]byte, error) {
	return []byte(s.name + ":" + view.StepName), nil
}

func onboardingView(t *testing.T) form.View {
	t.Helper()
	session, err := form.New(schema.Onboarding())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return session.View()
}

func TestRegistry_ResolveDefault(t *testing.T) {
	t.Parallel()

	registry := render.NewRegistry()
	if _, err := registry.Resolve(""); err == nil {
		t.Fatal("expected error for empty registry")
	}

	registry.MustRegister(stubRenderer{name: "html"})
	registry.MustRegister(stubRenderer{name: "markdown"})

	got, err := registry.Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Name() != "html" {
		t.Fatalf("expected first registered renderer as default, got %q", got.Name())
	}

	if err := registry.SetDefault("markdown"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	got, _ = registry.Resolve("")
	if got.Name() != "markdown" {
		t.Fatalf("expected markdown default, got %q", got.Name())
	}

	if err := registry.Register(stubRenderer{name: "html"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := registry.SetDefault("pdf"); err == nil {
		t.Fatal("expected unknown default error")
	}
	if diff := cmp.Diff([]string{"html", "markdown"}, registry.List()); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
	if !registry.Has("markdown") || registry.Has("pdf") {
		t.Fatal("Has reported the wrong membership")
	}
}

func TestHiddenFields(t *testing.T) {
	t.Parallel()

	merged := render.MergeHiddenFields(
		map[string]string{" _csrf ": "old", "": "skip"},
		render.CSRFToken("_csrf", "token"),
		render.SessionField("abc"),
		render.StepField(1),
		render.Hidden(" ", "ignored"),
	)
	want := []render.HiddenField{
		{Name: "_csrf", Value: "token"},
		{Name: "session_id", Value: "abc"},
		{Name: "step", Value: "1"},
	}
	if diff := cmp.Diff(want, render.SortedHiddenFields(merged)); diff != "" {
		t.Fatalf("hidden fields mismatch (-want +got):\n%s", diff)
	}
	if render.MergeHiddenFields(nil) != nil {
		t.Fatal("expected nil for empty merge")
	}
}

func TestMapErrorPayload(t *testing.T) {
	t.Parallel()

	view := onboardingView(t)
	mapping := render.MapErrorPayload(view, map[string][]string{
		"/answers/industry":       {"pick one", " pick one "},
		"body.company_name":       {"too short"},
		"website_url":             {"  "},
		"#/payload/hq_location/0": {"bad location"},
		"form":                    {"try again"},
		"unknown_field":           {"lost"},
	})

	wantFields := map[string][]string{
		"industry":     {"pick one"},
		"company_name": {"too short"},
		"hq_location":  {"bad location"},
	}
	if diff := cmp.Diff(wantFields, mapping.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
	if len(mapping.Form) != 2 {
		t.Fatalf("expected two form errors, got %v", mapping.Form)
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	view := onboardingView(t)

	t.Run("coerce", func(t *testing.T) {
		t.Parallel()
		field, _ := schema.Onboarding().Field("website_url")
		_, err := answers.Coerce(field, "not a url")
		mapping := render.MapError(view, err)
		if len(mapping.Fields["website_url"]) != 1 {
			t.Fatalf("expected website_url error, got %+v", mapping)
		}
	})

	t.Run("joined coerce", func(t *testing.T) {
		t.Parallel()
		url, _ := schema.Onboarding().Field("website_url")
		industry, _ := schema.Onboarding().Field("industry")
		_, urlErr := answers.Coerce(url, "not a url")
		_, industryErr := answers.Coerce(industry, "Crypto")
		mapping := render.MapError(view, errors.Join(urlErr, industryErr))
		if len(mapping.Fields["website_url"]) != 1 || len(mapping.Fields["industry"]) != 1 {
			t.Fatalf("expected both fields mapped, got %+v", mapping)
		}
		if mapping.Form != nil {
			t.Fatalf("expected no form errors, got %v", mapping.Form)
		}
	})

	t.Run("transition", func(t *testing.T) {
		t.Parallel()
		session, _ := form.New(schema.Onboarding())
		_, err := session.Next()
		if !errors.Is(err, form.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
		mapping := render.MapError(session.View(), err)
		if len(mapping.Fields) != len(view.Missing) {
			t.Fatalf("expected %d missing field errors, got %+v", len(view.Missing), mapping.Fields)
		}
		if len(mapping.Form) != 1 {
			t.Fatalf("expected the transition reason, got %v", mapping.Form)
		}
	})

	t.Run("payload", func(t *testing.T) {
		t.Parallel()
		err := errors.Join(
			&openapi.PayloadError{Field: "industry", Message: "required"},
			fmt.Errorf("decode failure"),
		)
		mapping := render.MapError(view, err)
		if diff := cmp.Diff(map[string][]string{"industry": {"required"}}, mapping.Fields); diff != "" {
			t.Fatalf("fields mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"decode failure"}, mapping.Form); diff != "" {
			t.Fatalf("form mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		if mapping := render.MapError(view, nil); mapping.Fields != nil || mapping.Form != nil {
			t.Fatalf("expected empty mapping, got %+v", mapping)
		}
	})
}

func TestErrorMapping_Apply(t *testing.T) {
	t.Parallel()

	opts := render.RenderOptions{
		Errors:     map[string][]string{"industry": {"first"}},
		FormErrors: []string{"existing"},
	}
	mapping := render.ErrorMapping{
		Fields: map[string][]string{"industry": {"first", "second"}},
		Form:   []string{"existing", "new"},
	}
	got := mapping.Apply(opts)
	if diff := cmp.Diff([]string{"first", "second"}, got.Errors["industry"]); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"existing", "new"}, got.FormErrors); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
	if len(opts.Errors["industry"]) != 1 {
		t.Fatal("Apply mutated the input options")
	}
}

func TestLocalizeView(t *testing.T) {
	t.Parallel()

	view := onboardingView(t)
	translator := render.MapTranslator{
		"es": {
			"seo-onboarding.title":                 "Alta de cliente",
			"seo-onboarding.steps.0.name":          "Organización",
			"seo-onboarding.fields.industry.label": "Industria",
		},
	}

	render.LocalizeView(&view, render.RenderOptions{Locale: "es", Translator: translator})

	if view.Title != "Alta de cliente" {
		t.Fatalf("title not translated: %q", view.Title)
	}
	if view.StepName != "Organización" || view.Progress[0].Name != "Organización" {
		t.Fatalf("step name not translated: %q / %q", view.StepName, view.Progress[0].Name)
	}
	if view.Fields[0].Field.Label != "Industria" {
		t.Fatalf("label not translated: %q", view.Fields[0].Field.Label)
	}
	if view.Fields[1].Field.Label != "Company Name" {
		t.Fatalf("missing key should keep the schema label, got %q", view.Fields[1].Field.Label)
	}
	if view.Progress[1].Name != "Content Inventory" {
		t.Fatalf("untranslated step changed: %q", view.Progress[1].Name)
	}
}

func TestLocalizeView_OnMissing(t *testing.T) {
	t.Parallel()

	view := onboardingView(t)
	var keys []string
	render.LocalizeView(&view, render.RenderOptions{
		Locale:     "fr",
		Translator: render.MapTranslator{},
		OnMissing: func(_ string, key string, _ []any, _ error) string {
			keys = append(keys, key)
			return "?"
		},
	})
	if view.Title != "?" {
		t.Fatalf("expected handler output, got %q", view.Title)
	}
	if len(keys) == 0 || keys[0] != "seo-onboarding.title" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestTemplateI18nFuncs(t *testing.T) {
	t.Parallel()

	funcs := render.TemplateI18nFuncs(render.MapTranslator{"en": {"greeting": "Hello %s"}}, render.TemplateI18nConfig{})
	translate := funcs["translate"].(func(any, string, ...any) string)
	if got := translate(map[string]any{"locale": "en"}, "greeting", "Ada"); got != "Hello Ada" {
		t.Fatalf("unexpected translation %q", got)
	}
	if got := translate("en", "missing"); got != "missing" {
		t.Fatalf("expected key fallback, got %q", got)
	}
	current := funcs["current_locale"].(func(any) string)
	if got := current(map[string]string{"locale": "de"}); got != "de" {
		t.Fatalf("unexpected locale %q", got)
	}
}

func TestApplySubset(t *testing.T) {
	t.Parallel()

	view := onboardingView(t)
	render.ApplySubset(&view, render.ParseSubset("industry, website_url ,"))

	var ids []string
	for _, fv := range view.Fields {
		ids = append(ids, fv.Field.ID)
	}
	if diff := cmp.Diff([]string{"industry", "website_url"}, ids); diff != "" {
		t.Fatalf("subset mismatch (-want +got):\n%s", diff)
	}
	for _, id := range view.Missing {
		if id != "industry" && id != "website_url" {
			t.Fatalf("missing list kept pruned field %q", id)
		}
	}

	view = onboardingView(t)
	before := len(view.Fields)
	render.ApplySubset(&view, render.FieldSubset{})
	if len(view.Fields) != before {
		t.Fatal("empty subset removed fields")
	}

	view = onboardingView(t)
	render.ApplySubset(&view, render.FieldSubset{Types: []schema.FieldType{schema.FieldTypeDropdown}})
	if len(view.Fields) != 1 || view.Fields[0].Field.ID != "industry" {
		t.Fatalf("type subset mismatch: %+v", view.Fields)
	}
}
