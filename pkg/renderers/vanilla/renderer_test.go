package vanilla_test

import (
	"context"
	"strings"
	"testing"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-onboard/pkg/answers"
	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/renderers/vanilla"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/testsupport"
)

func newSession(t *testing.T) form.Session {
	t.Helper()
	session, err := form.New(schema.Onboarding())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return session
}

func renderView(t *testing.T, view form.View, opts render.RenderOptions, options ...vanilla.Option) string {
	t.Helper()
	renderer, err := vanilla.New(options...)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := renderer.Render(context.Background(), view, opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return string(out)
}

func assertContains(t *testing.T, output string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		if !strings.Contains(output, fragment) {
			t.Fatalf("expected output to contain %q\n%s", fragment, output)
		}
	}
}

func assertNotContains(t *testing.T, output string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		if strings.Contains(output, fragment) {
			t.Fatalf("expected output not to contain %q\n%s", fragment, output)
		}
	}
}

func TestRenderer_Metadata(t *testing.T) {
	t.Parallel()

	renderer, err := vanilla.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if renderer.Name() != "html" {
		t.Fatalf("unexpected name %q", renderer.Name())
	}
	if renderer.ContentType() != "text/html; charset=utf-8" {
		t.Fatalf("unexpected content type %q", renderer.ContentType())
	}
}

func TestRenderer_FirstStep(t *testing.T) {
	t.Parallel()

	session := newSession(t).SetAnswer("company_name", answers.Text("<b>Acme</b>"))
	output := renderView(t, session.View(), render.RenderOptions{
		Action:       "/sessions/abc/form",
		HiddenFields: render.MergeHiddenFields(nil, render.SessionField("abc"), render.StepField(0)),
	})

	assertContains(t, output,
		`action="/sessions/abc/form"`,
		`method="post"`,
		`<h1>Client Onboarding – Start SEO Engine</h1>`,
		`aria-current="step">Organization Info</li>`,
		`onboard-progress__step--pending">Content Inventory</li>`,
		`<select id="onboard-industry" name="industry" required`,
		`<option value="">Select…</option>`,
		`<option value="Real Estate">Real Estate</option>`,
		`value="&lt;b&gt;Acme&lt;/b&gt;"`,
		`<input type="url" id="onboard-website_url" name="website_url" value="" placeholder="https://example.com" required`,
		`<textarea id="onboard-description" name="description" rows="4"`,
		`City &amp; Country`,
		`<input type="hidden" name="session_id" value="abc">`,
		`<input type="hidden" name="step" value="0">`,
		`name="op" value="next"`,
		`.onboard-form {`,
	)
	assertNotContains(t, output,
		`name="op" value="back"`,
		`enctype="multipart/form-data"`,
		`name="_method"`,
	)
}

func TestRenderer_SecondStepFileFields(t *testing.T) {
	t.Parallel()

	session := testsupport.Onboarding(t, map[string]string{"industry": "D2C"}, 1).
		SetAnswer("marketplace_listings", answers.File(answers.FileRef{Name: "amazon.csv", Size: 2048}))

	output := renderView(t, session.View(), render.RenderOptions{Method: "PUT"})
	assertContains(t, output,
		`enctype="multipart/form-data"`,
		`<input type="hidden" name="_method" value="PUT">`,
		`<input type="file" id="onboard-product_catalog" name="product_catalog" required`,
		`<p class="onboard-file">amazon.csv (2.0 KB)</p>`,
		`onboard-progress__step--complete">Organization Info</li>`,
		`name="op" value="back"`,
		`name="op" value="submit"`,
	)
	assertNotContains(t, output, `name="programs_courses"`, `name="service_list"`)
}

func TestRenderer_ErrorsAndSelection(t *testing.T) {
	t.Parallel()

	session := newSession(t).SetAnswer("industry", answers.Text("SaaS"))
	output := renderView(t, session.View(), render.RenderOptions{
		Errors:     map[string][]string{"company_name": {"This field is required"}},
		FormErrors: []string{"Complete the highlighted fields"},
	})
	assertContains(t, output,
		`<option value="SaaS" selected>SaaS</option>`,
		`onboard-field--invalid`,
		`<p class="onboard-error">This field is required</p>`,
		`role="alert"`,
		`<li>Complete the highlighted fields</li>`,
	)
}

func TestRenderer_SubsetAndTranslation(t *testing.T) {
	t.Parallel()

	translator := render.MapTranslator{"es": {
		"onboard.actions.next":                 "Siguiente",
		"seo-onboarding.fields.industry.label": "Industria",
		"onboard.select.prompt":                "Elegir…",
	}}
	output := renderView(t, newSession(t).View(), render.RenderOptions{
		Subset:     render.FieldSubset{IDs: []string{"industry"}},
		Locale:     "es",
		Translator: translator,
	})
	assertContains(t, output, `>Industria <span`, `Siguiente`, `<option value="">Elegir…</option>`)
	assertNotContains(t, output, `name="company_name"`)
}

func TestRenderer_Theme(t *testing.T) {
	t.Parallel()

	cfg := &theme.RendererConfig{
		Theme:   "acme",
		Variant: "dark",
		CSSVars: map[string]string{"--brand": "#123456"},
		AssetURL: func(key string) string {
			if key == "onboard.stylesheet" {
				return "/themes/acme/onboard.css"
			}
			return ""
		},
	}
	output := renderView(t, newSession(t).View(), render.RenderOptions{Theme: cfg})
	assertContains(t, output,
		`<link rel="stylesheet" href="/themes/acme/onboard.css">`,
		`--brand: #123456;`,
		`data-theme="acme"`,
		`data-theme-variant="dark"`,
	)
	assertNotContains(t, output, `.onboard-form {`)
}

func TestRenderer_Submitted(t *testing.T) {
	t.Parallel()

	session := newSession(t).
		SetAnswer("industry", answers.Text("SaaS")).
		SetAnswer("company_name", answers.Text("Acme")).
		SetAnswer("website_url", answers.Text("https://acme.test"))
	session, err := session.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	session = session.SetAnswer("features_modules", answers.Text("Dashboards"))
	_, done, err := session.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	output := renderView(t, done.View(), render.RenderOptions{}, vanilla.WithStylesheet("/static/onboard.css"))
	assertContains(t, output, `class="onboard-submitted"`, `href="/static/onboard.css"`)
	assertNotContains(t, output, `<fieldset`, `.onboard-form {`)
}

func TestRenderer_CancelledContext(t *testing.T) {
	t.Parallel()

	renderer, err := vanilla.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := renderer.Render(ctx, newSession(t).View(), render.RenderOptions{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestAssetsFS(t *testing.T) {
	t.Parallel()

	file, err := vanilla.AssetsFS().Open(vanilla.StylesheetName)
	if err != nil {
		t.Fatalf("open stylesheet: %v", err)
	}
	_ = file.Close()
}
