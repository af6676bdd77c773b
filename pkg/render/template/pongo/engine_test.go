package pongo_test

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/goliatone/go-onboard/pkg/render/template/pongo"
)

//go:embed testdata/templates/*.tmpl
var embeddedTemplates embed.FS

func TestEngine_RenderTemplate(t *testing.T) {
	t.Parallel()

	engine := newEngine(t)

	var buf bytes.Buffer
	result, err := engine.RenderTemplate("hello", map[string]any{"name": "Ada"}, &buf)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "Hello Ada!\n"; result != want || buf.String() != want {
		t.Fatalf("render mismatch\nwant: %q\n got: %q (writer %q)", want, result, buf.String())
	}
}

func TestEngine_RenderStructData(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}
	result, err := newEngine(t).Render("hello.tmpl", payload{Name: "Grace"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result != "Hello Grace!\n" {
		t.Fatalf("unexpected output %q", result)
	}
}

func TestEngine_GlobalContext(t *testing.T) {
	t.Parallel()

	engine := newEngine(t)
	if err := engine.GlobalContext(map[string]any{
		"settings": map[string]any{"env": "staging"},
	}); err != nil {
		t.Fatalf("global context: %v", err)
	}

	result, err := engine.RenderTemplate("use-global", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result != "env=staging\n" {
		t.Fatalf("unexpected output %q", result)
	}
}

func TestEngine_RegisterFilter(t *testing.T) {
	t.Parallel()

	engine := newEngine(t)
	err := engine.RegisterFilter("shout", func(input any, _ any) (any, error) {
		if input == nil {
			return "", nil
		}
		return fmt.Sprintf("%s!", strings.ToUpper(fmt.Sprint(input))), nil
	})
	if err != nil {
		t.Fatalf("register filter: %v", err)
	}
	if err := engine.RegisterFilter("shout", func(any, any) (any, error) { return nil, nil }); err == nil {
		t.Fatal("expected duplicate filter error")
	}

	result, err := engine.RenderTemplate("use-filter", map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result != "ADA!\n" {
		t.Fatalf("unexpected output %q", result)
	}
}

func TestEngine_DefaultFilters(t *testing.T) {
	t.Parallel()

	result, err := newEngine(t).RenderTemplate("field", map[string]any{
		"id":   "website url",
		"type": "url",
		"size": 2048,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<label for="field-website-url">url 2.0 KB</label>` + "\n"
	if result != want {
		t.Fatalf("render mismatch\nwant: %q\n got: %q", want, result)
	}
}

func TestEngine_RenderString(t *testing.T) {
	t.Parallel()

	result, err := newEngine(t).Render("{{ value|trim }}", map[string]any{"value": "  padded "})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result != "padded" {
		t.Fatalf("unexpected output %q", result)
	}
}

func TestNew_RequiresSource(t *testing.T) {
	t.Parallel()

	if _, err := pongo.New(); err == nil {
		t.Fatal("expected error without template source")
	}
}

func newEngine(t *testing.T) *pongo.Engine {
	t.Helper()

	templatesFS, err := fs.Sub(embeddedTemplates, "testdata/templates")
	if err != nil {
		t.Fatalf("sub fs: %v", err)
	}

	engine, err := pongo.New(pongo.WithFS(templatesFS), pongo.WithName(t.Name()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}
