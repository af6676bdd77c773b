// Package onboard is the top-level entry point of the onboarding form engine.
// It re-exports the pieces most callers need: the orchestrator, the schema
// loader and the embedded html assets.
package onboard

import (
	"context"
	"io/fs"

	internalLoader "github.com/goliatone/go-onboard/internal/schema/loader"
	"github.com/goliatone/go-onboard/pkg/orchestrator"
	"github.com/goliatone/go-onboard/pkg/render"
	"github.com/goliatone/go-onboard/pkg/renderers/vanilla"
	"github.com/goliatone/go-onboard/pkg/schema"
)

// RenderOptions describes per-request overrides that renderers can use to
// surface server-side errors or hide fields.
type RenderOptions = render.RenderOptions

// FieldSubset aliases render.FieldSubset for callers rendering part of a step.
type FieldSubset = render.FieldSubset

// Request aliases orchestrator.Request.
type Request = orchestrator.Request

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// GenerateHTML loads the schema at source, starts a session and renders its
// first step with the named renderer ("html" when empty).
func GenerateHTML(ctx context.Context, source schema.Source, rendererName string, options ...orchestrator.Option) ([]byte, error) {
	gen := orchestrator.New(options...)
	return gen.Generate(ctx, orchestrator.Request{
		Source:   source,
		Renderer: rendererName,
	})
}

// NewLoader constructs a schema loader using the internal implementation while
// keeping the concrete type hidden from consumers.
func NewLoader(options ...schema.LoaderOption) schema.Loader {
	return internalLoader.New(schema.NewLoaderOptions(options...))
}

// EmbeddedTemplates exposes the built-in html templates so callers can reuse
// or extend them without importing the renderer package directly.
func EmbeddedTemplates() fs.FS {
	return vanilla.TemplatesFS()
}

// AssetsFS exposes the default stylesheet for serving next to rendered forms.
//
// Typical mount:
//
//	mux.Handle("/assets/",
//	  http.StripPrefix("/assets/",
//	    http.FileServerFS(onboard.AssetsFS()),
//	  ),
//	)
func AssetsFS() fs.FS {
	return vanilla.AssetsFS()
}
