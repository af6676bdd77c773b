// Package render defines the contract between a form session and the
// presentation layers that draw it: HTML pages, markdown summaries, terminal
// wizards.
package render

import (
	"context"

	"github.com/goliatone/go-onboard/pkg/form"
)

// Renderer converts the view of the active step into bytes (HTML, markdown,
// serialised answers).
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, view form.View, options RenderOptions) ([]byte, error)
}
