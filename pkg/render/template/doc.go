// Package template defines the template engine seam used by the HTML and
// markdown renderers. The pongo subpackage provides the pongo2 implementation.
package template
