package layout

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// HTML writes markup in order and keeps the first write error, so
// components read top to bottom without error checks on every line.
type HTML struct {
	w   io.Writer
	err error
}

// NewHTML wraps w
func NewHTML(w io.Writer) *HTML {
	return &HTML{w: w}
}

// Raw writes trusted markup as is
func (h *HTML) Raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// Text writes s HTML-escaped. Safe for element content and quoted attributes.
func (h *HTML) Text(s string) {
	h.Raw(templ.EscapeString(s))
}

// Component renders a nested component
func (h *HTML) Component(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// Err returns the first error encountered
func (h *HTML) Err() error {
	return h.err
}
