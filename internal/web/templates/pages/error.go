package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/mcoot/ari-accounts/internal/web/templates/layout"
)

// ErrorData holds data for the generic HTTP error page
type ErrorData struct {
	layout.PageData
	Code        int
	Summary     string
	Description string
}

// Error renders the HTTP error page
func Error(data ErrorData) templ.Component {
	return layout.Base(data.PageData, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layout.NewHTML(w)
		h.Raw(`<p id="code">`)
		h.Raw(strconv.Itoa(data.Code))
		h.Raw(`</p><p id="summary">`)
		h.Text(data.Summary)
		h.Raw(`</p><p id="description">`)
		h.Text(data.Description)
		h.Raw(`</p><p><a href="/">return home</a></p>`)
		return h.Err()
	}))
}
