package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/mcoot/ari-accounts/internal/web/templates/layout"
)

// HomeData holds data for the home page
type HomeData struct {
	layout.PageData
}

// Home renders the landing page
func Home(data HomeData) templ.Component {
	return layout.Base(data.PageData, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layout.NewHTML(w)
		if data.User == nil {
			h.Raw(`<p id="welcome">welcome. <a href="/auth/signin">sign in</a> or <a href="/auth/signup">create an account</a>.</p>`)
			return h.Err()
		}
		h.Raw(`<p id="welcome">signed in as <strong>`)
		h.Text(data.User.Username)
		h.Raw(`</strong></p>`)
		if data.User.Bio != "" {
			h.Raw(`<blockquote id="bio">`)
			h.Text(data.User.Bio)
			h.Raw(`</blockquote>`)
		}
		return h.Err()
	}))
}
