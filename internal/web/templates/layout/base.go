package layout

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/mcoot/ari-accounts/internal/model"
)

// FlashMessage is a one-shot notice shown at the top of a page
type FlashMessage struct {
	Type    string // info or error
	Message string
}

// PageData is shared by every page
type PageData struct {
	Title string
	User  *model.User
	Flash *FlashMessage
}

// Base wraps body in the site chrome
func Base(data PageData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := NewHTML(w)
		h.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.Raw(`<title>`)
		h.Text(data.Title)
		h.Raw(` | accounts</title><link rel="stylesheet" href="/static/style.css"></head><body>`)

		h.Raw(`<nav><a href="/">home</a>`)
		if data.User != nil {
			h.Raw(` <a href="/auth/manage">manage</a> <a href="/auth/delete">delete</a> <a href="/auth/signout">sign out</a>`)
			h.Raw(` <span class="whoami">`)
			h.Text(data.User.Username)
			h.Raw(`</span>`)
		} else {
			h.Raw(` <a href="/auth/signin">sign in</a> <a href="/auth/signup">sign up</a>`)
		}
		h.Raw(`</nav><main>`)

		if data.Flash != nil {
			h.Raw(`<div class="flash flash-`)
			h.Text(data.Flash.Type)
			h.Raw(`" role="alert">`)
			h.Text(data.Flash.Message)
			h.Raw(`</div>`)
		}

		h.Raw(`<h1>`)
		h.Text(data.Title)
		h.Raw(`</h1>`)
		h.Component(ctx, body)
		h.Raw(`</main></body></html>`)
		return h.Err()
	})
}
