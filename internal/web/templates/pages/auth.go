package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/web/templates/layout"
)

// SignupData holds data for the signup page
type SignupData struct {
	layout.PageData
	Username string
}

// Signup renders the signup form
func Signup(data SignupData) templ.Component {
	return layout.Base(data.PageData, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layout.NewHTML(w)
		h.Raw(`<form id="signup" method="post" action="/auth/signup">`)
		h.Raw(`<label>username <input type="text" name="username" required maxlength="`)
		h.Raw(strconv.Itoa(model.UsernameMaxLen))
		h.Raw(`" value="`)
		h.Text(data.Username)
		h.Raw(`"></label>`)
		h.Raw(`<label>password <input type="password" name="password" autocomplete="new-password" required></label>`)
		h.Raw(`<label><input type="checkbox" name="terms"> i accept the terms</label>`)
		captchaField(h)
		h.Raw(`<button type="submit">sign up</button></form>`)
		h.Raw(`<p>already have an account? <a href="/auth/signin">sign in</a></p>`)
		return h.Err()
	}))
}

// CreatedData holds data for the account created page
type CreatedData struct {
	layout.PageData
	Username string
	PIN      string
}

// Created shows the generated PIN. It is never displayed again.
func Created(data CreatedData) templ.Component {
	return layout.Base(data.PageData, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layout.NewHTML(w)
		h.Raw(`<p>account <strong id="username">`)
		h.Text(data.Username)
		h.Raw(`</strong> created.</p><p>your PIN is <code id="pin">`)
		h.Text(data.PIN)
		h.Raw(`</code></p><p>write it down now. it is needed to sign in and will not be shown again.</p>`)
		h.Raw(`<p><a href="/auth/signin">sign in</a></p>`)
		return h.Err()
	}))
}

// SigninData holds data for the signin page
type SigninData struct {
	layout.PageData
	Username string
	Next     string
}

// Signin renders the signin form
func Signin(data SigninData) templ.Component {
	return layout.Base(data.PageData, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layout.NewHTML(w)
		h.Raw(`<form id="signin" method="post" action="/auth/signin">`)
		if data.Next != "" {
			h.Raw(`<input type="hidden" name="next" value="`)
			h.Text(data.Next)
			h.Raw(`">`)
		}
		h.Raw(`<label>username <input type="text" name="username" required value="`)
		h.Text(data.Username)
		h.Raw(`"></label>`)
		h.Raw(`<label>password <input type="password" name="password" autocomplete="current-password" required></label>`)
		h.Raw(`<label>PIN <input type="password" name="pin" inputmode="numeric" maxlength="`)
		h.Raw(strconv.Itoa(model.PINLen))
		h.Raw(`" required></label>`)
		captchaField(h)
		h.Raw(`<button type="submit">sign in</button></form>`)
		h.Raw(`<p>no account? <a href="/auth/signup">sign up</a></p>`)
		return h.Err()
	}))
}

// ManageData holds data for the manage page
type ManageData struct {
	layout.PageData
}

// Manage renders the account settings form
func Manage(data ManageData) templ.Component {
	return layout.Base(data.PageData, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layout.NewHTML(w)
		bio := ""
		role := ""
		if data.User != nil {
			bio = data.User.Bio
			role = data.User.Role.String()
		}
		h.Raw(`<p>role: <span id="role">`)
		h.Text(role)
		h.Raw(`</span></p>`)
		h.Raw(`<form id="manage" method="post" action="/auth/manage">`)
		h.Raw(`<label>bio <textarea name="bio" maxlength="`)
		h.Raw(strconv.Itoa(model.BioMaxLen))
		h.Raw(`">`)
		h.Text(bio)
		h.Raw(`</textarea></label>`)
		h.Raw(`<fieldset><legend>change password</legend>`)
		h.Raw(`<label>current password <input type="password" name="password_old" autocomplete="current-password"></label>`)
		h.Raw(`<label>new password <input type="password" name="password" autocomplete="new-password"></label>`)
		h.Raw(`<label>PIN <input type="password" name="pin" inputmode="numeric" maxlength="`)
		h.Raw(strconv.Itoa(model.PINLen))
		h.Raw(`"></label></fieldset>`)
		captchaField(h)
		h.Raw(`<button type="submit">save</button></form>`)
		return h.Err()
	}))
}

// Delete renders the account deletion confirmation
func Delete(data layout.PageData) templ.Component {
	return layout.Base(data, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := layout.NewHTML(w)
		h.Raw(`<form id="delete" method="post" action="/auth/delete">`)
		h.Raw(`<p>deleting your account removes it and signs out every session. this cannot be undone.</p>`)
		h.Raw(`<label><input type="checkbox" name="sure"> i am sure</label>`)
		captchaField(h)
		h.Raw(`<button type="submit">delete account</button></form>`)
		return h.Err()
	}))
}
