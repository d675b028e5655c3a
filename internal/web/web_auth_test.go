package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/ari-accounts/internal/factory"
	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/services/session"
	"github.com/mcoot/ari-accounts/internal/storage"
	"github.com/mcoot/ari-accounts/internal/storage/memory"
	"github.com/mcoot/ari-accounts/internal/web/middleware"
)

// Captcha

func TestCaptchaEndpointReturnsImageAndAudio(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/auth/captcha")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var pair []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pair))
	require.Len(t, pair, 2)
	assert.True(t, strings.HasPrefix(pair[0], "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(pair[1], "data:audio/wav;base64,"))

	// Captchas are bound to the anonymous client cookie
	assert.True(t, ts.cookies.has(middleware.ClientCookieName))
}

func TestCaptchaIsBoundToClient(t *testing.T) {
	ts := newWebTestServer(t)
	ts.fetchCaptcha()

	// A different browser cannot spend this client's captcha
	other := newWebTestServer(t)
	other.handler = ts.handler
	form := url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
		"terms":    {"on"},
		"captcha":  {"000000"},
	}
	rr := other.post("/auth/signup", form)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthIndexRedirectsToSignin(t *testing.T) {
	ts := newWebTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := ts.request(method, "/auth/", url.Values{})
		assert.Equal(t, http.StatusFound, rr.Code, method)
		assert.Equal(t, "/auth/signin", rr.Header().Get("Location"), method)
	}
}

// Signup

func TestSignupShowsPIN(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/auth/signup")
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(rr.Body)
	assertContainsElement(t, doc, "form#signup input[name='captcha']")
	assertContainsElement(t, doc, "fieldset[data-captcha-src='/auth/captcha']")

	form := url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
		"terms":    {"on"},
	}
	rr = ts.postWithCaptcha("/auth/signup", form)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	doc = parseHTML(rr.Body)
	assertContainsText(t, doc, "#username", "alice")
	assertContainsText(t, doc, "#pin", "000000")

	user, err := ts.app.Credentials.Lookup(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.True(t, ts.app.Credentials.VerifyPIN(user, "000000"))
}

func TestSignupRequiresTerms(t *testing.T) {
	ts := newWebTestServer(t)

	form := url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
	}
	rr := ts.postWithCaptcha("/auth/signup", form)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	doc := parseHTML(rr.Body)
	assertFlash(t, doc, "error", "terms have not been accepted")

	_, err := ts.app.Credentials.Lookup(t.Context(), "alice")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestSignupRejectsInvalidUsername(t *testing.T) {
	ts := newWebTestServer(t)

	for _, username := range []string{"", "has space", strings.Repeat("a", model.UsernameMaxLen+1)} {
		form := url.Values{
			"username": {username},
			"password": {"correct horse"},
			"terms":    {"on"},
		}
		rr := ts.postWithCaptcha("/auth/signup", form)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "username %q", username)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signup("alice", "correct horse")

	form := url.Values{
		"username": {"alice"},
		"password": {"another one"},
		"terms":    {"on"},
	}
	rr := ts.postWithCaptcha("/auth/signup", form)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	doc := parseHTML(rr.Body)
	assertFlash(t, doc, "error", "username is taken / invalid request")
	// Username is kept in the form
	assert.Equal(t, "alice", doc.Find("form#signup input[name='username']").AttrOr("value", ""))
}

func TestSignupWithoutCaptcha(t *testing.T) {
	ts := newWebTestServer(t)

	form := url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
		"terms":    {"on"},
		"captcha":  {"000000"},
	}
	rr := ts.post("/auth/signup", form)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	doc := parseHTML(rr.Body)
	assertFlash(t, doc, "error", "invalid captcha")
	assertContainsElement(t, doc, "form#signup")

	_, err := ts.app.Credentials.Lookup(t.Context(), "alice")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestWrongCaptchaAnswerConsumesChallenge(t *testing.T) {
	ts := newWebTestServer(t)
	ts.fetchCaptcha()

	form := url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
		"terms":    {"on"},
		"captcha":  {"999999"},
	}
	rr := ts.post("/auth/signup", form)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// The right answer no longer works without a fresh challenge
	form.Set("captcha", "000000")
	rr = ts.post("/auth/signup", form)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCaptchaCannotBeReplayed(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signup("alice", "correct horse")

	form := url.Values{
		"username": {"bob"},
		"password": {"correct horse"},
		"terms":    {"on"},
		"captcha":  {"000000"},
	}
	rr := ts.post("/auth/signup", form)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestExpiredCaptchaIsRejected(t *testing.T) {
	ts := newWebTestServer(t)
	ts.fetchCaptcha()
	ts.app.MockClock.Advance(601 * time.Second)

	form := url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
		"terms":    {"on"},
		"captcha":  {"000000"},
	}
	rr := ts.post("/auth/signup", form)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// Signin

func TestSigninSuccess(t *testing.T) {
	ts := newWebTestServer(t)
	pin := ts.signup("alice", "correct horse")

	form := url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
		"pin":      {pin},
	}
	rr := ts.postWithCaptcha("/auth/signin", form)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	cookie := ts.cookies.cookies[middleware.AuthCookieName]
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int(ts.app.Sessions.Lifetime().Seconds()), cookie.MaxAge)

	rr = ts.followRedirect(rr)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(rr.Body)
	assertContainsText(t, doc, "nav .whoami", "alice")
	assertContainsText(t, doc, "#welcome", "signed in as")
}

func TestSigninFollowsNext(t *testing.T) {
	tests := []struct {
		next     string
		expected string
	}{
		{"/auth/manage", "/auth/manage"},
		{"", "/"},
		{"https://evil.example/", "/"},
		{"//evil.example/", "/"},
		{"/\\evil.example/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			ts := newWebTestServer(t)
			pin := ts.signup("alice", "correct horse")

			form := url.Values{
				"username": {"alice"},
				"password": {"correct horse"},
				"pin":      {pin},
				"next":     {tt.next},
			}
			rr := ts.postWithCaptcha("/auth/signin", form)
			require.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, tt.expected, rr.Header().Get("Location"))
		})
	}
}

func TestSigninErrors(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		pin      string
		status   int
		message  string
	}{
		{"wrong pin", "alice", "correct horse", "111111", http.StatusUnauthorized, "invalid pin and / or password"},
		{"wrong password", "alice", "wrong horse", "000000", http.StatusUnauthorized, "invalid pin and / or password"},
		{"unknown user", "bob", "correct horse", "000000", http.StatusNotFound, "no such user"},
		{"missing pin", "alice", "correct horse", "", http.StatusBadRequest, "invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newWebTestServer(t)
			ts.signup("alice", "correct horse")

			form := url.Values{
				"username": {tt.username},
				"password": {tt.password},
				"pin":      {tt.pin},
			}
			rr := ts.postWithCaptcha("/auth/signin", form)
			assert.Equal(t, tt.status, rr.Code)
			assert.False(t, ts.cookies.has(middleware.AuthCookieName))

			doc := parseHTML(rr.Body)
			assertFlash(t, doc, "error", tt.message)
		})
	}
}

func TestSignedInUserIsSentHome(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signedIn("alice", "correct horse")

	for _, path := range []string{"/auth/signup", "/auth/signin"} {
		rr := ts.get(path)
		require.Equal(t, http.StatusSeeOther, rr.Code, path)
		assert.Equal(t, "/", rr.Header().Get("Location"), path)

		doc := parseHTML(ts.followRedirect(rr).Body)
		assertFlash(t, doc, "info", "you are already signed in")
	}
}

func TestFingerprintChangeRevokesSession(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signedIn("alice", "correct horse")
	token := ts.cookies.cookies[middleware.AuthCookieName].Value

	ts.userAgent = "somebody-else/2.0"
	rr := ts.get("/auth/manage")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.False(t, ts.cookies.has(middleware.AuthCookieName))

	doc := parseHTML(ts.followRedirect(rr).Body)
	assertFlash(t, doc, "info", "your login expired, please sign in again")

	// The stolen token stays dead for the original browser too
	ts.userAgent = testUserAgent
	ts.cookies.cookies[middleware.AuthCookieName] = &http.Cookie{Name: middleware.AuthCookieName, Value: token}
	rr = ts.get("/auth/manage")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

// Manage

func TestManageRequiresLogin(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/auth/manage")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/signin?next=%2Fauth%2Fmanage", rr.Header().Get("Location"))

	rr = ts.followRedirect(rr)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(rr.Body)
	assertFlash(t, doc, "info", "please sign in")
	assert.Equal(t, "/auth/manage", doc.Find("form#signin input[name='next']").AttrOr("value", ""))
}

func TestManageUpdatesBio(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signedIn("alice", "correct horse")

	rr := ts.get("/auth/manage")
	require.Equal(t, http.StatusOK, rr.Code)
	assertContainsText(t, parseHTML(rr.Body), "#role", "user")

	rr = ts.postWithCaptcha("/auth/manage", url.Values{"bio": {"<b>hello</b>"}})
	require.Equal(t, http.StatusOK, rr.Code)

	doc := parseHTML(rr.Body)
	assertFlash(t, doc, "info", "user updated")
	assert.Equal(t, "<b>hello</b>", doc.Find("form#manage textarea[name='bio']").Text())

	rr = ts.get("/")
	doc = parseHTML(rr.Body)
	assertContainsText(t, doc, "#bio", "<b>hello</b>")
	assertNotContainsElement(t, doc, "#bio b")
}

func TestManageBioTooLong(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signedIn("alice", "correct horse")

	rr := ts.postWithCaptcha("/auth/manage", url.Values{"bio": {strings.Repeat("x", model.BioMaxLen+1)}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	user, err := ts.app.Credentials.Lookup(t.Context(), "alice")
	require.NoError(t, err)
	assert.Empty(t, user.Bio)
}

func TestManageRotatesPassword(t *testing.T) {
	ts := newWebTestServer(t)
	pin := ts.signedIn("alice", "correct horse")

	form := url.Values{
		"password_old": {"correct horse"},
		"password":     {"battery staple"},
		"pin":          {pin},
	}
	rr := ts.postWithCaptcha("/auth/manage", form)
	require.Equal(t, http.StatusOK, rr.Code)
	assertFlash(t, parseHTML(rr.Body), "info", "user updated")

	user, err := ts.app.Credentials.Lookup(t.Context(), "alice")
	require.NoError(t, err)
	assert.True(t, ts.app.Credentials.VerifyPassword(user, "battery staple"))
	assert.False(t, ts.app.Credentials.VerifyPassword(user, "correct horse"))
}

func TestManageIgnoresPartialPasswordGroup(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signedIn("alice", "correct horse")

	form := url.Values{"password": {"battery staple"}, "bio": {"still saved"}}
	rr := ts.postWithCaptcha("/auth/manage", form)
	require.Equal(t, http.StatusOK, rr.Code)
	assertFlash(t, parseHTML(rr.Body), "info", "user updated")

	user, err := ts.app.Credentials.Lookup(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "still saved", user.Bio)
	assert.True(t, ts.app.Credentials.VerifyPassword(user, "correct horse"))
	assert.False(t, ts.app.Credentials.VerifyPassword(user, "battery staple"))
}

func TestManagePasswordGroupErrors(t *testing.T) {
	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{
			name:   "wrong old password",
			form:   url.Values{"password_old": {"wrong"}, "password": {"battery staple"}, "pin": {"000000"}},
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong pin",
			form:   url.Values{"password_old": {"correct horse"}, "password": {"battery staple"}, "pin": {"123456"}},
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newWebTestServer(t)
			ts.signedIn("alice", "correct horse")

			tt.form.Set("bio", "should not stick")
			rr := ts.postWithCaptcha("/auth/manage", tt.form)
			assert.Equal(t, tt.status, rr.Code)

			// Nothing is committed when any part fails
			user, err := ts.app.Credentials.Lookup(t.Context(), "alice")
			require.NoError(t, err)
			assert.Empty(t, user.Bio)
			assert.True(t, ts.app.Credentials.VerifyPassword(user, "correct horse"))
		})
	}
}

// Delete

func TestDeleteWithoutConfirmation(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signedIn("alice", "correct horse")

	rr := ts.postWithCaptcha("/auth/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	assert.True(t, ts.cookies.has(middleware.AuthCookieName))

	doc := parseHTML(ts.followRedirect(rr).Body)
	assertFlash(t, doc, "info", "account not deleted")
	assertContainsText(t, doc, "nav .whoami", "alice")
}

func TestDeleteAccount(t *testing.T) {
	ts := newWebTestServer(t)
	pin := ts.signedIn("alice", "correct horse")

	rr := ts.postWithCaptcha("/auth/delete", url.Values{"sure": {"on"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.False(t, ts.cookies.has(middleware.AuthCookieName))

	doc := parseHTML(ts.followRedirect(rr).Body)
	assertFlash(t, doc, "info", "account deleted")
	assertNotContainsElement(t, doc, "nav .whoami")

	_, err := ts.app.Credentials.Lookup(t.Context(), "alice")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	form := url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
		"pin":      {pin},
	}
	rr = ts.postWithCaptcha("/auth/signin", form)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteRevokesOtherSessions(t *testing.T) {
	ts := newWebTestServer(t)
	pin := ts.signedIn("alice", "correct horse")

	// Second browser signed into the same account
	other := newWebTestServer(t)
	other.handler = ts.handler
	other.signin("alice", "correct horse", pin)

	rr := ts.postWithCaptcha("/auth/delete", url.Values{"sure": {"on"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = other.get("/auth/manage")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.False(t, other.cookies.has(middleware.AuthCookieName))
}

// deleteFailingStorage refuses to delete accounts
type deleteFailingStorage struct {
	storage.Storage
}

func (deleteFailingStorage) DeleteUser(ctx context.Context, username string) error {
	return errors.New("backend unavailable")
}

func TestDeleteFailureShowsMessageOnErrorPage(t *testing.T) {
	ts := newWebTestServerWithApp(t, factory.NewTestAppWithStorage(deleteFailingStorage{memory.New()}))
	ts.signedIn("alice", "correct horse")

	rr := ts.postWithCaptcha("/auth/delete", url.Values{"sure": {"on"}})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.False(t, ts.cookies.has("flash"), "failure message must not be deferred to the next page")

	doc := parseHTML(rr.Body)
	assertFlash(t, doc, "error", "failed to delete account")

	rr = ts.get("/auth/manage")
	require.Equal(t, http.StatusOK, rr.Code)
	assertNotContainsElement(t, parseHTML(rr.Body), ".flash")
}

// Signout

func TestSignout(t *testing.T) {
	ts := newWebTestServer(t)
	ts.signedIn("alice", "correct horse")
	token := ts.cookies.cookies[middleware.AuthCookieName].Value

	rr := ts.get("/auth/signout")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.False(t, ts.cookies.has(middleware.AuthCookieName))

	doc := parseHTML(ts.followRedirect(rr).Body)
	assertFlash(t, doc, "info", "you have been signed out")

	// The old token is revoked server side, even from the same browser
	_, err := ts.app.Sessions.Resolve(t.Context(), token, session.Fingerprint(ts.userAgent, webTestRemoteAddr))
	assert.ErrorIs(t, err, session.ErrRevoked)

	// Replaying the old cookie gets nowhere
	ts.cookies.cookies[middleware.AuthCookieName] = &http.Cookie{Name: middleware.AuthCookieName, Value: token}
	rr = ts.get("/auth/manage")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "/auth/signin")
}

func TestSignoutRequiresLogin(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/auth/signout")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "/auth/signin")
}
