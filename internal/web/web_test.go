package web_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/ari-accounts/internal/factory"
	"github.com/mcoot/ari-accounts/internal/testutil"
	"github.com/mcoot/ari-accounts/internal/web"
	"github.com/mcoot/ari-accounts/internal/web/middleware"
)

const (
	testUserAgent     = "webtest/1.0"
	webTestRemoteAddr = "192.0.2.1:1234"
)

// webTestServer provides a test server for web interface testing
type webTestServer struct {
	t         *testing.T
	handler   http.Handler
	app       *factory.TestApp
	cookies   *cookieJar
	userAgent string
}

// newWebTestServer creates a new test server with all dependencies wired
func newWebTestServer(t *testing.T) *webTestServer {
	t.Helper()
	return newWebTestServerWithApp(t, factory.NewTestApp())
}

// newWebTestServerWithApp creates a test server around app
func newWebTestServerWithApp(t *testing.T, app *factory.TestApp) *webTestServer {
	t.Helper()

	router := web.NewRouter(web.RouterConfig{
		Logger:      testutil.NopLogger(),
		Accounts:    app.Accounts,
		Sessions:    app.Sessions,
		Credentials: app.Credentials,
		Captcha:     app.Captcha,
		Cookies:     middleware.Cookies{Secure: false},
		StaticDir:   "", // No static files in tests
	})

	return &webTestServer{
		t:         t,
		handler:   router,
		app:       app,
		cookies:   newCookieJar(),
		userAgent: testUserAgent,
	}
}

// request makes an HTTP request and returns the response
func (ts *webTestServer) request(method, path string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", ts.userAgent)
	req.RemoteAddr = webTestRemoteAddr

	// Add cookies from jar
	ts.cookies.addTo(req)

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	// Extract Set-Cookie headers into jar
	ts.cookies.extract(rr)

	return rr
}

// get makes a GET request
func (ts *webTestServer) get(path string) *httptest.ResponseRecorder {
	return ts.request(http.MethodGet, path, nil)
}

// post makes a POST request with form data
func (ts *webTestServer) post(path string, form url.Values) *httptest.ResponseRecorder {
	return ts.request(http.MethodPost, path, form)
}

// postWithCaptcha fetches a captcha for the client and submits form with
// the answer the mocked random source produces
func (ts *webTestServer) postWithCaptcha(path string, form url.Values) *httptest.ResponseRecorder {
	ts.t.Helper()
	ts.fetchCaptcha()
	form.Set("captcha", factory.TestCaptchaAnswer)
	return ts.post(path, form)
}

// fetchCaptcha issues a captcha for the current client and returns the
// [image, audio] pair
func (ts *webTestServer) fetchCaptcha() []string {
	ts.t.Helper()
	rr := ts.get("/auth/captcha")
	require.Equal(ts.t, http.StatusOK, rr.Code, "Expected captcha to be issued")

	var pair []string
	require.NoError(ts.t, json.Unmarshal(rr.Body.Bytes(), &pair))
	return pair
}

// parseHTML parses the response body as HTML
func parseHTML(r io.Reader) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		panic(err)
	}
	return doc
}

// cookieJar maintains cookies across requests (like a browser would)
type cookieJar struct {
	cookies map[string]*http.Cookie
}

func newCookieJar() *cookieJar {
	return &cookieJar{
		cookies: make(map[string]*http.Cookie),
	}
}

// addTo adds all cookies to the request
func (j *cookieJar) addTo(req *http.Request) {
	for _, cookie := range j.cookies {
		req.AddCookie(cookie)
	}
}

// extract extracts Set-Cookie headers from response
func (j *cookieJar) extract(rr *httptest.ResponseRecorder) {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.MaxAge < 0 {
			// Cookie being deleted
			delete(j.cookies, cookie.Name)
		} else {
			j.cookies[cookie.Name] = cookie
		}
	}
}

// has returns true if the named cookie is set
func (j *cookieJar) has(name string) bool {
	_, ok := j.cookies[name]
	return ok
}

// Helper functions for common test operations

// signup creates an account through the web form and returns the PIN
func (ts *webTestServer) signup(username, password string) string {
	ts.t.Helper()
	form := url.Values{
		"username": {username},
		"password": {password},
		"terms":    {"on"},
	}
	rr := ts.postWithCaptcha("/auth/signup", form)
	require.Equal(ts.t, http.StatusOK, rr.Code, "Expected signup to succeed")

	doc := parseHTML(rr.Body)
	pin := strings.TrimSpace(doc.Find("#pin").Text())
	require.Len(ts.t, pin, 6, "Expected a six digit PIN")
	return pin
}

// signin signs in through the web form
func (ts *webTestServer) signin(username, password, pin string) {
	ts.t.Helper()
	form := url.Values{
		"username": {username},
		"password": {password},
		"pin":      {pin},
	}
	rr := ts.postWithCaptcha("/auth/signin", form)
	require.Equal(ts.t, http.StatusSeeOther, rr.Code, "Expected redirect after signin")
	require.True(ts.t, ts.cookies.has(middleware.AuthCookieName), "Expected authorization cookie to be set")
}

// signedIn creates an account and signs into it
func (ts *webTestServer) signedIn(username, password string) string {
	ts.t.Helper()
	pin := ts.signup(username, password)
	ts.signin(username, password, pin)
	return pin
}

// followRedirect follows a redirect and returns the response
func (ts *webTestServer) followRedirect(rr *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	ts.t.Helper()
	location := rr.Header().Get("Location")
	require.NotEmpty(ts.t, location, "Expected Location header for redirect")
	return ts.get(location)
}

// Assertion helpers

// assertContainsElement asserts that the document contains an element matching the selector
func assertContainsElement(t *testing.T, doc *goquery.Document, selector string) {
	t.Helper()
	if doc.Find(selector).Length() == 0 {
		t.Errorf("Expected to find element matching %q, but none found", selector)
	}
}

// assertNotContainsElement asserts that the document does not contain an element matching the selector
func assertNotContainsElement(t *testing.T, doc *goquery.Document, selector string) {
	t.Helper()
	if doc.Find(selector).Length() > 0 {
		t.Errorf("Expected NOT to find element matching %q, but found %d", selector, doc.Find(selector).Length())
	}
}

// assertContainsText asserts that the element matching the selector contains the text
func assertContainsText(t *testing.T, doc *goquery.Document, selector, text string) {
	t.Helper()
	el := doc.Find(selector)
	if el.Length() == 0 {
		t.Errorf("Expected to find element matching %q, but none found", selector)
		return
	}
	if !strings.Contains(el.Text(), text) {
		t.Errorf("Expected element %q to contain %q, but got %q", selector, text, el.Text())
	}
}

// assertFlash asserts the page shows a flash notice of the given type
func assertFlash(t *testing.T, doc *goquery.Document, flashType, text string) {
	t.Helper()
	assertContainsText(t, doc, ".flash-"+flashType, text)
}
