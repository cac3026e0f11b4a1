package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"spendalyzer/internal/core"
	"spendalyzer/internal/log"
	"spendalyzer/internal/services"
	"spendalyzer/internal/session"
)

// client replays the session cookie the way a browser would.
type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newClient(t *testing.T, opts Options) *client {
	t.Helper()
	if opts.UploadsPerMinute == 0 {
		opts.UploadsPerMinute = 1000
	}
	svc := services.NewDashboardService(session.NewMemoryStore(100, time.Hour), nil, log.Discard(), core.Money{Cents: 200000})
	t.Cleanup(func() { _ = svc.Close() })
	return &client{t: t, srv: NewServer(opts, svc, log.Discard())}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rr
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return c.do(req)
}

func (c *client) sendJSON(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) upload(path, filename string, content []byte) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		c.t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestHealthAndReady(t *testing.T) {
	c := newClient(t, Options{})
	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rr := c.get(path)
		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Fatalf("%s = %d %q", path, rr.Code, rr.Body.String())
		}
	}
	if c.cookie != nil {
		t.Fatal("health checks should not create sessions")
	}
}

func TestReadyWithoutDashboard(t *testing.T) {
	srv := NewServer(Options{}, nil, log.Discard())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestIndexIssuesSessionCookie(t *testing.T) {
	c := newClient(t, Options{})

	rr := c.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if c.cookie == nil || !c.cookie.HttpOnly || !session.ValidID(c.cookie.Value) {
		t.Fatalf("session cookie = %+v", c.cookie)
	}
	body := rr.Body.String()
	for _, want := range []string{"<html", `id="dashboard"`, "No data loaded yet", "Groceries"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	for _, h := range []string{"Content-Security-Policy", "X-Frame-Options", "X-Request-ID"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}

	first := c.cookie.Value
	rr = c.get("/")
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("known session should not be reissued")
	}
	if c.cookie.Value != first {
		t.Fatal("cookie changed")
	}
}

func TestInvalidCookieReplaced(t *testing.T) {
	c := newClient(t, Options{})
	c.cookie = &http.Cookie{Name: SessionCookie, Value: "not-a-session"}
	c.get("/")
	if c.cookie.Value == "not-a-session" || !session.ValidID(c.cookie.Value) {
		t.Fatalf("cookie = %q", c.cookie.Value)
	}
}

func TestStaticAssets(t *testing.T) {
	c := newClient(t, Options{})
	rr := c.get("/static/app.css")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Fatalf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
	if rr := c.get("/static/missing.css"); rr.Code != http.StatusNotFound {
		t.Fatalf("missing asset status = %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	c := newClient(t, Options{})
	if rr := c.get("/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	rr := c.do(httptest.NewRequest(http.MethodDelete, "/", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE / status = %d", rr.Code)
	}
}

func TestRateLimitOnPosts(t *testing.T) {
	c := newClient(t, Options{UploadsPerMinute: 2})
	for i := 0; i < 2; i++ {
		if rr := c.postForm("/sample", nil, false); rr.Code != http.StatusSeeOther {
			t.Fatalf("POST %d status = %d", i, rr.Code)
		}
	}
	rr := c.postForm("/sample", nil, false)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	rr = c.do(httptest.NewRequest(http.MethodPost, "/api/sample", nil))
	if rr.Code != http.StatusTooManyRequests || !strings.Contains(rr.Body.String(), `"error"`) {
		t.Fatalf("api status = %d body %s", rr.Code, rr.Body.String())
	}
	if rr := c.get("/"); rr.Code != http.StatusOK {
		t.Fatalf("GET after limit status = %d", rr.Code)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	c := newClient(t, Options{})
	ctx := context.Background()
	if err := c.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := c.srv.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestCellValue(t *testing.T) {
	tx := core.Transaction{
		Date:        core.NewDate(2024, 9, 1),
		Amount:      core.Money{Cents: -8520},
		Description: "Metro Groceries",
		Extras:      map[string]string{"account": "checking"},
	}
	for col, want := range map[string]string{
		"date": "2024-09-01", "amount": "-85.20", "description": "Metro Groceries", "account": "checking", "memo": "",
	} {
		if got := cellValue(tx, col); got != want {
			t.Errorf("cellValue(%s) = %q, want %q", col, got, want)
		}
	}
}
