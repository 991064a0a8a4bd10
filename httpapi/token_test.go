package httpapi

import (
	"net/http"
	"net/url"
	"testing"
)

func TestCatchAllRedirectsWrongTokens(t *testing.T) {
	g := newTestGateway(t, Callbacks{})
	h := g.Handler()
	cases := []string{
		"/wrong",
		"/tok_ABC-12",
		"/tok_ABC-1234",
		"/TOK_abc-123",
		"/" + url.PathEscape("tok_ABC-123/"),
		"/%2Ftok_ABC-123",
		"/%252e%252e",
		"/" + url.PathEscape("<script>alert(1)</script>"),
		"/" + url.PathEscape("javascript:alert(1)"),
		"/a/b/c",
		"/wrong/api/sessions",
		"/wrong/ws",
		"/tok_ABC-123/api/nope",
		"/tok_ABC-123/session/a/b",
		"/health/x",
		"/%00",
	}
	for _, target := range cases {
		rec := doRequest(t, h, http.MethodGet, target, nil)
		if rec.Code != http.StatusFound {
			t.Fatalf("GET %s = %d, want 302", target, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != testRedirect {
			t.Fatalf("GET %s Location = %q, want %q", target, loc, testRedirect)
		}
	}
}

func TestRejectedMethodsRedirect(t *testing.T) {
	g := newTestGateway(t, Callbacks{})
	h := g.Handler()
	cases := []struct {
		method string
		target string
	}{
		{method: http.MethodPost, target: "/wrong/api/session/s1/send"},
		{method: http.MethodDelete, target: "/tok_ABC-123/api/sessions"},
		{method: http.MethodPost, target: "/tok_ABC-123/api/theme"},
		{method: http.MethodPut, target: "/"},
	}
	for _, tc := range cases {
		rec := doRequest(t, h, tc.method, tc.target, nil)
		if rec.Code != http.StatusFound {
			t.Fatalf("%s %s = %d, want 302", tc.method, tc.target, rec.Code)
		}
	}
}

func TestRootRedirectsAndHealthIsPublic(t *testing.T) {
	g := newTestGateway(t, Callbacks{})
	h := g.Handler()

	rec := doRequest(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != testRedirect {
		t.Fatalf("GET / = %d %q, want redirect", rec.Code, rec.Header().Get("Location"))
	}

	rec = doRequest(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("health status = %v", body["status"])
	}
	if body["timestamp"] != float64(1700000000000) {
		t.Fatalf("health timestamp = %v", body["timestamp"])
	}
}

func TestNewGatewayRejectsUnsafeToken(t *testing.T) {
	cases := []string{"", "a/b", "<x>", "tok en", "health"}
	for _, token := range cases {
		if _, err := NewGateway(Config{SecurityToken: token}, Callbacks{}); err == nil {
			t.Fatalf("NewGateway(%q) succeeded, want error", token)
		}
	}
}

func TestRedactToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/tok", want: "/{token}"},
		{in: "/tok/api/sessions", want: "/{token}/api/sessions"},
		{in: "/tokx/api", want: "/tokx/api"},
		{in: "/health", want: "/health"},
	}
	for _, tc := range cases {
		if got := redactToken(tc.in, "tok"); got != tc.want {
			t.Fatalf("redactToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
