package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"
)

const testToken = "tok_ABC-123"

const testRedirect = "https://example.com/tether"

func newTestGateway(t *testing.T, cb Callbacks) *Gateway {
	t.Helper()
	return newTestGatewayWithConfig(t, Config{}, cb)
}

func newTestGatewayWithConfig(t *testing.T, cfg Config, cb Callbacks) *Gateway {
	t.Helper()
	if cfg.SecurityToken == "" {
		cfg.SecurityToken = testToken
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = testRedirect
	}
	g, err := NewGateway(cfg, cb)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	g.now = func() time.Time { return time.UnixMilli(1700000000000) }
	g.RegisterRoutes()
	return g
}

func testWebFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte(`<!doctype html>
<html><head>
<link rel="manifest" href="./manifest.json">
<link rel="icon" href="./icons/icon-192.png">
<script type="module" src="./assets/main.js"></script>
</head><body><script>navigator.serviceWorker.register('./sw.js')</script></body></html>`)},
		"manifest.json":      &fstest.MapFile{Data: []byte(`{"name":"tether"}`)},
		"sw.js":              &fstest.MapFile{Data: []byte(`self.addEventListener('fetch', () => {})`)},
		"assets/main.js":     &fstest.MapFile{Data: []byte(`console.log("main")`)},
		"icons/icon-192.png": &fstest.MapFile{Data: []byte{0x89, 'P', 'N', 'G'}},
	}
}

func doRequest(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func requireErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder, status int, errText string) map[string]any {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != errText {
		t.Fatalf("error = %v, want %q", body["error"], errText)
	}
	if _, ok := body["message"].(string); !ok {
		t.Fatalf("expected message string, got %+v", body)
	}
	if _, ok := body["timestamp"].(float64); !ok {
		t.Fatalf("expected numeric timestamp, got %+v", body)
	}
	return body
}
