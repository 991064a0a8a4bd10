package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/tether"
	"pkt.systems/tether/core"
	"pkt.systems/tether/httpapi"
	"pkt.systems/tether/schema"
)

const testToken = "integration-token"

// indexHTML renders the injected config into the page so the browser test can
// read what the client would see.
const indexHTML = `<!doctype html>
<html>
<head>
<title>tether</title>
<link rel="manifest" href="./manifest.json">
</head>
<body>
<div id="session"></div>
<script>
document.getElementById('session').textContent = String(window.__TETHER_CONFIG__ && window.__TETHER_CONFIG__.sessionId);
</script>
</body>
</html>
`

type recordingBackend struct {
	mu         sync.Mutex
	writes     []core.WriteRequest
	interrupts []schema.SessionID
}

func (b *recordingBackend) Write(_ context.Context, req core.WriteRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, req)
	return nil
}

func (b *recordingBackend) Interrupt(_ context.Context, id schema.SessionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.interrupts = append(b.interrupts, id)
	return nil
}

func (b *recordingBackend) Writes() []core.WriteRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.WriteRequest(nil), b.writes...)
}

type testGateway struct {
	server  *tether.Server
	backend *recordingBackend
	baseURL string
}

func startTestGateway(t *testing.T, rl httpapi.RateLimitConfig) *testGateway {
	t.Helper()
	backend := &recordingBackend{}
	server, err := tether.New(tether.Config{
		HTTP: httpapi.Config{
			Addr:          "127.0.0.1:0",
			SecurityToken: testToken,
			RedirectURL:   "https://example.com/away",
			RateLimit:     rl,
			WebFS: fstest.MapFS{
				"index.html":    {Data: []byte(indexHTML)},
				"manifest.json": {Data: []byte(`{"name":"tether"}`)},
			},
		},
	}, tether.Deps{Backend: backend})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	m := server.Manager()
	if _, err := m.UpsertSession(schema.SessionData{
		ID:          "s1",
		Name:        "api",
		Cwd:         "/src/api",
		AITabs:      []schema.AITab{{ID: "t1", Name: "main"}},
		ActiveTabID: "t1",
	}); err != nil {
		t.Fatalf("upsert s1: %v", err)
	}
	if _, err := m.UpsertSession(schema.SessionData{ID: "s2", Name: "web", InputMode: schema.InputModeTerminal}); err != nil {
		t.Fatalf("upsert s2: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return &testGateway{
		server:  server,
		backend: backend,
		baseURL: "http://" + server.Addr().String(),
	}
}

func (g *testGateway) url(path string) string {
	return g.baseURL + "/" + testToken + path
}

func (g *testGateway) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	target := "ws" + strings.TrimPrefix(g.url("/ws"), "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", target, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	frame := map[string]any{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return frame
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		if match(frame) {
			return frame
		}
	}
}

func frameType(want string) func(map[string]any) bool {
	return func(frame map[string]any) bool { return frame["type"] == want }
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 5 * time.Second,
	}
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no chrome binary found")
}
