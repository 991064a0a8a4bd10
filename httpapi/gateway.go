package httpapi

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"pkt.systems/tether/schema"
)

// RouteInfo describes a registered route. The security token is shown as {securityToken}.
type RouteInfo struct {
	Method    string
	Pattern   string
	RateLimit RouteRateLimit
}

// Gateway is the token-gated HTTP and WebSocket front door to the session manager.
type Gateway struct {
	cfg      Config
	token    string
	redirect string
	webFS    fs.FS
	metrics  *gatewayMetrics
	clients  *clientRegistry
	upgrader websocket.Upgrader
	now      func() time.Time

	mu        sync.RWMutex
	callbacks Callbacks
	rateLimit RateLimitConfig
	routes    []RouteInfo

	router atomic.Pointer[chi.Mux]
}

// NewGateway validates cfg and registers all routes.
func NewGateway(cfg Config, callbacks Callbacks) (*Gateway, error) {
	cfg = cfg.withDefaults()
	if !validID(cfg.SecurityToken) {
		return nil, fmt.Errorf("security token must match [A-Za-z0-9_-]+")
	}
	if cfg.SecurityToken == "health" {
		return nil, fmt.Errorf("security token %q collides with a public route", cfg.SecurityToken)
	}
	webFS := cfg.WebFS
	if webFS == nil && strings.TrimSpace(cfg.WebDir) != "" {
		webFS = os.DirFS(cfg.WebDir)
	}
	g := &Gateway{
		cfg:       cfg,
		token:     cfg.SecurityToken,
		redirect:  cfg.RedirectURL,
		webFS:     webFS,
		metrics:   newGatewayMetrics(),
		callbacks: callbacks,
		rateLimit: cfg.RateLimit,
		now:       time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	g.clients = newClientRegistry(g.metrics)
	g.RegisterRoutes()
	return g, nil
}

// SecurityToken returns the configured token.
func (g *Gateway) SecurityToken() string {
	return g.token
}

// SetCallbacks replaces the callback set. In-flight handlers keep the set they started with.
func (g *Gateway) SetCallbacks(cb Callbacks) {
	g.mu.Lock()
	g.callbacks = cb
	g.mu.Unlock()
}

func (g *Gateway) snapshot() Callbacks {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.callbacks
}

// RateLimitConfig returns the active rate limit settings.
func (g *Gateway) RateLimitConfig() RateLimitConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rateLimit
}

// UpdateRateLimitConfig stores cfg and re-registers every route with it.
func (g *Gateway) UpdateRateLimitConfig(cfg RateLimitConfig) {
	g.mu.Lock()
	g.rateLimit = cfg.normalized()
	g.mu.Unlock()
	g.RegisterRoutes()
}

// Routes returns the registered routes with their effective limits.
func (g *Gateway) Routes() []RouteInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]RouteInfo(nil), g.routes...)
}

// RegisterRoutes builds a fresh router from the current settings and swaps it in.
func (g *Gateway) RegisterRoutes() {
	rl := g.RateLimitConfig()
	table := &routeTable{token: g.token, cfg: rl, metrics: g.metrics, now: g.now}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(g.handleReject)
	r.MethodNotAllowed(g.handleReject)

	table.get(r, "/", g.handleRoot)
	table.get(r, "/health", g.handleHealth)

	p := "/" + g.token
	table.get(r, p, g.handleDashboard)
	table.get(r, p+"/", g.handleDashboard)
	table.get(r, p+"/session/{sessionId}", g.handleSessionDashboard)
	table.get(r, p+"/manifest.json", g.handleManifest)
	table.get(r, p+"/sw.js", g.handleServiceWorker)
	table.get(r, p+"/assets/*", g.handleStaticDir("assets"))
	table.get(r, p+"/icons/*", g.handleStaticDir("icons"))

	table.get(r, p+"/api/sessions", g.handleListSessions)
	table.get(r, p+"/api/session/{id}", g.handleSessionDetail)
	table.post(r, p+"/api/session/{id}/send", g.handleSend)
	table.get(r, p+"/api/theme", g.handleTheme)
	table.post(r, p+"/api/session/{id}/interrupt", g.handleInterrupt)
	table.get(r, p+"/api/history", g.handleHistory)

	table.get(r, p+"/ws", g.handleWebSocket)

	table.get(r, "/{token}", g.handleTokenCatchAll)

	g.mu.Lock()
	g.routes = table.routes
	g.mu.Unlock()
	g.router.Store(r)
}

// ServeHTTP dispatches to the most recently registered router.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.Load().ServeHTTP(w, r)
}

// Handler returns the gateway wrapped in request logging.
func (g *Gateway) Handler() http.Handler {
	return withRequestLogging(g, g.token)
}

// MetricsHandler exposes the gateway's Prometheus registry.
func (g *Gateway) MetricsHandler() http.Handler {
	return g.metrics.handler()
}

// Broadcast sends msg to every client accepted by match (all clients when match is nil).
// It returns the number of clients the message was delivered or queued to.
func (g *Gateway) Broadcast(msg any, match func(ClientInfo) bool) int {
	return g.clients.broadcast(msg, match)
}

// SendToClient sends msg to one client.
func (g *Gateway) SendToClient(id schema.ClientID, msg any) bool {
	return g.clients.sendTo(id, msg)
}

// SetSubscription changes the session a client follows. An empty id unsubscribes.
func (g *Gateway) SetSubscription(clientID schema.ClientID, sessionID schema.SessionID) bool {
	return g.clients.setSubscription(clientID, sessionID)
}

// Clients lists connected clients.
func (g *Gateway) Clients() []ClientInfo {
	return g.clients.list()
}

// ClientCount returns the number of connected clients.
func (g *Gateway) ClientCount() int {
	return g.clients.count()
}

// CloseClients closes every WebSocket connection. Disconnect callbacks still fire.
func (g *Gateway) CloseClients() {
	g.clients.closeAll()
}

type routeTable struct {
	token   string
	cfg     RateLimitConfig
	metrics *gatewayMetrics
	now     func() time.Time
	routes  []RouteInfo
}

func (t *routeTable) get(r chi.Router, pattern string, h http.HandlerFunc) {
	t.handle(r, http.MethodGet, pattern, t.cfg.Max, h)
}

func (t *routeTable) post(r chi.Router, pattern string, h http.HandlerFunc) {
	t.handle(r, http.MethodPost, pattern, t.cfg.MaxPost, h)
}

func (t *routeTable) handle(r chi.Router, method, pattern string, max int, h http.HandlerFunc) {
	display := t.display(pattern)
	t.routes = append(t.routes, RouteInfo{
		Method:  method,
		Pattern: display,
		RateLimit: RouteRateLimit{
			Max:        max,
			TimeWindow: t.cfg.TimeWindow,
			Enabled:    t.cfg.Enabled,
		},
	})
	var handler http.Handler = h
	if t.cfg.Enabled {
		handler = newRouteLimiter(max, t.cfg.TimeWindow).middleware(display, t.now, t.metrics)(handler)
	}
	r.Method(method, pattern, t.metrics.instrument(display, handler))
}

func (t *routeTable) display(pattern string) string {
	prefix := "/" + t.token
	if pattern == prefix || strings.HasPrefix(pattern, prefix+"/") {
		return "/{securityToken}" + strings.TrimPrefix(pattern, prefix)
	}
	return pattern
}
