package tether

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tether/core"
	"pkt.systems/tether/httpapi"
	"pkt.systems/tether/internal/appconfig"
	"pkt.systems/tether/internal/eventbus"
	"pkt.systems/tether/internal/logx"
	"pkt.systems/tether/internal/persist"
	"pkt.systems/tether/internal/version"
	"pkt.systems/tether/schema"
)

// Config configures the composed gateway server.
type Config struct {
	HTTP httpapi.Config
	// MetricsAddr serves Prometheus metrics on a separate listener when set.
	MetricsAddr string
	// StateDir holds the session manager snapshot. Empty disables persistence.
	StateDir string
	// SeedFile is loaded when no snapshot exists yet.
	SeedFile string
	Core     core.Config
}

// Deps captures optional collaborators.
type Deps struct {
	Backend core.Backend
	// EventSink also receives every manager event, after the relay bus.
	EventSink core.EventSink
	Logger    pslog.Logger
}

// ConfigFromApp maps the on-disk application config onto the server config.
func ConfigFromApp(cfg appconfig.Config) Config {
	rl := httpapi.DefaultRateLimitConfig()
	rl.Enabled = cfg.HTTP.RateLimit.Enabled
	if cfg.HTTP.RateLimit.Max > 0 {
		rl.Max = cfg.HTTP.RateLimit.Max
	}
	if cfg.HTTP.RateLimit.MaxPost > 0 {
		rl.MaxPost = cfg.HTTP.RateLimit.MaxPost
	}
	if window := cfg.HTTP.RateLimit.TimeWindow(); window > 0 {
		rl.TimeWindow = window
	}
	return Config{
		HTTP: httpapi.Config{
			Addr:            cfg.HTTP.Addr,
			SecurityToken:   cfg.HTTP.SecurityToken,
			RedirectURL:     cfg.HTTP.RedirectURL,
			WebDir:          cfg.HTTP.WebDir,
			RateLimit:       rl,
			PingInterval:    cfg.HTTP.WS.PingInterval(),
			MaxMessageBytes: cfg.HTTP.WS.MaxMessageBytes,
		},
		MetricsAddr: cfg.HTTP.MetricsAddr,
		StateDir:    cfg.StateDir,
		SeedFile:    cfg.State.SeedFile,
		Core: core.Config{
			HistoryMax:  cfg.State.HistoryMax,
			LogMaxLines: cfg.State.LogMaxLines,
		},
	}
}

// Server composes the session manager, the gateway, the event relay, and
// snapshot persistence.
type Server struct {
	cfg     Config
	manager *core.Manager
	gateway *httpapi.Gateway
	bus     *eventbus.Bus
	store   *persist.Store
	log     pslog.Logger

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       chan error
	relayDone   chan struct{}
	addr        net.Addr
	metricsAddr net.Addr
	started     bool
	stopped     bool
}

// New builds the manager from the persisted snapshot (or the seed file), the
// gateway wired to it, and the event bus between them. An empty security token
// is replaced by a generated one.
func New(cfg Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if strings.TrimSpace(cfg.HTTP.SecurityToken) == "" {
		cfg.HTTP.SecurityToken = appconfig.GenerateToken()
		logger.Warn("server security token generated", "reason", "no token configured")
	}

	bus := eventbus.New(logger)
	var sink core.EventSink = bus
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{bus, deps.EventSink}}
	}
	manager := core.NewManager(cfg.Core, core.Deps{
		Backend:   deps.Backend,
		EventSink: sink,
		Logger:    logger,
	})

	var store *persist.Store
	if strings.TrimSpace(cfg.StateDir) != "" {
		s, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
		if err != nil {
			return nil, err
		}
		store = s
	}
	if err := restoreState(manager, store, cfg.SeedFile, logger); err != nil {
		return nil, err
	}

	gateway, err := httpapi.NewGateway(cfg.HTTP, managerCallbacks(manager, logger))
	if err != nil {
		return nil, err
	}
	manager.SetMessenger(gateway)

	return &Server{
		cfg:     cfg,
		manager: manager,
		gateway: gateway,
		bus:     bus,
		store:   store,
		log:     logger,
	}, nil
}

func restoreState(manager *core.Manager, store *persist.Store, seedFile string, logger pslog.Logger) error {
	if store != nil {
		state, ok, err := store.Load()
		if err != nil {
			return err
		}
		if ok {
			manager.Restore(state)
			logger.Info("server state restored", "path", store.Path(), "sessions", len(state.Sessions))
			return nil
		}
	}
	if strings.TrimSpace(seedFile) == "" {
		return nil
	}
	state, err := persist.LoadSeed(seedFile)
	if err != nil {
		return err
	}
	manager.Restore(state)
	logger.Info("server state seeded", "path", seedFile, "sessions", len(state.Sessions))
	return nil
}

// managerCallbacks exposes the manager to the gateway through its callback set.
func managerCallbacks(m *core.Manager, logger pslog.Logger) httpapi.Callbacks {
	return httpapi.Callbacks{
		GetSessions:        m.Sessions,
		GetSessionDetail:   m.SessionDetail,
		GetTheme:           m.Theme,
		GetCustomCommands:  m.CustomCommands,
		GetAutoRunStates:   m.AutoRunStates,
		GetLiveSessionInfo: m.LiveSessionInfo,
		IsSessionLive:      m.IsSessionLive,
		WriteToSession:     m.WriteToSession,
		InterruptSession:   m.InterruptSession,
		GetHistory:         m.History,
		HandleMessage:      m.HandleMessage,
		OnClientConnect: func(client httpapi.ClientInfo) {
			logx.WithClient(logger, client.ID).Info("client connected", "remote", client.RemoteAddr, "subscribed", client.SubscribedSessionID)
		},
		OnClientDisconnect: func(clientID schema.ClientID) {
			logx.WithClient(logger, clientID).Info("client disconnected")
		},
		OnClientError: func(clientID schema.ClientID, err error) {
			logx.WithClient(logger, clientID).Warn("client error", "err", err)
		},
	}
}

// Manager returns the authoritative session manager.
func (s *Server) Manager() *core.Manager {
	return s.manager
}

// Gateway returns the remote access gateway.
func (s *Server) Gateway() *httpapi.Gateway {
	return s.gateway
}

// SecurityToken returns the token in effect, including a generated one.
func (s *Server) SecurityToken() string {
	return s.gateway.SecurityToken()
}

// UpdateRateLimit applies new rate-limit settings to the running gateway.
func (s *Server) UpdateRateLimit(cfg httpapi.RateLimitConfig) {
	s.gateway.UpdateRateLimitConfig(cfg)
	s.log.Info("server rate limit updated", "enabled", cfg.Enabled, "max", cfg.Max, "max_post", cfg.MaxPost, "window", cfg.TimeWindow)
}

// Addr returns the gateway listener address once started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// MetricsAddr returns the metrics listener address once started.
func (s *Server) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsAddr
}

// Start binds the listeners and begins serving. It returns once the listeners
// are bound.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.HTTP.Addr, err)
	}
	var metricsLn net.Listener
	if strings.TrimSpace(s.cfg.MetricsAddr) != "" {
		metricsLn, err = net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen metrics %s: %w", s.cfg.MetricsAddr, err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(pslog.ContextWithLogger(ctx, s.log))
	s.errCh = make(chan error, 2)
	s.relayDone = make(chan struct{})
	s.addr = ln.Addr()
	s.started = true
	runCtx := s.ctx
	errCh := s.errCh

	events, unsubscribe := s.bus.Subscribe()
	go func() {
		defer close(s.relayDone)
		defer unsubscribe()
		relay(runCtx, events, s.gateway, func() int64 { return time.Now().UnixMilli() })
	}()

	log := s.log
	log.Info("server start", "version", version.Current(), "addr", s.addr.String(), "metrics_addr", s.cfg.MetricsAddr, "rate_limit", s.gateway.RateLimitConfig().Enabled)
	go func() {
		if err := httpapi.Serve(runCtx, ln, s.gateway.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			errCh <- err
		}
	}()
	if metricsLn != nil {
		s.metricsAddr = metricsLn.Addr()
		go func() {
			if err := httpapi.Serve(runCtx, metricsLn, s.gateway.MetricsHandler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "err", err)
				errCh <- err
			}
		}()
	}
	return nil
}

// Wait blocks until the server context ends or a listener fails.
func (s *Server) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			s.log.Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

// Stop closes every client, stops the listeners, and saves the manager snapshot.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel := s.cancel
	relayDone := s.relayDone
	s.mu.Unlock()

	log := s.log
	log.Info("server stop requested", "clients", s.gateway.ClientCount())
	s.gateway.CloseClients()
	if cancel != nil {
		cancel()
	}

	var saveErr error
	if s.store != nil {
		if err := s.store.Save(s.manager.Snapshot()); err != nil {
			saveErr = fmt.Errorf("save state: %w", err)
		} else {
			log.Info("server state saved", "path", s.store.Path())
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return errors.Join(saveErr, ctx.Err())
	case <-relayDone:
		log.Info("server stopped")
		return saveErr
	}
}
