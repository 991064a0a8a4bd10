package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/pslog"
	"pkt.systems/tether/schema"
)

const (
	wsWriteWait       = 10 * time.Second
	maxPendingFrames  = 256
	clientIDPrefix    = "web-client-"
	closeReasonServer = "server shutting down"
)

var errClientClosed = errors.New("client closed")

// ClientInfo is a snapshot of a connected client.
type ClientInfo struct {
	ID                  schema.ClientID
	ConnectedAt         time.Time
	SubscribedSessionID schema.SessionID
	RemoteAddr          string
}

// webClient is one WebSocket connection. Frames sent before the initial burst
// completes are queued and flushed right after it.
type webClient struct {
	id          schema.ClientID
	connectedAt time.Time
	remoteAddr  string
	conn        *websocket.Conn
	log         pslog.Logger
	metrics     *gatewayMetrics

	writeMu sync.Mutex

	mu         sync.Mutex
	subscribed schema.SessionID
	ready      bool
	pending    [][]byte
	closed     bool
	done       chan struct{}
	closeOnce  sync.Once
}

func (c *webClient) info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientInfo{
		ID:                  c.id,
		ConnectedAt:         c.connectedAt,
		SubscribedSessionID: c.subscribed,
		RemoteAddr:          c.remoteAddr,
	}
}

// write sends one text frame. Callers must not hold c.mu.
func (c *webClient) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(data)
}

func (c *webClient) writeLocked(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.metrics.frameSent()
	return nil
}

func (c *webClient) writeJSON(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.write(data)
}

// send delivers data or queues it while the initial burst is in progress.
func (c *webClient) send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClientClosed
	}
	if !c.ready {
		if len(c.pending) >= maxPendingFrames {
			c.mu.Unlock()
			c.log.Warn("ws pending frame dropped", "pending", maxPendingFrames)
			return nil
		}
		c.pending = append(c.pending, data)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.write(data)
}

// markReady flushes queued frames. Holding writeMu across the flush keeps
// frames sent concurrently after ready behind the queued ones.
func (c *webClient) markReady() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.ready = true
	c.mu.Unlock()
	for _, data := range pending {
		if err := c.writeLocked(data); err != nil {
			return err
		}
	}
	return nil
}

func (c *webClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *webClient) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// close releases the connection once. It returns false if already closed.
func (c *webClient) close(reason string) bool {
	closed := false
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.pending = nil
		c.mu.Unlock()
		close(c.done)
		if reason != "" {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		_ = c.conn.Close()
		closed = true
	})
	return closed
}

type clientRegistry struct {
	mu      sync.RWMutex
	clients map[schema.ClientID]*webClient
	metrics *gatewayMetrics
}

func newClientRegistry(metrics *gatewayMetrics) *clientRegistry {
	return &clientRegistry{
		clients: make(map[schema.ClientID]*webClient),
		metrics: metrics,
	}
}

func (r *clientRegistry) add(c *webClient) {
	r.mu.Lock()
	r.clients[c.id] = c
	r.mu.Unlock()
	r.metrics.clientConnected()
}

func (r *clientRegistry) remove(id schema.ClientID) bool {
	r.mu.Lock()
	_, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	if ok {
		r.metrics.clientDisconnected()
	}
	return ok
}

func (r *clientRegistry) get(id schema.ClientID) (*webClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

func (r *clientRegistry) snapshot() []*webClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*webClient, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *clientRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *clientRegistry) list() []ClientInfo {
	clients := r.snapshot()
	out := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.info())
	}
	return out
}

// broadcast runs match and writes outside the registry lock.
func (r *clientRegistry) broadcast(msg any, match func(ClientInfo) bool) int {
	data, err := json.Marshal(msg)
	if err != nil {
		pslog.Ctx(context.Background()).Warn("ws broadcast encode failed", "err", err)
		return 0
	}
	sent := 0
	for _, c := range r.snapshot() {
		if match != nil && !match(c.info()) {
			continue
		}
		if err := c.send(data); err != nil {
			if !errors.Is(err, errClientClosed) {
				c.log.Debug("ws broadcast write failed", "err", err)
			}
			continue
		}
		sent++
	}
	return sent
}

func (r *clientRegistry) sendTo(id schema.ClientID, msg any) bool {
	c, ok := r.get(id)
	if !ok {
		return false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Warn("ws send encode failed", "err", err)
		return false
	}
	if err := c.send(data); err != nil {
		c.log.Debug("ws send failed", "err", err)
		return false
	}
	return true
}

func (r *clientRegistry) setSubscription(id schema.ClientID, sessionID schema.SessionID) bool {
	c, ok := r.get(id)
	if !ok {
		return false
	}
	c.mu.Lock()
	c.subscribed = sessionID
	c.mu.Unlock()
	return true
}

func (r *clientRegistry) closeAll() {
	for _, c := range r.snapshot() {
		c.close(closeReasonServer)
	}
}
