package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pkt.systems/tether/internal/logx"
	"pkt.systems/tether/schema"
)

const invalidMessageFormat = "Invalid message format"

func newClientID() schema.ClientID {
	return schema.ClientID(clientIDPrefix + uuid.NewString())
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	subscribed := schema.SessionID(r.URL.Query().Get("sessionId"))
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", "err", err)
		return
	}
	id := newClientID()
	client := &webClient{
		id:          id,
		connectedAt: g.now(),
		remoteAddr:  clientIP(r),
		conn:        conn,
		log:         logx.WithClient(log, id),
		metrics:     g.metrics,
		subscribed:  subscribed,
		done:        make(chan struct{}),
	}
	g.clients.add(client)
	client.log.Info("ws client connected", "session", subscribed, "clients", g.clients.count())

	cb := g.snapshot()
	if cb.OnClientConnect != nil {
		cb.OnClientConnect(client.info())
	}

	if err := g.sendInitialBurst(cb, client); err != nil {
		client.log.Warn("ws initial sync failed", "err", err)
		g.disconnect(client, nil)
		return
	}
	if err := client.markReady(); err != nil {
		client.log.Warn("ws pending flush failed", "err", err)
		g.disconnect(client, nil)
		return
	}

	go g.keepalive(client)
	g.readLoop(client)
}

// sendInitialBurst writes the ordered sync frames. Each step is skipped when
// its callback is absent so a partially wired gateway still sends connected.
func (g *Gateway) sendInitialBurst(cb Callbacks, client *webClient) error {
	for _, frame := range g.initialFrames(cb, client.info()) {
		if err := client.writeJSON(frame); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) initialFrames(cb Callbacks, info ClientInfo) []map[string]any {
	connected := map[string]any{
		"type":      schema.FrameConnected,
		"clientId":  info.ID,
		"timestamp": g.now().UnixMilli(),
	}
	if info.SubscribedSessionID != "" {
		connected["subscribedSessionId"] = info.SubscribedSessionID
	}
	frames := []map[string]any{connected}

	if cb.GetSessions != nil {
		frames = append(frames, map[string]any{
			"type":     schema.FrameSessionsList,
			"sessions": cb.enrichSessions(cb.GetSessions()),
		})
	}
	if cb.GetTheme != nil {
		if theme := cb.GetTheme(); theme != nil {
			frames = append(frames, map[string]any{
				"type":  schema.FrameTheme,
				"theme": theme,
			})
		}
	}
	if cb.GetCustomCommands != nil {
		commands := cb.GetCustomCommands()
		if commands == nil {
			commands = []schema.CustomAICommand{}
		}
		frames = append(frames, map[string]any{
			"type":     schema.FrameCustomCommands,
			"commands": commands,
		})
	}
	if cb.GetAutoRunStates != nil {
		states := cb.GetAutoRunStates()
		ids := make([]schema.SessionID, 0, len(states))
		for id, state := range states {
			if state.IsRunning {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			frames = append(frames, map[string]any{
				"type":      schema.FrameAutoRunState,
				"sessionId": id,
				"state":     states[id],
			})
		}
	}
	return frames
}

func (g *Gateway) readLoop(client *webClient) {
	pongWait := 2 * g.cfg.PingInterval
	client.conn.SetReadLimit(g.cfg.MaxMessageBytes)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if isCleanClose(err) || client.isClosed() {
				g.disconnect(client, nil)
			} else {
				g.disconnect(client, err)
			}
			return
		}
		_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
		g.metrics.frameReceived()
		g.handleFrame(client, data)
	}
}

// handleFrame decodes one inbound frame and relays it. Anything that is not
// a JSON object gets an in-band error and the connection stays open.
func (g *Gateway) handleFrame(client *webClient, data []byte) {
	var msg schema.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg == nil {
		g.metrics.invalidFrame()
		client.log.Debug("ws invalid frame", "bytes", len(data))
		_ = client.writeJSON(map[string]any{
			"type":    schema.FrameError,
			"message": invalidMessageFormat,
		})
		return
	}
	cb := g.snapshot()
	if cb.HandleMessage == nil {
		client.log.Debug("ws message dropped", "type", msg.Type())
		return
	}
	cb.HandleMessage(client.id, msg)
}

func (g *Gateway) keepalive(client *webClient) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-client.done:
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				client.log.Debug("ws ping failed", "err", err)
				_ = client.conn.Close()
				return
			}
		}
	}
}

// disconnect reports a transport error (if any) and then the close, once per client.
func (g *Gateway) disconnect(client *webClient, cause error) {
	cb := g.snapshot()
	if cause != nil {
		client.log.Warn("ws client error", "err", cause)
		if cb.OnClientError != nil {
			cb.OnClientError(client.id, cause)
		}
	}
	client.close("")
	if !g.clients.remove(client.id) {
		return
	}
	client.log.Info("ws client disconnected", "clients", g.clients.count())
	if cb.OnClientDisconnect != nil {
		cb.OnClientDisconnect(client.id)
	}
}

func isCleanClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, io.EOF)
}
