package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pkt.systems/tether/internal/logx"
	"pkt.systems/tether/schema"
)

func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	cb := g.snapshot()
	sessions := []schema.EnrichedSession{}
	if cb.GetSessions != nil {
		sessions = cb.enrichSessions(cb.GetSessions())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":  sessions,
		"count":     len(sessions),
		"timestamp": g.now().UnixMilli(),
	})
}

func (g *Gateway) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	cb := g.snapshot()
	if cb.GetSessionDetail == nil {
		writeError(w, http.StatusServiceUnavailable, "Session detail service not configured")
		return
	}
	id := schema.SessionID(chi.URLParam(r, "id"))
	tabID := schema.TabID(r.URL.Query().Get("tabId"))
	detail := cb.GetSessionDetail(id, tabID)
	if detail == nil {
		writeError(w, http.StatusNotFound, "Session with id '"+string(id)+"' not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":   cb.enrichDetail(*detail),
		"timestamp": g.now().UnixMilli(),
	})
}

func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	cb := g.snapshot()
	if cb.WriteToSession == nil {
		writeError(w, http.StatusServiceUnavailable, "Session write service not configured")
		return
	}
	id := schema.SessionID(chi.URLParam(r, "id"))
	log := logx.WithSession(logx.Ctx(r.Context()).With("remote", clientIP(r)), id)
	var payload struct {
		Command any `json:"command"`
	}
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes), &payload); err != nil {
		log.Warn("api send decode failed", "err", err)
		writeError(w, http.StatusBadRequest, "Command is required and must be a string")
		return
	}
	command, ok := payload.Command.(string)
	if !ok || command == "" {
		writeError(w, http.StatusBadRequest, "Command is required and must be a string")
		return
	}
	if !cb.WriteToSession(id, command+"\n") {
		log.Warn("api send failed")
		writeError(w, http.StatusInternalServerError, "Failed to send command to session")
		return
	}
	log.Info("api send ok", "bytes", len(command))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": id,
	})
}

func (g *Gateway) handleTheme(w http.ResponseWriter, r *http.Request) {
	cb := g.snapshot()
	if cb.GetTheme == nil {
		writeError(w, http.StatusServiceUnavailable, "Theme service not configured")
		return
	}
	theme := cb.GetTheme()
	if theme == nil {
		writeError(w, http.StatusNotFound, "No theme currently configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"theme":     theme,
		"timestamp": g.now().UnixMilli(),
	})
}

func (g *Gateway) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	cb := g.snapshot()
	if cb.InterruptSession == nil {
		writeError(w, http.StatusServiceUnavailable, "Session interrupt service not configured")
		return
	}
	id := schema.SessionID(chi.URLParam(r, "id"))
	log := logx.WithSession(logx.Ctx(r.Context()).With("remote", clientIP(r)), id)
	ok, err := cb.InterruptSession(r.Context(), id)
	if err != nil {
		log.Warn("api interrupt failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		log.Warn("api interrupt rejected")
		writeError(w, http.StatusInternalServerError, "Failed to interrupt session")
		return
	}
	log.Info("api interrupt ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": id,
	})
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	cb := g.snapshot()
	if cb.GetHistory == nil {
		writeError(w, http.StatusServiceUnavailable, "History service not configured")
		return
	}
	query := r.URL.Query()
	projectPath := strings.TrimSpace(query.Get("projectPath"))
	sessionID := schema.SessionID(strings.TrimSpace(query.Get("sessionId")))
	entries, err := cb.GetHistory(r.Context(), projectPath, sessionID)
	if err != nil {
		logx.Ctx(r.Context()).With("remote", clientIP(r)).Warn("api history failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []schema.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":   entries,
		"count":     len(entries),
		"timestamp": g.now().UnixMilli(),
	})
}
