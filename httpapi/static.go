package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pkt.systems/tether/internal/logx"
)

const configGlobal = "__TETHER_CONFIG__"

// relativeRefs are rewritten to token-prefixed absolute paths in index.html.
var relativeRefs = []string{"./assets/", "./manifest.json", "./icons/", "./sw.js"}

// bootstrapConfig is injected into index.html. Nil IDs render as null.
type bootstrapConfig struct {
	SecurityToken string  `json:"securityToken"`
	SessionID     *string `json:"sessionId"`
	TabID         *string `json:"tabId"`
	APIBase       string  `json:"apiBase"`
	WSURL         string  `json:"wsUrl"`
}

func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	g.serveIndexHTML(w, r, nil, nil)
}

func (g *Gateway) handleSessionDashboard(w http.ResponseWriter, r *http.Request) {
	var sessionID, tabID *string
	if id, ok := sanitizeID(r.Context(), "sessionId", chi.URLParam(r, "sessionId")); ok {
		sessionID = &id
	}
	if id, ok := sanitizeID(r.Context(), "tabId", r.URL.Query().Get("tabId")); ok {
		tabID = &id
	}
	g.serveIndexHTML(w, r, sessionID, tabID)
}

// serveIndexHTML reads index.html on every request, rewrites relative asset
// references, and injects the client config before </head>. Only values that
// passed sanitizeID may be passed as sessionID or tabID.
func (g *Gateway) serveIndexHTML(w http.ResponseWriter, r *http.Request, sessionID, tabID *string) {
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	if g.webFS == nil {
		writeError(w, http.StatusServiceUnavailable, "Web interface not built. Set http.web_dir to the web assets directory.")
		return
	}
	data, err := fs.ReadFile(g.webFS, "index.html")
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("http index read failed", "err", err)
		}
		writeError(w, http.StatusNotFound, "Web interface index.html not found")
		return
	}
	base := "/" + g.token
	for _, ref := range relativeRefs {
		data = bytes.ReplaceAll(data, []byte(ref), []byte(base+strings.TrimPrefix(ref, ".")))
	}
	script, err := g.configScript(sessionID, tabID)
	if err != nil {
		log.Warn("http config encode failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to build page")
		return
	}
	if idx := bytes.Index(data, []byte("</head>")); idx >= 0 {
		out := make([]byte, 0, len(data)+len(script))
		out = append(out, data[:idx]...)
		out = append(out, script...)
		out = append(out, data[idx:]...)
		data = out
	} else {
		data = append(script, data...)
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", time.Time{}, bytes.NewReader(data))
}

// configScript renders the config global. encoding/json escapes <, > and &
// so no value can close the script element.
func (g *Gateway) configScript(sessionID, tabID *string) ([]byte, error) {
	base := "/" + g.token
	payload, err := json.Marshal(bootstrapConfig{
		SecurityToken: g.token,
		SessionID:     sessionID,
		TabID:         tabID,
		APIBase:       base + "/api",
		WSURL:         base + "/ws",
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("<script>window.")
	buf.WriteString(configGlobal)
	buf.WriteString(" = ")
	buf.Write(payload)
	buf.WriteString(";</script>\n")
	return buf.Bytes(), nil
}

func (g *Gateway) handleManifest(w http.ResponseWriter, r *http.Request) {
	g.serveFile(w, r, "manifest.json", "application/manifest+json")
}

func (g *Gateway) handleServiceWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Service-Worker-Allowed", "/"+g.token+"/")
	g.serveFile(w, r, "sw.js", "application/javascript")
}

func (g *Gateway) serveFile(w http.ResponseWriter, r *http.Request, name, contentType string) {
	if g.webFS == nil {
		writeError(w, http.StatusNotFound, "Web interface not built")
		return
	}
	data, err := fs.ReadFile(g.webFS, name)
	if err != nil {
		writeError(w, http.StatusNotFound, name+" not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// handleStaticDir serves files under dir. Directory listings are not served.
func (g *Gateway) handleStaticDir(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.webFS == nil {
			writeError(w, http.StatusNotFound, "Web interface not built")
			return
		}
		rel := chi.URLParam(r, "*")
		name := path.Clean(path.Join(dir, rel))
		if rel == "" || strings.HasSuffix(rel, "/") || !fs.ValidPath(name) || !strings.HasPrefix(name, dir+"/") {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		info, err := fs.Stat(g.webFS, name)
		if err != nil || info.IsDir() {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		http.ServeFileFS(w, r, g.webFS, name)
	}
}
