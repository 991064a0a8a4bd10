package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleReject sends every unauthorized or unknown request to the public
// redirect URL so wrong tokens look the same as missing resources.
func (g *Gateway) handleReject(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, g.redirect, http.StatusFound)
}

func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	g.handleReject(w, r)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": g.now().UnixMilli(),
	})
}

// handleTokenCatchAll matches any single path segment. The static token routes
// win in the router, so this only serves the dashboard on an exact match.
func (g *Gateway) handleTokenCatchAll(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "token") != g.token {
		g.handleReject(w, r)
		return
	}
	g.handleDashboard(w, r)
}
