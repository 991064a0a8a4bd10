package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"
)

type responseRecorder struct {
	status int
	bytes  int64
	writer http.ResponseWriter
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.writer.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade take over the connection.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.writer.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func withRequestLogging(next http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{writer: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		path := redactToken(r.URL.Path, token)
		if r.URL.RawQuery != "" {
			path = path + "?" + r.URL.RawQuery
		}
		logger := pslog.Ctx(r.Context()).With("remote", clientIP(r))
		if fwd := forwardedFor(r); fwd != "" {
			logger = logger.With("forwarded_for", fwd)
		}
		logger.Info("http request", "method", r.Method, "path", path, "status", status, "bytes", rec.bytes, "duration_ms", time.Since(start).Milliseconds())
		logger.Debug("http request details", "ua", r.UserAgent())
	})
}

// redactToken hides the security token when it is the first path segment.
func redactToken(path, token string) string {
	if token == "" {
		return path
	}
	prefix := "/" + token
	if path == prefix || strings.HasPrefix(path, prefix+"/") {
		return "/{token}" + strings.TrimPrefix(path, prefix)
	}
	return path
}

// clientIP is the peer address used in logs, matching the rate-limit key.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	return limiterKey(r)
}

// forwardedFor is the client-supplied X-Forwarded-For value. It is logged
// separately and never trusted as the peer.
func forwardedFor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
}
