package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// HealthResponse is the machine-readable directory report served at /health.
type HealthResponse struct {
	Status           string  `json:"status"`
	WasmDir          string  `json:"wasm_dir"`
	AvailablePlugins []Entry `json:"available_plugins"`
	Error            string  `json:"error,omitempty"`
}

// Server serves plugin artifacts over HTTP: an HTML index at /, a JSON
// health report at /health, and binary downloads at /plugins/{name}.
type Server struct {
	store  *Store
	logger hclog.Logger
	httpd  *http.Server
}

// NewServer creates a plugin file server bound to addr.
func NewServer(addr string, store *Store, logger hclog.Logger) *Server {
	s := &Server{
		store:  store,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/plugins/", s.handleDownload)

	s.httpd = &http.Server{
		Addr:    addr,
		Handler: withCORS(mux),
	}
	return s
}

// ListenAndServe runs the server until ListenAndServe fails or Shutdown
// is called. Returns nil on graceful shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("plugin file server listening", "addr", s.httpd.Addr, "dir", s.store.Dir())
	err := s.httpd.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpd.Shutdown(ctx)
}

// Handler returns the route table for tests built on httptest.
func (s *Server) Handler() http.Handler {
	return s.httpd.Handler
}

// withCORS adds the permissive cross-origin headers every response
// carries, and short-circuits preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers",
			"DNT,User-Agent,X-Requested-With,If-Modified-Since,Cache-Control,Content-Type,Range")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// The mux routes every unregistered path here.
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	entries, err := s.store.List()
	if err != nil {
		s.logger.Error("failed to list plugins", "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Internal Server Error: %v", err))
		return
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<title>WASM Plugin Server</title>\n<meta charset=\"utf-8\">\n")
	b.WriteString("</head>\n<body>\n<h1>WASM Plugin Server</h1>\n")
	fmt.Fprintf(&b, "<p>Plugin directory: <code>%s</code></p>\n", s.store.Dir())
	b.WriteString("<h2>Available plugins:</h2>\n")
	for _, e := range entries {
		b.WriteString("<div class=\"plugin\">\n")
		fmt.Fprintf(&b, "<div class=\"plugin-name\">%s</div>\n", e.Name)
		fmt.Fprintf(&b, "<div class=\"plugin-url\">GET /plugins/%s</div>\n", e.Name)
		fmt.Fprintf(&b, "<div>Size: %d bytes</div>\n", e.Size)
		b.WriteString("</div>\n")
	}
	b.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, b.String())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	resp := HealthResponse{
		Status:  "healthy",
		WasmDir: s.store.Dir(),
	}

	entries, err := s.store.List()
	if err != nil {
		s.logger.Error("health scan failed", "error", err)
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	resp.AvailablePlugins = entries
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/plugins/")

	rc, size, err := s.store.Open(name)
	switch {
	case errors.Is(err, ErrUnsafeName):
		s.logger.Warn("rejected unsafe plugin name", "name", name)
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "Invalid plugin name",
			"plugin": name,
		})
		return
	case errors.Is(err, ErrPluginNotFound):
		s.logger.Warn("plugin not found", "name", name)
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"error":  "Plugin not found",
			"plugin": name,
		})
		return
	case err != nil:
		s.logger.Error("failed to open plugin", "name", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error serving file: %v", err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/wasm")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)

	buf := make([]byte, 8192)
	if _, err := io.CopyBuffer(w, rc, buf); err != nil {
		// Headers are already out; nothing left to do but log.
		s.logger.Error("failed to stream plugin", "name", name, "error", err)
		return
	}

	s.logger.Info("served plugin", "name", name, "size", size)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]interface{}{
		"error": message,
		"code":  code,
	})
}
