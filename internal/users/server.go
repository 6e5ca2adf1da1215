package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Server exposes the mock user REST endpoints the gateway under test
// routes to. The store is injected so tests can supply an isolated
// instance per test.
type Server struct {
	store  *Store
	logger hclog.Logger
	httpd  *http.Server
}

// NewServer creates a user service bound to addr.
func NewServer(addr string, store *Store, logger hclog.Logger) *Server {
	s := &Server{
		store:  store,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/user_age", s.handleUserAge)

	s.httpd = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe runs the server until it fails or Shutdown is called.
// Returns nil on graceful shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("user service listening", "addr", s.httpd.Addr)
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": now(),
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listUsers(w)
	case http.MethodPost:
		s.createUser(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) listUsers(w http.ResponseWriter) {
	records := s.store.List()
	names := make([]string, 0, len(records))
	for _, u := range records {
		names = append(names, u.Username)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":     names,
		"total":     len(names),
		"timestamp": now(),
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if u.Username == "" {
		s.writeError(w, http.StatusBadRequest, "Missing required field 'username'")
		return
	}

	s.store.Add(u)
	s.logger.Info("user created", "username", u.Username)

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "User created successfully",
		"username":  u.Username,
		"age":       u.Age,
		"timestamp": now(),
	})
}

func (s *Server) handleUserAge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		s.writeError(w, http.StatusBadRequest, "Missing required parameter 'username'")
		return
	}

	age, err := s.store.AgeOf(username)
	if err != nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("User '%s' not found", username))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"username":  username,
		"age":       age,
		"timestamp": now(),
	})
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
		"error":     message,
		"timestamp": now(),
	})
}

func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
