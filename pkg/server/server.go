// Package server exposes the local HTTP control API consumed by the browser
// extension. The API is advisory: the extension treats the platform's own
// state as ground truth, so every response is a consistent JSON shape
// carrying the current state snapshot and a correlation id, and never a bare
// string. The one hard rule is that the API must not lie about success.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetsync/zoomsync/pkg/automator"
	"github.com/meetsync/zoomsync/pkg/logging"
)

// Controller is the slice of the automator the server drives.
type Controller interface {
	Login(timeout time.Duration) error
	Join() error
	Leave() error
	Dispose() error
	Status() automator.Snapshot
}

// Response is the uniform JSON body for every endpoint.
type Response struct {
	Success       bool               `json:"success"`
	State         automator.State    `json:"state"`
	InMeeting     bool               `json:"inMeeting"`
	Authenticated automator.Tristate `json:"authenticated"`
	Message       string             `json:"message"`
	Label         string             `json:"label,omitempty"`
	Error         string             `json:"error,omitempty"`
	RequestID     string             `json:"requestId"`
}

// loginRequest is the optional body of POST /auth/login.
type loginRequest struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
}

// Server is the HTTP control surface.
type Server struct {
	controller Controller
	log        *logging.Logger

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New creates the server around a controller.
func New(controller Controller, log *logging.Logger) *Server {
	return &Server{
		controller: controller,
		log:        log,
		shutdownCh: make(chan struct{}),
	}
}

// ShutdownRequested is closed when POST /shutdown has been handled; the
// daemon's main loop exits on it.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/meeting/join", s.handleJoin)
	mux.HandleFunc("/meeting/leave", s.handleLeave)
	mux.HandleFunc("/shutdown", s.handleShutdown)
	return mux
}

// requestID returns the caller-supplied correlation id, generating one when
// absent so every log line and response can be tied together.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

func (s *Server) snapshotResponse(success bool, requestID string) Response {
	snap := s.controller.Status()
	return Response{
		Success:       success,
		State:         snap.State,
		InMeeting:     snap.InMeeting,
		Authenticated: snap.Authenticated,
		Message:       snap.Message,
		RequestID:     requestID,
	}
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshotResponse(true, requestID(r)))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	resp := s.snapshotResponse(true, requestID(r))
	resp.Label = s.controller.Status().Label()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	id := requestID(r)

	var req loginRequest
	if r.Body != nil {
		// An empty or malformed body just means default timeout
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	timeout := time.Duration(req.TimeoutSeconds) * time.Second

	s.log.Infof("[%s] POST /auth/login (timeout=%s)", id, timeout)
	err := s.controller.Login(timeout)
	if err != nil {
		resp := s.snapshotResponse(false, id)
		resp.Authenticated = automator.TriFalse
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshotResponse(true, id))
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	id := requestID(r)

	s.log.Infof("[%s] POST /meeting/join", id)
	err := s.controller.Join()
	if err != nil {
		resp := s.snapshotResponse(false, id)
		resp.Error = err.Error()
		status := http.StatusInternalServerError
		if errors.Is(err, automator.ErrAuthRequired) {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshotResponse(true, id))
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	id := requestID(r)

	s.log.Infof("[%s] POST /meeting/leave", id)
	if err := s.controller.Leave(); err != nil {
		// Leave is designed not to fail, but the contract still holds:
		// never report success that did not happen.
		resp := s.snapshotResponse(false, id)
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshotResponse(true, id))
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	id := requestID(r)

	s.log.Infof("[%s] POST /shutdown", id)
	if err := s.controller.Dispose(); err != nil {
		s.log.Warnf("[%s] dispose during shutdown failed: %v", id, err)
	}
	writeJSON(w, http.StatusOK, s.snapshotResponse(true, id))

	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	resp := s.snapshotResponse(false, requestID(r))
	resp.Error = "method not allowed"
	writeJSON(w, http.StatusMethodNotAllowed, resp)
}
