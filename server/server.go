// Package server exposes a conversation over HTTP. Clients connect to /ws,
// send {"text": "..."} frames and receive every status of the turn as a
// JSON frame, the last one with "final": true. POST /chat runs a turn and
// answers with the drained reply.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/chatagent/artifact"
	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/logging"
	"github.com/hupe1980/chatagent/runner"
)

// Request is the frame a client sends.
type Request struct {
	Text string `json:"text"`
}

// Options configures a Server.
type Options struct {
	Addr         string
	Logger       logging.Logger
	WriteTimeout time.Duration
	// CheckOrigin overrides the websocket origin check; nil allows all.
	CheckOrigin func(r *http.Request) bool
	// Artifacts and SessionID enable GET /artifacts for code the agent
	// displayed during the conversation.
	Artifacts artifact.Store
	SessionID string
}

// Server serves one conversation. Turns from all clients share it and are
// rejected while another turn is running.
type Server struct {
	runner   *runner.Runner
	opts     Options
	upgrader websocket.Upgrader
}

// New creates a server for r.
func New(r *runner.Runner, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:         ":8080",
		WriteTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Server{
		runner: r,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.opts.Artifacts != nil {
		mux.HandleFunc("GET /artifacts", s.handleArtifactList)
		mux.HandleFunc("GET /artifacts/{name}", s.handleArtifact)
	}
	return mux
}

// Start listens on Addr until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.opts.Logger.Info("server.start", "addr", s.opts.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"busy":   s.runner.Active() != "",
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"text\": \"...\"}"})
		return
	}

	reply, err := s.runner.Ask(r.Context(), req.Text)
	if err != nil && reply.TurnID == "" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleArtifactList(w http.ResponseWriter, r *http.Request) {
	names, err := s.opts.Artifacts.List(r.Context(), s.opts.SessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": names})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := s.opts.Artifacts.Get(r.Context(), s.opts.SessionID, r.PathValue("name"))
	if errors.Is(err, artifact.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if a.MediaType != "" {
		w.Header().Set("Content-Type", a.MediaType)
	}
	_, _ = w.Write(a.Data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Warn("server.ws.upgrade_failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx := r.Context()
	s.opts.Logger.Info("server.ws.connected", "remote", r.RemoteAddr)

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.opts.Logger.Debug("server.ws.read_failed", "error", err.Error())
			}
			return
		}

		_, statuses, err := s.runner.Submit(ctx, req.Text)
		if err != nil {
			if werr := s.write(conn, core.NewStatus("", core.StatusError, err.Error())); werr != nil {
				return
			}
			continue
		}
		for st := range statuses {
			if err := s.write(conn, st); err != nil {
				s.opts.Logger.Warn("server.ws.write_failed", "error", err.Error())
				// keep draining so the turn can finish
				for range statuses {
				}
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, st core.Status) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
