package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/diablodale/gpg-windows-relay/internal/agenttransport"
	"github.com/diablodale/gpg-windows-relay/internal/wire"
)

// atService is the subset of *agenttransport.Service the server calls; kept
// as an interface so tests can substitute a fake AT.
type atService interface {
	Connect(ctx context.Context) (id, greeting string, err error)
	Send(ctx context.Context, id string, block []byte) ([]byte, error)
	Disconnect(ctx context.Context, id string) error
	SessionCount() int
}

// Server fronts an AT Service over a unix-socket HTTP listener, exposing
// connect/send/disconnect plus a /status endpoint for the operator-facing
// "relay agent status" / "relay client status" subcommands.
type Server struct {
	at         atService
	socketPath string
	log        *slog.Logger
	pid        int
	startedAt  time.Time
}

func NewServer(at *agenttransport.Service, socketPath string, log *slog.Logger) *Server {
	return &Server{at: at, socketPath: socketPath, log: log, pid: os.Getpid(), startedAt: time.Now()}
}

// ListenAndServe binds the socket and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", s.socketPath, err)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
		os.Remove(s.socketPath)
		return nil
	case err := <-errCh:
		os.Remove(s.socketPath)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", s.handleConnect)
	mux.HandleFunc("POST /sessions/{id}/send", s.handleSend)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDisconnect)
	mux.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		PID:           s.pid,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		SessionCount:  s.at.SessionCount(),
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id, greeting, err := s.at.Connect(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, connectResponse{SessionID: id, Greeting: greeting})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: errKindInternal, Message: "invalid JSON: " + err.Error()})
		return
	}
	block, err := wire.Decode(req.Block)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: errKindInternal, Message: "invalid block encoding: " + err.Error()})
		return
	}

	resp, err := s.at.Send(r.Context(), id, block)
	if err != nil {
		s.writeError(w, err)
		return
	}
	encoded, err := wire.Encode(resp)
	if err != nil {
		s.log.Error("ipc: response not latin-1-representable", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: errKindInternal, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{Response: encoded})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.at.Disconnect(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps an agenttransport sentinel to its stable Kind and an
// appropriate HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind, status := classifyError(err)
	writeJSON(w, status, errorResponse{Kind: kind, Message: err.Error()})
}

func classifyError(err error) (kind string, status int) {
	switch {
	case errors.Is(err, agenttransport.ErrUnknownSession):
		return errKindUnknownSession, http.StatusNotFound
	case errors.Is(err, agenttransport.ErrSessionBusy):
		return errKindSessionBusy, http.StatusConflict
	case errors.Is(err, agenttransport.ErrRendezvousMissing), errors.Is(err, agenttransport.ErrRendezvousMalformed):
		return errKindRendezvousMissing, http.StatusServiceUnavailable
	case errors.Is(err, agenttransport.ErrConnectTimeout):
		return errKindConnectTimeout, http.StatusGatewayTimeout
	case errors.Is(err, agenttransport.ErrGreetingRejected):
		return errKindGreetingRejected, http.StatusBadGateway
	case errors.Is(err, agenttransport.ErrGreetingAborted):
		return errKindGreetingAborted, http.StatusBadGateway
	case errors.Is(err, agenttransport.ErrSocketWriteFailed):
		return errKindSocketWriteFailed, http.StatusBadGateway
	case errors.Is(err, agenttransport.ErrSocketClosedMidResponse):
		return errKindSocketClosedMid, http.StatusBadGateway
	case errors.Is(err, agenttransport.ErrSocketError):
		return errKindSocketError, http.StatusBadGateway
	default:
		return errKindInternal, http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
