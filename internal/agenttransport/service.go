package agenttransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/diablodale/gpg-windows-relay/internal/logger"
	"github.com/diablodale/gpg-windows-relay/internal/wire"
)

// Service is the top-level AT object: it owns the SessionStore and the
// rendezvous file path, and exposes connect/send/disconnect to callers
// (directly, or — in this repo — via the internal/ipc server that fronts
// it for CM).
type Service struct {
	rendezvousPath string
	store          *SessionStore
	dial           dialFunc
	log            *slog.Logger
	connectTimeout time.Duration

	watchDisabled bool
	watcher       *fsnotify.Watcher // nil if the watch could not be established
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithoutRendezvousWatch disables the fsnotify diagnostic watch (config
// field rendezvous.watch: false). Connect always re-reads the rendezvous
// file regardless — this only silences the restart log line.
func WithoutRendezvousWatch() ServiceOption {
	return func(s *Service) { s.watchDisabled = true }
}

// WithConnectTimeout overrides the default handshake timeout.
func WithConnectTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.connectTimeout = d }
}

// NewService creates an AT service bound to rendezvousPath. The watcher is
// best-effort: a failure to establish it only disables the diagnostic log
// line on agent restart, never correctness.
func NewService(rendezvousPath string, log *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		rendezvousPath: rendezvousPath,
		store:          NewSessionStore(),
		dial:           defaultDial,
		log:            log,
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.watchDisabled {
		s.startWatch()
	}
	return s
}

func (s *Service) startWatch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warn("rendezvous watch disabled", "error", err)
		return
	}
	if err := w.Add(filepath.Dir(s.rendezvousPath)); err != nil {
		s.log.Warn("rendezvous watch disabled", "error", err)
		w.Close()
		return
	}
	s.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == filepath.Clean(s.rendezvousPath) && (ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
					s.log.Info("rendezvous file changed, agent likely restarted", "path", s.rendezvousPath)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("rendezvous watch error", "error", err)
			}
		}
	}()
}

// Close stops the rendezvous watcher. It does not touch any live session.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// SessionCount reports the number of live sessions (operator status only).
func (s *Service) SessionCount() int { return s.store.Len() }

// Connect parses the rendezvous file, completes the handshake, and
// registers the resulting session.
func (s *Service) Connect(ctx context.Context) (id string, greeting string, err error) {
	rv, err := ParseRendezvousFile(s.rendezvousPath)
	if err != nil {
		return "", "", err
	}

	conn, greeting, err := handshake(ctx, s.dial, rv, s.connectTimeout)
	if err != nil {
		return "", "", err
	}

	sess := newAgentSession(newSessionID(), conn)
	s.store.put(sess)
	s.log.Info("agent session connected", "session_id", sess.ID)
	return sess.ID, greeting, nil
}

// Send writes block to the agent in one logical send, then accumulates
// ingress until a completion terminator fires.
func (s *Service) Send(ctx context.Context, id string, block []byte) ([]byte, error) {
	sess := s.store.Get(id)
	if sess == nil {
		return nil, errUnknownSessionf(id)
	}

	if !sess.gate.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}
	defer sess.gate.Unlock()

	if _, err := sess.conn.Write(block); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSocketWriteFailed, err)
	}

	sess.framer.begin(wire.IsInquiryPayload(block))
	chunk := make([]byte, 4096)
	for {
		n, err := sess.conn.Read(chunk)
		if n > 0 {
			if sess.framer.feed(chunk[:n]) {
				resp := sess.framer.response()
				s.log.Debug("agent response complete", "session_id", id, "size", logger.ByteSize(uint64(len(resp))))
				return resp, nil
			}
		}
		if err != nil {
			if isConnClosed(err) {
				return nil, fmt.Errorf("%w: %v", ErrSocketClosedMidResponse, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrSocketError, err)
		}
	}
}

// isConnClosed reports whether err represents the agent socket closing
// (cleanly or otherwise) rather than some other read failure.
func isConnClosed(err error) bool {
	return err == io.EOF || errors.Is(err, net.ErrClosed)
}

// Disconnect sends BYE, awaits the OK, then destroys the socket and
// removes the session regardless of how the BYE round trip went: a
// BYE-driven close is expected, not an error.
func (s *Service) Disconnect(ctx context.Context, id string) error {
	sess := s.store.Get(id)
	if sess == nil {
		return errUnknownSessionf(id)
	}
	defer func() {
		sess.conn.Close()
		s.store.remove(id)
		s.log.Info("agent session disconnected", "session_id", id, "connected", logger.SessionAge(sess.connectedAt))
	}()

	if !sess.gate.TryLock() {
		return fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}
	defer sess.gate.Unlock()

	if _, err := sess.conn.Write([]byte("BYE\n")); err != nil {
		return fmt.Errorf("%w: %v", ErrSocketWriteFailed, err)
	}

	sess.framer.begin(false)
	chunk := make([]byte, 4096)
	for {
		n, err := sess.conn.Read(chunk)
		if n > 0 && sess.framer.feed(chunk[:n]) {
			return nil
		}
		if err != nil {
			// The agent is allowed to simply close on BYE; that is success,
			// not a transport error.
			return nil
		}
	}
}
