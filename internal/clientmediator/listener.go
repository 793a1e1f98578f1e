package clientmediator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// Listener binds the local client rendezvous socket, accepts connections,
// and spins up one ClientConnection FSM per accept. It does not itself
// touch any AgentSession — every ClientConnection talks to AT only through
// the AgentClient it is given.
type Listener struct {
	socketPath string
	agent      AgentClient
	log        *slog.Logger

	// accept rate limiting, optional. nil means unlimited.
	limiter *rate.Limiter

	ln net.Listener

	mu      sync.Mutex
	active  map[*ClientConnection]struct{}
	closing bool
	idSeq   atomic.Uint64
}

// Option configures a Listener.
type Option func(*Listener)

// WithAcceptRateLimit bounds how many new client handshakes CM will begin
// per second, with the given burst. Optional; the default is unbounded.
func WithAcceptRateLimit(perSecond float64, burst int) Option {
	return func(l *Listener) {
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewListener creates a Listener bound to socketPath. agent is CM's handle
// onto AT; sessions are referenced by id, never by object identity.
func NewListener(socketPath string, agent AgentClient, log *slog.Logger, opts ...Option) *Listener {
	l := &Listener{
		socketPath: socketPath,
		agent:      agent,
		log:        log,
		active:     make(map[*ClientConnection]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Serve binds the rendezvous socket and accepts connections until ctx is
// cancelled or Close is called. It removes any stale file at socketPath
// first and sets permissions so same-user peers can connect.
func (l *Listener) Serve(ctx context.Context) error {
	os.Remove(l.socketPath)

	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", l.socketPath, err)
	}
	if err := os.Chmod(l.socketPath, 0o666); err != nil {
		ln.Close()
		return fmt.Errorf("chmod %s: %w", l.socketPath, err)
	}
	l.ln = ln

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			l.mu.Lock()
			closing := l.closing
			l.mu.Unlock()
			if closing {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if l.limiter != nil && !l.limiter.Allow() {
			l.log.Warn("accept rate limit exceeded, dropping connection")
			conn.Close()
			continue
		}

		if err := checkPeerCredential(conn); err != nil {
			l.log.Warn("rejecting connection, peer credential check failed", "error", err)
			conn.Close()
			continue
		}

		l.spawn(ctx, conn)
	}
}

func (l *Listener) spawn(ctx context.Context, conn net.Conn) {
	id := fmt.Sprintf("c-%d", l.idSeq.Add(1))
	cc := newClientConnection(id, conn, l.agent, l.log, l.forget)

	l.mu.Lock()
	l.active[cc] = struct{}{}
	l.mu.Unlock()

	go cc.run(ctx)
}

func (l *Listener) forget(cc *ClientConnection) {
	l.mu.Lock()
	delete(l.active, cc)
	l.mu.Unlock()
}

// Close refuses new accepts, requests cleanup on every live connection,
// waits for all of them to reach a terminal state, closes the server, and
// best-effort removes the socket file.
func (l *Listener) Close() {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return
	}
	l.closing = true
	conns := make([]*ClientConnection, 0, len(l.active))
	for cc := range l.active {
		conns = append(conns, cc)
	}
	l.mu.Unlock()

	if l.ln != nil {
		l.ln.Close()
	}

	var wg sync.WaitGroup
	for _, cc := range conns {
		wg.Add(1)
		go func(cc *ClientConnection) {
			defer wg.Done()
			cc.requestShutdown()
		}(cc)
	}
	wg.Wait()

	os.Remove(l.socketPath)
}

// checkPeerCredential verifies, via SO_PEERCRED, that the connecting peer
// runs as the same user as this process — a defense-in-depth check beyond
// the socket file's permission bits.
func checkPeerCredential(conn net.Conn) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return nil
	}
	var cred *unix.Ucred
	var controlErr error
	err = raw.Control(func(fd uintptr) {
		cred, controlErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || controlErr != nil {
		// Not all platforms support SO_PEERCRED; treat as "can't verify,
		// fall back to file permission bits".
		return nil
	}
	if uid := os.Getuid(); cred != nil && int(cred.Uid) != uid {
		return fmt.Errorf("peer uid %d does not match listener uid %d", cred.Uid, uid)
	}
	return nil
}
