package clientmediator

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/diablodale/gpg-windows-relay/internal/wire"
)

// cleanupTimeout bounds the best-effort AT.disconnect call issued during
// cleanup; it runs on a detached context since the connection's own ctx may
// already be the reason cleanup started (e.g. process shutdown).
const cleanupTimeout = 5 * time.Second

func detachedContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cleanupTimeout)
}

// ingress is one unit handed from the connection's reader goroutine to its
// owning FSM goroutine: either a chunk of client bytes, or the client
// socket's close (err is io.EOF for a clean close, anything else for an
// abnormal one).
type ingress struct {
	data []byte
	err  error
}

// ClientConnection is CM's per-accepted-connection unit of ownership: the
// client socket, its FSM state, its pending extraction buffer, and the id
// of the AT session bound to it once handshake succeeds.
type ClientConnection struct {
	id     string
	conn   net.Conn
	agent  AgentClient
	log    *slog.Logger
	onDone func(*ClientConnection)

	state          State
	buffer         []byte
	agentSessionID string
	lastExpectEnd  bool // whether the block most recently sent to the agent was inquiry data

	hadError   bool
	cleanupErr error

	ingressCh         chan ingress
	done              chan struct{} // signals the reader goroutine to stop
	doneOnce          sync.Once
	shutdownRequested chan struct{} // closed by Listener.Close to request teardown
	shutdownOnce      sync.Once
	finished          chan struct{} // closed when run() returns
}

func newClientConnection(id string, conn net.Conn, agent AgentClient, log *slog.Logger, onDone func(*ClientConnection)) *ClientConnection {
	return &ClientConnection{
		id:                id,
		conn:              conn,
		agent:             agent,
		log:               log,
		onDone:            onDone,
		state:             StateDisconnected,
		ingressCh:         make(chan ingress, 4),
		done:              make(chan struct{}),
		shutdownRequested: make(chan struct{}),
		finished:          make(chan struct{}),
	}
}

// requestShutdown asks the connection to clean up and blocks until it has
// reached a terminal state. Safe to call from any goroutine; the actual
// state mutation always happens on the connection's own goroutine.
func (c *ClientConnection) requestShutdown() {
	c.shutdownOnce.Do(func() { close(c.shutdownRequested) })
	<-c.finished
}

// apply transitions c.state via event, logging and no-op'ing if the
// transition is illegal for the current state rather than propagating the
// error everywhere it is called — an illegal transition is a protocol
// violation, and callers tear the connection down the same way they would
// for any other error.
func (c *ClientConnection) apply(event Event) bool {
	next, err := Apply(c.state, event)
	if err != nil {
		c.log.Warn("fsm: illegal transition", "conn", c.id, "error", err)
		c.fail(err)
		return false
	}
	c.state = next
	return true
}

// run drives the connection from DISCONNECTED to a terminal state. It is
// the per-connection goroutine entry point; everything it touches (state,
// buffer, socket) is exclusive to this goroutine except for the reader
// goroutine it spawns after the handshake, which only ever writes to
// ingressCh.
func (c *ClientConnection) run(ctx context.Context) {
	defer close(c.finished)
	defer c.onDone(c)

	if !c.apply(EventClientSocketConnected) {
		return
	}

	sessionID, greeting, err := c.agent.Connect(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	c.agentSessionID = sessionID

	if _, err := c.conn.Write([]byte(greeting + "\n")); err != nil {
		c.fail(err)
		return
	}

	go c.readerLoop()
	if !c.apply(EventAgentGreetingOK) {
		return
	}

	c.mainLoop(ctx)
}

// mainLoop processes ingress events one at a time until the connection
// reaches a terminal state.
func (c *ClientConnection) mainLoop(ctx context.Context) {
	for !c.state.Terminal() {
		select {
		case in, ok := <-c.ingressCh:
			if !ok {
				return
			}
			if in.err != nil {
				c.handleSocketClose(in.err)
				continue
			}
			c.onClientData(ctx, in.data)
		case <-c.shutdownRequested:
			c.cleanup(false)
		}
	}
}

// readerLoop continuously reads the client socket and forwards chunks (or
// the terminal close) to the owning FSM goroutine. It is only started once
// the handshake succeeds — run doesn't start this goroutine until then, so
// no client bytes are read before a session exists.
func (c *ClientConnection) readerLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case c.ingressCh <- ingress{data: data}:
			case <-c.done:
				return
			}
		}
		if err != nil {
			select {
			case c.ingressCh <- ingress{err: err}:
			case <-c.done:
			}
			return
		}
	}
}

// onClientData dispatches a chunk of client bytes, keyed on current state.
func (c *ClientConnection) onClientData(ctx context.Context, chunk []byte) {
	switch c.state {
	case StateReady:
		if !c.apply(EventClientDataStart) {
			return
		}
	case StateBufferingCommand, StateBufferingInquire:
		if !c.apply(EventClientDataPartial) {
			return
		}
	default:
		c.fail(errProtocolViolation("client data received in state " + c.state.String()))
		return
	}

	c.buffer = append(c.buffer, chunk...)
	c.tryExtract(ctx)
}

// tryExtract runs the extractor matching the current buffering state and,
// on success, dispatches the extracted block to the agent.
func (c *ClientConnection) tryExtract(ctx context.Context) {
	var extracted []byte
	var ok bool
	switch c.state {
	case StateBufferingCommand:
		extracted, c.buffer, ok = extractCommand(c.buffer)
	case StateBufferingInquire:
		extracted, c.buffer, ok = extractInquiryBlock(c.buffer)
	default:
		return
	}
	if !ok {
		return
	}
	c.dispatch(ctx, extracted)
}

// dispatch sends one extracted block to the agent and drives the response
// back to the client. AT's Send is synchronous over the inter-context API,
// so WRITE_OK and AGENT_RESPONSE_COMPLETE both become available the instant
// agent.Send returns; they still fire as two distinct transitions.
func (c *ClientConnection) dispatch(ctx context.Context, extracted []byte) {
	if !c.apply(EventClientDataComplete) {
		return
	}

	c.lastExpectEnd = wire.IsInquiryPayload(extracted)
	resp, err := c.agent.Send(ctx, c.agentSessionID, extracted)
	if err != nil {
		c.fail(err)
		return
	}
	if !c.apply(EventWriteOK) {
		return
	}
	if !c.apply(EventAgentResponseComplete) {
		return
	}

	if _, err := c.conn.Write(resp); err != nil {
		c.fail(err)
		return
	}

	term := wire.ClassifyTerminator(resp, c.lastExpectEnd)
	if term == wire.TerminatorInquire {
		if !c.apply(EventResponseInquire) {
			return
		}
		return
	}

	if !c.apply(EventResponseOKOrErr) {
		return
	}

	// Pipelined ingress: a complete command may already sit in the buffer
	// from bytes the client sent ahead of this response.
	if line, rem, ok := extractCommand(c.buffer); ok {
		c.buffer = rem
		if c.apply(EventClientDataStart) {
			c.dispatch(ctx, line)
		}
	}
}

// handleSocketClose reacts to the client socket closing: a clean close
// (io.EOF) during normal operation triggers ordinary cleanup; anything else
// is treated as a connection error.
func (c *ClientConnection) handleSocketClose(err error) {
	switch c.state {
	case StateError, StateClosing, StateFatal, StateDisconnected:
		return
	}
	if err != nil && err != io.EOF {
		c.fail(err)
		return
	}
	c.cleanup(false)
}

// fail converts any error into the single ERROR_OCCURRED pipeline, then
// runs cleanup. It is a no-op if the connection is already tearing down
// (single-fire semantics).
func (c *ClientConnection) fail(err error) {
	switch c.state {
	case StateError, StateClosing, StateFatal, StateDisconnected:
		return
	}
	c.log.Warn("connection error", "conn", c.id, "error", err)
	if !c.apply(EventErrorOccurred) {
		return
	}
	c.cleanup(true)
}

// cleanup handles CLEANUP_REQUESTED: best-effort AT.Disconnect, destroy the
// client socket, record the first error, and fire CLEANUP_COMPLETE or
// CLEANUP_ERROR accordingly. The buffer and agent-session-id are always
// cleared.
func (c *ClientConnection) cleanup(hadError bool) {
	c.hadError = hadError
	if !c.apply(EventCleanupRequested) {
		return
	}

	var firstErr error
	if c.agentSessionID != "" {
		ctx, cancel := detachedContext()
		defer cancel()
		if err := c.agent.Disconnect(ctx, c.agentSessionID); err != nil {
			firstErr = err
		}
	}
	if err := c.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	c.buffer = nil
	c.agentSessionID = ""
	c.doneOnce.Do(func() { close(c.done) })

	if firstErr != nil {
		c.cleanupErr = firstErr
		c.log.Error("cleanup failed, connection fatal", "conn", c.id, "error", firstErr)
		c.apply(EventCleanupError)
		return
	}
	c.apply(EventCleanupCompleted)
}

type protocolViolation string

func errProtocolViolation(msg string) error { return protocolViolation(msg) }
func (p protocolViolation) Error() string    { return string(p) }
