package agenttransport

import (
	"net"
	"sync"
	"time"
)

// AgentSession is an authenticated connection to the key agent, exclusively
// owned by AT. At most one send is in flight per session; the gate mutex
// enforces that invariant.
type AgentSession struct {
	ID          string
	conn        net.Conn
	connectedAt time.Time

	gate   sync.Mutex // held for the duration of one send/disconnect round trip
	framer framer
}

func newAgentSession(id string, conn net.Conn) *AgentSession {
	return &AgentSession{ID: id, conn: conn, connectedAt: time.Now()}
}
