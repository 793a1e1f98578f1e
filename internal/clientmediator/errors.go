package clientmediator

import (
	"context"
	"errors"
)

// AgentClient is CM's view of AT: three operations addressed by session-id,
// never by object identity. The concrete implementation (internal/ipc.Client)
// talks to AT over the inter-context API; tests substitute a fake.
type AgentClient interface {
	Connect(ctx context.Context) (sessionID, greeting string, err error)
	Send(ctx context.Context, sessionID string, block []byte) (response []byte, err error)
	Disconnect(ctx context.Context, sessionID string) error
}

// ErrUnknownSession mirrors internal/ipc's stable error kind for an
// undefined or already-terminated session-id. CM never expects to see it
// by construction, but treats it as fatal for the connection if it ever
// does.
var ErrUnknownSession = errors.New("unknown session")
