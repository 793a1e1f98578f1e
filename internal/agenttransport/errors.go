package agenttransport

import "fmt"

// Sentinel errors for rendezvous/handshake failures. Wrapped with
// fmt.Errorf("...: %w", ...) at the call site so errors.Is still matches
// while carrying a diagnostic message.
var (
	ErrRendezvousMissing   = fmt.Errorf("rendezvous file missing")
	ErrRendezvousMalformed = fmt.Errorf("rendezvous file malformed")
	ErrConnectTimeout      = fmt.Errorf("connect to agent timed out")
	ErrAuthWriteFailed     = fmt.Errorf("writing cookie to agent failed")
	ErrGreetingRejected    = fmt.Errorf("agent rejected greeting")
	ErrGreetingAborted     = fmt.Errorf("agent closed connection before greeting")
)

// Transport errors, surfaced from send/disconnect.
var (
	ErrUnknownSession          = fmt.Errorf("unknown session")
	ErrSessionBusy             = fmt.Errorf("session has a request already in flight")
	ErrSocketWriteFailed       = fmt.Errorf("write to agent socket failed")
	ErrSocketClosedMidResponse = fmt.Errorf("agent socket closed before response completed")
	ErrSocketError             = fmt.Errorf("agent socket error")
)
