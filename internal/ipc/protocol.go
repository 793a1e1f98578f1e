package ipc

// Wire envelopes. block and response are opaque byte sequences that may
// contain any value 0-255; internal/wire.Encode/Decode carry them as JSON
// strings without loss, preserving byte values 128-255.

type connectResponse struct {
	SessionID string `json:"session_id"`
	Greeting  string `json:"greeting"`
}

type sendRequest struct {
	Block string `json:"block"`
}

type sendResponse struct {
	Response string `json:"response"`
}

// statusResponse backs GET /status: process liveness only (PID, uptime,
// session count), never an end-user-facing progress UI.
type statusResponse struct {
	PID            int     `json:"pid"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	SessionCount   int     `json:"session_count"`
}

// errorResponse is the body of any non-2xx response. Kind is a stable,
// machine-matchable label (see the errKind* constants); Message is a
// human-readable diagnostic only, never matched on by callers.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// errKind* enumerate the stable error taxonomy as it crosses the IPC
// boundary. Callers reconstruct a typed error from Kind; Message does not
// round-trip into a sentinel.
const (
	errKindUnknownSession    = "unknown_session"
	errKindSessionBusy       = "session_busy"
	errKindRendezvousMissing = "rendezvous_missing"
	errKindConnectTimeout    = "connect_timeout"
	errKindGreetingRejected  = "greeting_rejected"
	errKindGreetingAborted   = "greeting_aborted"
	errKindSocketWriteFailed = "socket_write_failed"
	errKindSocketClosedMid   = "socket_closed_mid_response"
	errKindSocketError       = "socket_error"
	errKindInternal          = "internal"
)
