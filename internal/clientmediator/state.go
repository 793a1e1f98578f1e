package clientmediator

import "fmt"

// State is one of the 11 labels in the connection FSM.
type State int

const (
	StateDisconnected State = iota
	StateConnectingToAgent
	StateReady
	StateBufferingCommand
	StateBufferingInquire
	StateSendingToAgent
	StateWaitingForAgent
	StateSendingToClient
	StateError
	StateClosing
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnectingToAgent:
		return "CONNECTING_TO_AGENT"
	case StateReady:
		return "READY"
	case StateBufferingCommand:
		return "BUFFERING_COMMAND"
	case StateBufferingInquire:
		return "BUFFERING_INQUIRE"
	case StateSendingToAgent:
		return "SENDING_TO_AGENT"
	case StateWaitingForAgent:
		return "WAITING_FOR_AGENT"
	case StateSendingToClient:
		return "SENDING_TO_CLIENT"
	case StateError:
		return "ERROR"
	case StateClosing:
		return "CLOSING"
	case StateFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s is one of the two terminal states: the
// owning ClientConnection is discarded on reaching either.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateFatal
}

// hasAgentSession mirrors the ClientConnection invariant: an
// agent-session-id is present iff the state is one of these six.
func (s State) hasAgentSession() bool {
	switch s {
	case StateReady, StateBufferingCommand, StateBufferingInquire,
		StateSendingToAgent, StateWaitingForAgent, StateSendingToClient:
		return true
	default:
		return false
	}
}

// Event is one of the 13 labels in the connection FSM.
type Event int

const (
	EventClientSocketConnected Event = iota
	EventAgentGreetingOK
	EventClientDataStart
	EventClientDataPartial
	EventClientDataComplete
	EventWriteOK
	EventAgentResponseComplete
	EventResponseOKOrErr
	EventResponseInquire
	EventErrorOccurred
	EventCleanupRequested
	EventCleanupCompleted
	EventCleanupError
)

func (e Event) String() string {
	names := [...]string{
		"CLIENT_SOCKET_CONNECTED", "AGENT_GREETING_OK", "CLIENT_DATA_START",
		"CLIENT_DATA_PARTIAL", "CLIENT_DATA_COMPLETE", "WRITE_OK",
		"AGENT_RESPONSE_COMPLETE", "RESPONSE_OK_OR_ERR", "RESPONSE_INQUIRE",
		"ERROR_OCCURRED", "CLEANUP_REQUESTED", "CLEANUP_COMPLETE", "CLEANUP_ERROR",
	}
	if int(e) < 0 || int(e) >= len(names) {
		return fmt.Sprintf("Event(%d)", int(e))
	}
	return names[e]
}
