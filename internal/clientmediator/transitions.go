package clientmediator

import "fmt"

// ErrInvalidTransition is returned by Apply for any (state, event) pair not
// present in the transition table — a protocol violation, a programming
// error in this package, or a misbehaving client.
type ErrInvalidTransition struct {
	From  State
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: state=%s event=%s", e.From, e.Event)
}

// transitions is the pure (state, event) -> state map. It is the single
// source of truth for which events are legal in which states; handlers
// never bypass it.
var transitions = map[State]map[Event]State{
	StateDisconnected: {
		EventClientSocketConnected: StateConnectingToAgent,
	},
	StateConnectingToAgent: {
		EventAgentGreetingOK:   StateReady,
		EventErrorOccurred:     StateError,
		EventCleanupRequested:  StateClosing,
	},
	StateReady: {
		EventClientDataStart:  StateBufferingCommand,
		EventErrorOccurred:    StateError,
		EventCleanupRequested: StateClosing,
	},
	StateBufferingCommand: {
		EventClientDataPartial:  StateBufferingCommand,
		EventClientDataComplete: StateSendingToAgent,
		EventErrorOccurred:      StateError,
		EventCleanupRequested:   StateClosing,
	},
	StateBufferingInquire: {
		EventClientDataPartial:  StateBufferingInquire,
		EventClientDataComplete: StateSendingToAgent,
		EventErrorOccurred:      StateError,
		EventCleanupRequested:   StateClosing,
	},
	StateSendingToAgent: {
		EventWriteOK:          StateWaitingForAgent,
		EventErrorOccurred:    StateError,
		EventCleanupRequested: StateClosing,
	},
	StateWaitingForAgent: {
		EventAgentResponseComplete: StateSendingToClient,
		EventErrorOccurred:         StateError,
		EventCleanupRequested:      StateClosing,
	},
	StateSendingToClient: {
		EventWriteOK:          StateReady,
		EventResponseOKOrErr:  StateReady,
		EventResponseInquire:  StateBufferingInquire,
		EventErrorOccurred:    StateError,
		EventCleanupRequested: StateClosing,
	},
	StateError: {
		EventCleanupRequested: StateClosing,
	},
	StateClosing: {
		EventCleanupCompleted: StateDisconnected,
		EventCleanupError:     StateFatal,
	},
	StateFatal: {},
}

// Apply returns the next state for (from, event), or ErrInvalidTransition if
// the pair is not in the table: every (state, event) pair not listed here
// must raise an observable violation rather than silently no-op.
func Apply(from State, event Event) (State, error) {
	next, ok := transitions[from][event]
	if !ok {
		return from, &ErrInvalidTransition{From: from, Event: event}
	}
	return next, nil
}
