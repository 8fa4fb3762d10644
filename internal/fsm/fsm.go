// Package fsm models the pipeline resolution lifecycle.
package fsm

import "fmt"

type State string

type Event string

const (
	StateUnresolved State = "unresolved"
	StateResolving  State = "resolving"
	StateResolved   State = "resolved"
	StateFailed     State = "failed"
)

const (
	EventProbe   Event = "probe"
	EventSucceed Event = "succeed"
	EventFail    Event = "fail"
	EventAbort   Event = "abort"
)

// Transition returns the next state for event, or an error when the pair is not allowed.
// Resolved is terminal for the lifetime of the process.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateUnresolved:
		switch event {
		case EventProbe:
			return StateResolving, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateResolving:
		switch event {
		case EventSucceed:
			return StateResolved, nil
		case EventFail:
			return StateFailed, nil
		case EventAbort:
			return StateUnresolved, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFailed:
		switch event {
		case EventProbe:
			return StateResolving, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateResolved:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
