package watcher

import "slices"

// State is the registration state of a Watcher.
type State int

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateError
	StateRewatching
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "UNREGISTERED"
	case StateRegistering:
		return "REGISTERING"
	case StateRegistered:
		return "REGISTERED"
	case StateError:
		return "ERROR"
	case StateRewatching:
		return "REWATCHING"
	default:
		return "UNKNOWN"
	}
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateUnregistered: {StateRegistering},
	StateRegistering:  {StateRegistered, StateUnregistered},
	StateRegistered:   {StateError, StateUnregistered},
	StateError:        {StateRewatching, StateUnregistered},
	// ERROR after a transient rewatch failure, which schedules a retry.
	StateRewatching: {StateRegistered, StateUnregistered, StateError},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
