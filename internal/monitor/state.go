package monitor

import "fmt"

// State is the monitor's current phase.
type State int

const (
	StateUnauthenticated State = iota // before the first successful login
	StateAuthenticated                // session established, no cycle run yet
	StateObserving                    // reading and classifying the WAN address
	StateRemediating                  // flapping the WAN port
	StateDegraded                     // failure threshold reached, session being rebuilt
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticated:
		return "Authenticated"
	case StateObserving:
		return "Observing"
	case StateRemediating:
		return "Remediating"
	case StateDegraded:
		return "Degraded"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ValidTransition checks whether moving from one state to another is allowed.
// Staying in the same state is always allowed.
//
//	Unauthenticated -> Authenticated -> Observing <-> Remediating
//	Observing, Remediating -> Degraded
//	Degraded -> Authenticated (re-login worked)
//	Degraded -> Observing     (re-login failed, keep polling)
func ValidTransition(from, to State) bool {
	if from == to {
		return true
	}
	switch from {
	case StateUnauthenticated:
		return to == StateAuthenticated
	case StateAuthenticated:
		return to == StateObserving
	case StateObserving:
		return to == StateRemediating || to == StateDegraded
	case StateRemediating:
		return to == StateObserving || to == StateDegraded
	case StateDegraded:
		return to == StateAuthenticated || to == StateObserving
	default:
		return false
	}
}
