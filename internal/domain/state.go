package domain

// GateState is the lifecycle state of a GateRecord.
type GateState string

const (
	StateIssued    GateState = "issued"
	StatePending   GateState = "pending"
	StateCompleted GateState = "completed"
	StateExpired   GateState = "expired"
	StateAbandoned GateState = "abandoned"
)

var transitions = map[GateState][]GateState{
	StateIssued:  {StatePending, StateExpired, StateAbandoned},
	StatePending: {StateCompleted, StateExpired, StateAbandoned},
}

// IsTerminal reports whether no further transitions are allowed.
func (s GateState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateExpired, StateAbandoned:
		return true
	}
	return false
}

// IsActive reports whether s counts toward the one-active-record rule.
func (s GateState) IsActive() bool {
	return s == StateIssued || s == StatePending
}

// CanTransition reports whether s -> to is a legal move.
// Skips (issued -> completed) and moves out of terminal states are rejected.
func (s GateState) CanTransition(to GateState) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
