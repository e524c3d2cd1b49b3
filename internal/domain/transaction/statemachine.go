package transaction

// transitions is the legal status transition table. Guards that need data
// (credit re-checks, installment state) are evaluated by the orchestrator
// before the transition is applied; the table itself only answers whether
// the edge exists.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled, StatusFailed},
	// Manual retry only. There is no automatic path out of rejected.
	StatusRejected: {StatusPending},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from → to and returns the new status. Terminal
// states have no outgoing edges except the explicit rejected → pending
// manual retry.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}
