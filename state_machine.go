package auth

// sessionTransitions is the graph of allowed status changes. Staying in the
// same status is always allowed so attempts can clear or set the error
// message without moving.
var sessionTransitions = map[SessionStatus]map[SessionStatus]struct{}{
	StatusAuthenticating: {
		StatusAuthenticated:       {},
		StatusUnauthenticated:     {},
		StatusAuthError:           {},
		StatusPendingConfirmation: {},
	},
	StatusUnauthenticated: {
		StatusAuthenticating:      {},
		StatusPendingConfirmation: {},
	},
	StatusAuthError: {
		StatusAuthenticating:      {},
		StatusUnauthenticated:     {},
		StatusPendingConfirmation: {},
	},
	StatusPendingConfirmation: {
		StatusAuthenticating:  {},
		StatusUnauthenticated: {},
	},
	StatusAuthenticated: {
		StatusAuthenticating:  {},
		StatusUnauthenticated: {},
	},
}

// CanTransition reports whether the session may move from one status to another.
func CanTransition(from, to SessionStatus) bool {
	if from == to {
		return true
	}
	if allowed, ok := sessionTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func checkTransition(from, to SessionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
		"from": string(from),
		"to":   string(to),
	})
}
