package workflows

// Signing process statuses.
const (
	StatusPending         = "pending"
	StatusPartiallySigned = "partially_signed"
	StatusCompleted       = "completed"
)

// StateMachine enforces status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine for multi-party signing processes.
// A process may stay partially signed across several steps; completed is terminal.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			StatusPending:         {StatusPartiallySigned, StatusCompleted},
			StatusPartiallySigned: {StatusPartiallySigned, StatusCompleted},
			StatusCompleted:       {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether no transition leaves status.
func (sm *StateMachine) IsTerminal(status string) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// NextStatus returns the status a process takes once signed signatures out
// of total have been collected.
func NextStatus(signed, total int) string {
	switch {
	case signed <= 0:
		return StatusPending
	case signed >= total:
		return StatusCompleted
	default:
		return StatusPartiallySigned
	}
}
