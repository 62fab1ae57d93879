package signing

import (
	"fmt"

	"github.com/google/uuid"

	"trainhub/platform/signing-backend/pkg/workflows"
)

const processCompleted = workflows.StatusCompleted

var processMachine = workflows.NewStateMachine()

// Transition is the state change produced by one signatory signing a process.
type Transition struct {
	ProcessID  uuid.UUID
	FromIndex  int
	ToIndex    int
	FromStatus string
	Status     string
	// Final is set when the signatory was the last one of the sequence.
	Final bool
	// Intermediate artifact pointers; both nil once the process completes.
	IntermediatePath *string
	IntermediateURL  *string
}

// Advance computes the transition for sig signing proc, which has total signatories.
// It does not mutate proc.
func Advance(proc *SigningProcess, sig *Signatory, total int) (Transition, error) {
	if proc == nil || sig == nil {
		return Transition{}, fmt.Errorf("%w: missing process or signatory", ErrInvalidInput)
	}
	if sig.ProcessID != proc.ID {
		return Transition{}, fmt.Errorf("%w: signatory %s does not belong to process %s", ErrNotFound, sig.ID, proc.ID)
	}
	if sig.SignedAt != nil {
		return Transition{}, fmt.Errorf("%w: signatory %s", ErrAlreadySigned, sig.ID)
	}
	if processMachine.IsTerminal(proc.Status) {
		return Transition{}, fmt.Errorf("%w: process %s is %s", ErrNotFound, proc.ID, proc.Status)
	}
	if sig.OrderIndex != proc.CurrentIndex {
		return Transition{}, fmt.Errorf("%w: signatory %d is not next (current %d)", ErrNotFound, sig.OrderIndex, proc.CurrentIndex)
	}
	if total <= 0 || sig.OrderIndex >= total {
		return Transition{}, fmt.Errorf("process %s: order index %d outside %d signatories", proc.ID, sig.OrderIndex, total)
	}

	next := sig.OrderIndex + 1
	status := workflows.NextStatus(next, total)
	if !processMachine.CanTransition(proc.Status, status) {
		return Transition{}, fmt.Errorf("process %s: transition %s -> %s not allowed", proc.ID, proc.Status, status)
	}
	return Transition{
		ProcessID:  proc.ID,
		FromIndex:  proc.CurrentIndex,
		ToIndex:    next,
		FromStatus: proc.Status,
		Status:     status,
		Final:      status == workflows.StatusCompleted,
	}, nil
}
