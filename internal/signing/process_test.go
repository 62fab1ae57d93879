package signing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainhub/platform/signing-backend/pkg/workflows"
)

func TestAdvance(t *testing.T) {
	procID := uuid.New()

	tests := []struct {
		name       string
		status     string
		current    int
		order      int
		total      int
		wantStatus string
		wantIndex  int
		wantFinal  bool
	}{
		{"first of three", workflows.StatusPending, 0, 0, 3, workflows.StatusPartiallySigned, 1, false},
		{"middle of three", workflows.StatusPartiallySigned, 1, 1, 3, workflows.StatusPartiallySigned, 2, false},
		{"last of three", workflows.StatusPartiallySigned, 2, 2, 3, workflows.StatusCompleted, 3, true},
		{"single signatory", workflows.StatusPending, 0, 0, 1, workflows.StatusCompleted, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &SigningProcess{ID: procID, Status: tt.status, CurrentIndex: tt.current}
			sig := &Signatory{ID: uuid.New(), ProcessID: procID, OrderIndex: tt.order}

			tr, err := Advance(proc, sig, tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, tr.Status)
			assert.Equal(t, tt.wantIndex, tr.ToIndex)
			assert.Equal(t, tt.current, tr.FromIndex)
			assert.Equal(t, tt.wantFinal, tr.Final)
			assert.Nil(t, tr.IntermediatePath)
			assert.Equal(t, tt.current, proc.CurrentIndex, "process must not be mutated")
		})
	}
}

func TestAdvance_Rejections(t *testing.T) {
	procID := uuid.New()
	signed := time.Now()

	tests := []struct {
		name    string
		proc    *SigningProcess
		sig     *Signatory
		total   int
		wantErr error
	}{
		{
			name:    "wrong turn",
			proc:    &SigningProcess{ID: procID, Status: workflows.StatusPending},
			sig:     &Signatory{ProcessID: procID, OrderIndex: 1},
			total:   2,
			wantErr: ErrNotFound,
		},
		{
			name:    "completed process",
			proc:    &SigningProcess{ID: procID, Status: workflows.StatusCompleted, CurrentIndex: 1},
			sig:     &Signatory{ProcessID: procID, OrderIndex: 1},
			total:   2,
			wantErr: ErrNotFound,
		},
		{
			name:    "already signed",
			proc:    &SigningProcess{ID: procID, Status: workflows.StatusPending},
			sig:     &Signatory{ProcessID: procID, SignedAt: &signed},
			total:   2,
			wantErr: ErrAlreadySigned,
		},
		{
			name:    "other process",
			proc:    &SigningProcess{ID: procID, Status: workflows.StatusPending},
			sig:     &Signatory{ProcessID: uuid.New()},
			total:   2,
			wantErr: ErrNotFound,
		},
		{
			name:    "missing signatory",
			proc:    &SigningProcess{ID: procID, Status: workflows.StatusPending},
			total:   1,
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Advance(tt.proc, tt.sig, tt.total)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAdvance_IndexBeyondSignatories(t *testing.T) {
	procID := uuid.New()
	proc := &SigningProcess{ID: procID, Status: workflows.StatusPartiallySigned, CurrentIndex: 2}
	sig := &Signatory{ProcessID: procID, OrderIndex: 2}

	_, err := Advance(proc, sig, 2)
	require.Error(t, err)
	assert.Equal(t, 500, statusFor(err))
}
