package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivationDecorateDeadlineFlags(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(72 * time.Hour)
	exact := now

	cases := []struct {
		name          string
		deadline      *time.Time
		state         DerivationState
		wantOverdue   bool
		wantRemaining *int
	}{
		{"past deadline while pending", &past, DerivationPending, true, intPtr(0)},
		{"past deadline while received", &past, DerivationReceived, true, intPtr(0)},
		{"deadline exactly now", &exact, DerivationPending, false, intPtr(0)},
		{"future deadline", &future, DerivationPending, false, intPtr(3)},
		{"past deadline after attention", &past, DerivationAttended, false, intPtr(0)},
		{"past deadline after rejection", &past, DerivationRejected, false, intPtr(0)},
		{"no deadline", nil, DerivationPending, false, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Derivation{
				DerivedAt: now.Add(-96 * time.Hour),
				Deadline:  tc.deadline,
				State:     tc.state,
			}
			view := d.Decorate(now)
			assert.Equal(t, 4, view.DaysElapsed)
			assert.Equal(t, tc.wantOverdue, view.IsOverdue)
			if tc.wantRemaining == nil {
				assert.Nil(t, view.DaysRemaining)
			} else {
				require.NotNil(t, view.DaysRemaining)
				assert.Equal(t, *tc.wantRemaining, *view.DaysRemaining)
			}
		})
	}
}

func intPtr(v int) *int { return &v }
