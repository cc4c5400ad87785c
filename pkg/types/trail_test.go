package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailFinish(t *testing.T) {
	tests := []struct {
		name      string
		initial   string
		finish    func(*Trail) error
		wantErr   error
		wantState string
	}{
		{name: "complete from active", initial: TrailStateActive, finish: (*Trail).Complete, wantState: TrailStateCompleted},
		{name: "abandon from active", initial: TrailStateActive, finish: (*Trail).Abandon, wantState: TrailStateAbandoned},
		{name: "complete from draft fails", initial: TrailStateDraft, finish: (*Trail).Complete, wantErr: ErrInvalidState},
		{name: "complete from completed fails", initial: TrailStateCompleted, finish: (*Trail).Complete, wantErr: ErrInvalidState},
		{name: "abandon from pending fails", initial: TrailStatePending, finish: (*Trail).Abandon, wantErr: ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Trail{TrailID: "t1", State: tt.initial}

			err := tt.finish(tr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.initial, tr.State)
				assert.Nil(t, tr.CompletedAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, tr.State)
			assert.NotNil(t, tr.CompletedAt)
		})
	}
}

func TestTrailStart(t *testing.T) {
	tr := &Trail{State: TrailStateDraft}
	require.NoError(t, tr.Start())
	assert.Equal(t, TrailStateActive, tr.State)
	assert.ErrorIs(t, tr.Start(), ErrInvalidTransition)
}

func TestNewLink(t *testing.T) {
	l, err := NewLink(LinkTypeBelongsTo, "c1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "c1", l.FromID)
	assert.Equal(t, "t1", l.ToID)
	assert.False(t, l.CreatedAt.IsZero())

	_, err = NewLink("likes", "c1", "t1")
	assert.ErrorIs(t, err, ErrInvalidLinkType)

	_, err = NewLink(LinkTypeChildOf, "", "t1")
	assert.ErrorIs(t, err, ErrInvalidID)
}
