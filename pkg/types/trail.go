package types

import "time"

// Trail state constants.
const (
	TrailStateDraft     = "draft"
	TrailStatePending   = "pending"
	TrailStateActive    = "active"
	TrailStateCompleted = "completed"
	TrailStateAbandoned = "abandoned"
)

// Trail represents an exploratory work session that groups crumbs. Crumb
// membership is stored via belongs_to links. Entity methods modify the struct
// in memory; a tracking session notices the change and persists it on save.
type Trail struct {
	TrailID     string     `json:"trail_id"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// EntityID returns the trail ID.
func (t *Trail) EntityID() string { return t.TrailID }

// SetEntityID sets the trail ID.
func (t *Trail) SetEntityID(id string) { t.TrailID = id }

// Start moves a draft or pending trail to active.
func (t *Trail) Start() error {
	if t.State != TrailStateDraft && t.State != TrailStatePending {
		return ErrInvalidTransition
	}
	t.State = TrailStateActive
	return nil
}

// Complete marks the trail as finished. The current state must be "active";
// otherwise ErrInvalidState is returned. On success CompletedAt is set to the
// current time.
func (t *Trail) Complete() error {
	return t.finish(TrailStateCompleted)
}

// Abandon marks the trail as discarded. The current state must be "active".
func (t *Trail) Abandon() error {
	return t.finish(TrailStateAbandoned)
}

func (t *Trail) finish(state string) error {
	if t.State != TrailStateActive {
		return ErrInvalidState
	}
	now := time.Now()
	t.State = state
	t.CompletedAt = &now
	return nil
}
