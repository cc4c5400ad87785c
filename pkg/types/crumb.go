package types

import (
	"maps"
	"reflect"
	"time"
)

// Crumb states. A crumb progresses through these states during its lifecycle.
const (
	CrumbStateDraft   = "draft"
	CrumbStatePending = "pending"
	CrumbStateReady   = "ready"
	CrumbStateTaken   = "taken"
	CrumbStatePebble  = "pebble"
	CrumbStateDust    = "dust"
)

var validCrumbStates = map[string]bool{
	CrumbStateDraft:   true,
	CrumbStatePending: true,
	CrumbStateReady:   true,
	CrumbStateTaken:   true,
	CrumbStatePebble:  true,
	CrumbStateDust:    true,
}

// Crumb represents a work item or task.
type Crumb struct {
	CrumbID    string         `json:"crumb_id"`             // UUID v7, generated on creation.
	Name       string         `json:"name"`                 // Human-readable name (required, non-empty).
	State      string         `json:"state"`                // One of the CrumbState constants.
	CreatedAt  time.Time      `json:"created_at"`           // Timestamp of creation.
	UpdatedAt  time.Time      `json:"updated_at"`           // Timestamp of last modification.
	Properties map[string]any `json:"properties,omitempty"` // Property values keyed by property name.
}

// EntityID returns the crumb ID.
func (c *Crumb) EntityID() string { return c.CrumbID }

// SetEntityID sets the crumb ID.
func (c *Crumb) SetEntityID(id string) { c.CrumbID = id }

// Snapshot copies the crumb, including its Properties map, so that
// SetProperty on the live crumb shows up in Diff.
func (c *Crumb) Snapshot() any {
	cp := *c
	cp.Properties = maps.Clone(c.Properties)
	return cp
}

// Diff reports whether the crumb differs from a snapshot taken by Snapshot.
func (c *Crumb) Diff(s any) bool {
	old, ok := s.(Crumb)
	if !ok {
		return true
	}
	return old.CrumbID != c.CrumbID ||
		old.Name != c.Name ||
		old.State != c.State ||
		!old.CreatedAt.Equal(c.CreatedAt) ||
		!old.UpdatedAt.Equal(c.UpdatedAt) ||
		!reflect.DeepEqual(old.Properties, c.Properties)
}

// SetState sets the crumb state to the given value.
// Returns ErrInvalidState if the state is not recognized.
// Idempotent: setting the current state succeeds without error.
func (c *Crumb) SetState(state string) error {
	if !validCrumbStates[state] {
		return ErrInvalidState
	}
	c.State = state
	c.UpdatedAt = time.Now()
	return nil
}

// Pebble marks the crumb as successfully finished.
// Returns ErrInvalidTransition if the current state is not "taken".
func (c *Crumb) Pebble() error {
	if c.State != CrumbStateTaken {
		return ErrInvalidTransition
	}
	c.State = CrumbStatePebble
	c.UpdatedAt = time.Now()
	return nil
}

// Dust marks the crumb as failed or abandoned. Can be called from any state.
func (c *Crumb) Dust() {
	c.State = CrumbStateDust
	c.UpdatedAt = time.Now()
}

// SetProperty sets a property value, creating the entry if needed.
// Returns ErrInvalidName if name is empty.
func (c *Crumb) SetProperty(name string, value any) error {
	if name == "" {
		return ErrInvalidName
	}
	if c.Properties == nil {
		c.Properties = make(map[string]any)
	}
	c.Properties[name] = value
	c.UpdatedAt = time.Now()
	return nil
}

// GetProperty returns the value of a property.
// Returns ErrPropertyNotFound if the property is not set.
func (c *Crumb) GetProperty(name string) (any, error) {
	v, ok := c.Properties[name]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	return v, nil
}

// ClearProperty removes a property. Returns ErrPropertyNotFound if it is not
// set.
func (c *Crumb) ClearProperty(name string) error {
	if _, ok := c.Properties[name]; !ok {
		return ErrPropertyNotFound
	}
	delete(c.Properties, name)
	c.UpdatedAt = time.Now()
	return nil
}
