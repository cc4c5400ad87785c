package types

import "time"

// Link type constants.
const (
	LinkTypeBelongsTo    = "belongs_to"    // crumb → trail membership
	LinkTypeChildOf      = "child_of"      // crumb → crumb dependencies
	LinkTypeBranchesFrom = "branches_from" // trail → crumb branch point
)

var validLinkTypes = map[string]bool{
	LinkTypeBelongsTo:    true,
	LinkTypeChildOf:      true,
	LinkTypeBranchesFrom: true,
}

// Link represents a directed edge in the entity graph.
type Link struct {
	// LinkID is a UUID v7, generated on creation.
	LinkID string `json:"link_id"`

	// LinkType is the relationship type.
	LinkType string `json:"link_type"`

	// FromID is the source entity ID.
	FromID string `json:"from_id"`

	// ToID is the target entity ID.
	ToID string `json:"to_id"`

	// CreatedAt is the timestamp of creation.
	CreatedAt time.Time `json:"created_at"`
}

// NewLink builds a link between two entities.
// Returns ErrInvalidLinkType for an unknown type and ErrInvalidID when either
// end is empty.
func NewLink(linkType, fromID, toID string) (*Link, error) {
	if !validLinkTypes[linkType] {
		return nil, ErrInvalidLinkType
	}
	if fromID == "" || toID == "" {
		return nil, ErrInvalidID
	}
	return &Link{LinkType: linkType, FromID: fromID, ToID: toID, CreatedAt: time.Now().UTC()}, nil
}

// EntityID returns the link ID.
func (l *Link) EntityID() string { return l.LinkID }

// SetEntityID sets the link ID.
func (l *Link) SetEntityID(id string) { l.LinkID = id }
