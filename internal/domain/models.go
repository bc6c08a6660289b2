// Package domain defines the persistence models for conflicts, their
// negotiation items, and the append-only event log. These types are mapped
// with GORM and form the core data layer of the negotiation backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Conflict statuses. A conflict starts as pending (waiting for a partner),
// moves to in_progress once both participants are present, and ends in one
// of the terminal states resolved, cancelled, or abandoned.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusCancelled  = "cancelled"
	StatusAbandoned  = "abandoned"
)

// Truce statuses for the secondary offer/accept/decline sub-protocol.
const (
	TruceNone     = "none"
	TrucePending  = "pending"
	TruceAccepted = "accepted"
)

// Event types recorded in the conflict event log. The enumeration is closed:
// repo.AppendEvent rejects anything not listed here.
const (
	EventConflictCreate   = "conflict_create"
	EventConflictJoin     = "conflict_join"
	EventItemAdd          = "item_add"
	EventItemUpdate       = "item_update"
	EventConflictCancel   = "conflict_cancel"
	EventConflictDelete   = "conflict_delete"
	EventConflictAbandon  = "conflict_abandon"
	EventConflictResolved = "conflict_resolved"
	EventTruceOffer       = "truce_offer"
	EventTruceAccept      = "truce_accept"
	EventTruceDecline     = "truce_decline"
)

// KnownEventType reports whether t belongs to the closed event enumeration.
func KnownEventType(t string) bool {
	switch t {
	case EventConflictCreate, EventConflictJoin, EventItemAdd, EventItemUpdate,
		EventConflictCancel, EventConflictDelete, EventConflictAbandon,
		EventConflictResolved, EventTruceOffer, EventTruceAccept, EventTruceDecline:
		return true
	}
	return false
}

// Conflict is the aggregate root of a two-party negotiation. It owns its
// Items and Events and is always loaded, mutated, and persisted as a whole.
//
// Fields of note:
//   - Slug: unique, URL-safe external identifier; the internal ID never
//     appears in URLs.
//   - PartnerID: optional, set at most once, never equal to CreatorID.
//   - Progress: derived from the items (percentage agreed), never accepted
//     from external input.
//   - DeletedByCreator / DeletedByPartner: two-sided soft delete; the row is
//     only marked deleted (gorm soft delete) once both are true.
//   - Version: optimistic-concurrency counter bumped on every save; see
//     repo.SaveConflict.
type Conflict struct {
	ID        string  `json:"id"         gorm:"type:char(36);primaryKey"`
	Slug      string  `json:"slug"       gorm:"type:varchar(64);not null;uniqueIndex:ux_conflict_slug"`
	CreatorID string  `json:"creator_id" gorm:"type:varchar(64);not null;index:idx_conflict_creator"`
	PartnerID *string `json:"partner_id" gorm:"type:varchar(64);index:idx_conflict_partner"`
	Title     string  `json:"title"      gorm:"type:varchar(255);not null"`
	Status    string  `json:"status"     gorm:"type:varchar(20);not null;default:'pending';check:status IN ('pending','in_progress','resolved','cancelled','abandoned')"`
	Progress  float64 `json:"progress"   gorm:"not null;default:0"`

	TruceStatus      string  `json:"truce_status"       gorm:"type:varchar(10);not null;default:'none';check:truce_status IN ('none','pending','accepted')"`
	TruceInitiatorID *string `json:"truce_initiator_id" gorm:"type:varchar(64)"`

	DeletedByCreator bool `json:"-" gorm:"not null;default:false"`
	DeletedByPartner bool `json:"-" gorm:"not null;default:false"`

	Version int `json:"-" gorm:"not null;default:1"`

	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// Items and Events are owned by the conflict and cascade with it.
	Items  []Item  `json:"items,omitempty"  gorm:"foreignKey:ConflictID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Events []Event `json:"events,omitempty" gorm:"foreignKey:ConflictID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conflict.
func (Conflict) TableName() string { return "conflicts" }

// IsTerminal reports whether the conflict has reached a terminal status.
// Terminal conflicts accept no further item mutation, truce action, or
// cancellation.
func (c *Conflict) IsTerminal() bool {
	switch c.Status {
	case StatusResolved, StatusCancelled, StatusAbandoned:
		return true
	}
	return false
}

// IsParticipant reports whether userID is the creator or the partner.
func (c *Conflict) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == c.CreatorID || (c.PartnerID != nil && userID == *c.PartnerID)
}

// IsCreator reports whether userID is the creator side of the conflict.
func (c *Conflict) IsCreator(userID string) bool { return userID == c.CreatorID }

// OtherParticipant returns the participant opposite to userID, or nil when
// the conflict has no partner yet or userID is not a participant.
func (c *Conflict) OtherParticipant(userID string) *string {
	switch {
	case userID == c.CreatorID:
		return c.PartnerID
	case c.PartnerID != nil && userID == *c.PartnerID:
		id := c.CreatorID
		return &id
	}
	return nil
}

// VisibleTo reports whether userID still sees the conflict. A participant who
// soft-deleted their side no longer sees it; the other side is unaffected.
func (c *Conflict) VisibleTo(userID string) bool {
	switch {
	case userID == c.CreatorID:
		return !c.DeletedByCreator
	case c.PartnerID != nil && userID == *c.PartnerID:
		return !c.DeletedByPartner
	}
	return false
}

// Item is one discrete point requiring agreement within a conflict. Each
// participant submits their own choice value; AgreedChoiceValue and IsAgreed
// are derived by EvaluateItem and never written directly from input.
type Item struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	ConflictID string `json:"conflict_id" gorm:"type:char(36);not null;index:idx_conflict_items"`
	Title      string `json:"title"       gorm:"type:varchar(100);not null"`

	CreatorChoiceValue *string `json:"creator_choice_value" gorm:"type:text"`
	PartnerChoiceValue *string `json:"partner_choice_value" gorm:"type:text"`
	AgreedChoiceValue  *string `json:"agreed_choice_value"  gorm:"type:text"`
	IsAgreed           bool    `json:"is_agreed"            gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "conflict_items" }

// Event is one immutable audit record of a state-changing action on a
// conflict. Rows are append-only and ordered by creation time; the event log
// is an audit trail and notification source, never a replay source.
//
// InitiatorID and InitiatorUsername are optional because system-generated
// events (abandonment) have no acting user. ItemID and ItemTitle are present
// only on item-scoped events.
type Event struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	ConflictID string `json:"conflict_id" gorm:"type:char(36);not null;index:idx_conflict_events,priority:1"`
	EventType  string `json:"event_type"  gorm:"type:varchar(50);not null"`

	InitiatorID       *string `json:"initiator_id,omitempty"       gorm:"type:varchar(64)"`
	InitiatorUsername *string `json:"initiator_username,omitempty" gorm:"type:varchar(150)"`

	ItemID    *string `json:"item_id,omitempty"    gorm:"type:char(36)"`
	ItemTitle *string `json:"item_title,omitempty" gorm:"type:varchar(100)"`

	OldValue *string `json:"old_value,omitempty" gorm:"type:text"`
	NewValue *string `json:"new_value,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_conflict_events,priority:2"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "conflict_events" }
