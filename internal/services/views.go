// Package services – serialized views
//
// Views are the shapes the service hands to transports (HTTP responses and
// WebSocket payloads). They are plain data: no gorm metadata, no soft-delete
// bookkeeping, no version counter.
package services

import (
	"time"

	"github.com/accordhq/go-accord-backend/internal/domain"
)

// ItemView is the external shape of a negotiation item.
type ItemView struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	CreatorChoiceValue *string `json:"creator_choice_value"`
	PartnerChoiceValue *string `json:"partner_choice_value"`
	AgreedChoiceValue  *string `json:"agreed_choice_value"`
	IsAgreed           bool    `json:"is_agreed"`
}

// EventView is the external shape of one audit-log entry.
type EventView struct {
	ID                string    `json:"id"`
	EventType         string    `json:"event_type"`
	InitiatorID       *string   `json:"initiator_id,omitempty"`
	InitiatorUsername *string   `json:"initiator_username,omitempty"`
	ItemID            *string   `json:"item_id,omitempty"`
	ItemTitle         *string   `json:"item_title,omitempty"`
	OldValue          *string   `json:"old_value,omitempty"`
	NewValue          *string   `json:"new_value,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ConflictView is the full external shape of a conflict, including items
// and the event history.
type ConflictView struct {
	ID               string      `json:"id"`
	Slug             string      `json:"slug"`
	Title            string      `json:"title"`
	Status           string      `json:"status"`
	Progress         float64     `json:"progress"`
	CreatorID        string      `json:"creator_id"`
	PartnerID        *string     `json:"partner_id"`
	TruceStatus      string      `json:"truce_status"`
	TruceInitiatorID *string     `json:"truce_initiator_id"`
	CreatedAt        time.Time   `json:"created_at"`
	ResolvedAt       *time.Time  `json:"resolved_at,omitempty"`
	Items            []ItemView  `json:"items"`
	Events           []EventView `json:"events"`
}

// ConflictShortView is the shallow shape used for lists and cancel results.
type ConflictShortView struct {
	ID         string     `json:"id"`
	Slug       string     `json:"slug"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Progress   float64    `json:"progress"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func itemView(it *domain.Item) ItemView {
	return ItemView{
		ID:                 it.ID,
		Title:              it.Title,
		CreatorChoiceValue: it.CreatorChoiceValue,
		PartnerChoiceValue: it.PartnerChoiceValue,
		AgreedChoiceValue:  it.AgreedChoiceValue,
		IsAgreed:           it.IsAgreed,
	}
}

func eventView(e *domain.Event) EventView {
	return EventView{
		ID:                e.ID,
		EventType:         e.EventType,
		InitiatorID:       e.InitiatorID,
		InitiatorUsername: e.InitiatorUsername,
		ItemID:            e.ItemID,
		ItemTitle:         e.ItemTitle,
		OldValue:          e.OldValue,
		NewValue:          e.NewValue,
		CreatedAt:         e.CreatedAt,
	}
}

func conflictView(c *domain.Conflict) *ConflictView {
	items := make([]ItemView, 0, len(c.Items))
	for i := range c.Items {
		items = append(items, itemView(&c.Items[i]))
	}
	events := make([]EventView, 0, len(c.Events))
	for i := range c.Events {
		events = append(events, eventView(&c.Events[i]))
	}
	return &ConflictView{
		ID:               c.ID,
		Slug:             c.Slug,
		Title:            c.Title,
		Status:           c.Status,
		Progress:         c.Progress,
		CreatorID:        c.CreatorID,
		PartnerID:        c.PartnerID,
		TruceStatus:      c.TruceStatus,
		TruceInitiatorID: c.TruceInitiatorID,
		CreatedAt:        c.CreatedAt,
		ResolvedAt:       c.ResolvedAt,
		Items:            items,
		Events:           events,
	}
}

func conflictShortView(c *domain.Conflict) *ConflictShortView {
	return &ConflictShortView{
		ID:         c.ID,
		Slug:       c.Slug,
		Title:      c.Title,
		Status:     c.Status,
		Progress:   c.Progress,
		CreatedAt:  c.CreatedAt,
		ResolvedAt: c.ResolvedAt,
	}
}
