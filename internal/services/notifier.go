// Package services – real-time notification contract
//
// The service publishes a Notification to the conflict's topic after every
// committed mutation. Publishing is strictly best-effort and post-commit:
// a failed publish never rolls back or retries the underlying state change,
// and nothing is ever published for a transaction that aborted.
package services

import (
	"context"
	"time"
)

// Notifier is the fan-out boundary. The WebSocket hub implements it in
// production; tests use a recording fake.
type Notifier interface {
	// Publish delivers n to every subscriber of topic. Implementations must
	// not block the caller indefinitely and must swallow delivery failures.
	Publish(topic string, n Notification)
}

// Notification is the payload broadcast to both participants' live
// connections after a committed mutation.
type Notification struct {
	Type              string     `json:"type"`
	Slug              string     `json:"slug"`
	Status            string     `json:"status,omitempty"`
	TruceStatus       string     `json:"truce_status,omitempty"`
	Progress          *float64   `json:"progress,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	InitiatorID       string     `json:"initiator_id,omitempty"`
	InitiatorUsername string     `json:"initiator_username,omitempty"`
	ItemID            string     `json:"item_id,omitempty"`
}

// TopicFor returns the pub/sub topic carrying notifications for a conflict.
// One logical topic per conflict, keyed by the external slug.
func TopicFor(slug string) string { return "conflict_" + slug }

// UserDirectory resolves display names for event and notification payloads.
// Identity itself is owned by an upstream system; the core only consumes an
// already-authenticated user id and a best-effort username.
type UserDirectory interface {
	Username(ctx context.Context, userID string) (string, error)
}

// DirectoryFunc adapts a function to the UserDirectory interface.
type DirectoryFunc func(ctx context.Context, userID string) (string, error)

// Username implements UserDirectory.
func (f DirectoryFunc) Username(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}
