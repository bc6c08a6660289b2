// Package domain defines the core persistence models for the application.
package domain

import "time"

// Idempotency records a previously processed unsafe request, keyed by
// (user_id, conflict_slug, key). It lets the HTTP layer detect retries of
// mutating conflict operations and bypass rate limiting for replays instead
// of re-executing side effects. ConflictSlug is the slug from the request
// path (empty for create, which has none yet); ResultSlug points at the
// conflict the request produced or touched, so replays can be answered
// from it.
type Idempotency struct {
	ID           string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_slug_key,priority:1"`
	ConflictSlug string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_slug_key,priority:2"`
	Key          string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_slug_key,priority:3"`
	ResultSlug   string    `gorm:"type:TEXT NOT NULL"`
	Status       int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt    time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt    time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
