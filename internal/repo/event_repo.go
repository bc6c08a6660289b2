// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only event log.
//
// Events are the audit trail of a conflict: one row per state-changing
// action, never updated, never deleted while the conflict lives. There is
// deliberately no UpdateEvent or DeleteEvent here.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/accordhq/go-accord-backend/internal/domain"
)

// ErrUnknownEventType is returned when an event's type is outside the closed
// enumeration in the domain package.
var ErrUnknownEventType = errors.New("unknown event type")

// AppendEvent inserts one immutable event row for a conflict. ID and
// CreatedAt are assigned here; every other field comes from the caller.
// The event type must be one of the domain event constants.
func AppendEvent(ctx context.Context, db *gorm.DB, e *domain.Event) (*domain.Event, error) {
	if !domain.KnownEventType(e.EventType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
	if e.ConflictID == "" {
		return nil, errors.New("event requires a conflict id")
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvents returns the full event history of a conflict in creation order.
func ListEvents(ctx context.Context, db *gorm.DB, conflictID string) ([]domain.Event, error) {
	var out []domain.Event
	err := db.WithContext(ctx).
		Where("conflict_id = ?", conflictID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// CountEvents returns the number of events recorded for a conflict.
func CountEvents(ctx context.Context, db *gorm.DB, conflictID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("conflict_id = ?", conflictID).
		Count(&total).Error
	return total, err
}
