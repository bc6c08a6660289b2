// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Conflict
// aggregate and its items.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
//
// Error semantics:
//   - When a conflict is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - SaveConflict returns ErrStaleConflict when the aggregate was modified
//     by a concurrent writer since it was loaded (optimistic version check).
//   - On other DB errors the raw gorm error is propagated.
//
// The aggregate is always loaded whole: GetConflictBySlug preloads items and
// events so that the service layer can run convergence and progress logic
// purely in memory before persisting the result.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/accordhq/go-accord-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleConflict is returned by SaveConflict when the row's version no
// longer matches the loaded aggregate. The caller is expected to reload the
// aggregate and retry the whole use case a bounded number of times.
var ErrStaleConflict = errors.New("conflict modified concurrently")

// CreateConflict inserts a new conflict together with its initial items.
// IDs and timestamps must already be set by the caller (the service owns id
// and slug generation so that events can reference them before insert).
func CreateConflict(ctx context.Context, db *gorm.DB, c *domain.Conflict) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetConflictBySlug loads the whole aggregate addressed by its external
// slug: the conflict row plus items and events, both in creation order.
// Returns ErrNotFound when no such conflict exists (or it was purged).
func GetConflictBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Conflict, error) {
	var c domain.Conflict
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc, id asc") }).
		Preload("Events", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc, id asc") }).
		Where("slug = ?", slug).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConflict persists the mutable fields of the aggregate root under an
// optimistic version check. The UPDATE only matches when the stored version
// equals the version the aggregate was loaded with; zero affected rows means
// a concurrent writer won and ErrStaleConflict is returned. On success the
// in-memory version is bumped to mirror the row.
func SaveConflict(ctx context.Context, db *gorm.DB, c *domain.Conflict) error {
	res := db.WithContext(ctx).
		Model(&domain.Conflict{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]any{
			"partner_id":         c.PartnerID,
			"status":             c.Status,
			"progress":           c.Progress,
			"truce_status":       c.TruceStatus,
			"truce_initiator_id": c.TruceInitiatorID,
			"deleted_by_creator": c.DeletedByCreator,
			"deleted_by_partner": c.DeletedByPartner,
			"resolved_at":        c.ResolvedAt,
			"version":            c.Version + 1,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleConflict
	}
	c.Version++
	return nil
}

// AddItem appends a new item to an existing conflict. The item ID is
// generated here; CreatedAt is set to UTC now.
func AddItem(ctx context.Context, db *gorm.DB, item *domain.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(item).Error
}

// SaveItem persists the participant choice values and the derived agreement
// fields of a single item. Returns ErrNotFound when the item row is gone.
func SaveItem(ctx context.Context, db *gorm.DB, item *domain.Item) error {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ? AND conflict_id = ?", item.ID, item.ConflictID).
		Updates(map[string]any{
			"creator_choice_value": item.CreatorChoiceValue,
			"partner_choice_value": item.PartnerChoiceValue,
			"agreed_choice_value":  item.AgreedChoiceValue,
			"is_agreed":            item.IsAgreed,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeConflict marks the conflict row as deleted (gorm soft delete).
// Rows stay in place for audit but stop matching every normal query,
// including GetConflictBySlug.
func PurgeConflict(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Delete(&domain.Conflict{}, "id = ?", id).Error
}

// visibleScope filters conflicts down to the ones userID may still see:
// the user is a participant and has not soft-deleted their own side.
func visibleScope(db *gorm.DB, userID string) *gorm.DB {
	return db.Where(
		"(creator_id = ? AND deleted_by_creator = ?) OR (partner_id = ? AND deleted_by_partner = ?)",
		userID, false, userID, false,
	)
}

// CountConflicts returns the total number of conflicts visible to userID.
func CountConflicts(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := visibleScope(db.WithContext(ctx).Model(&domain.Conflict{}), userID).
		Count(&total).Error
	return total, err
}

// ListConflictsPage returns a page of conflicts visible to userID, newest
// first. Items and events are not preloaded; list views are shallow.
func ListConflictsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Conflict, error) {
	var out []domain.Conflict
	err := visibleScope(db.WithContext(ctx), userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListStaleConflicts returns non-terminal conflicts whose last mutation is
// older than cutoff. Used by the abandonment sweeper.
func ListStaleConflicts(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Conflict, error) {
	var out []domain.Conflict
	err := db.WithContext(ctx).
		Where("status IN ?", []string{domain.StatusPending, domain.StatusInProgress}).
		Where("updated_at < ?", cutoff).
		Find(&out).Error
	return out, err
}
