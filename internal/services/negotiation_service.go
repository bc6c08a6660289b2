// Package services – NegotiationService
//
// This file implements the NegotiationService, the application-level
// component that owns the conflict lifecycle: creation, retrieval, joining,
// item value updates with convergence and progress, cancellation, two-sided
// soft delete, the truce sub-protocol, and abandonment of stale conflicts.
//
// Every mutating use case runs inside one database transaction: the
// aggregate is loaded whole, mutated in memory, persisted together with its
// new events, and either fully commits or fully fails. Concurrent writers on
// the same conflict are serialized by the optimistic version check in
// repo.SaveConflict; a stale save aborts the transaction and the whole use
// case is transparently retried a bounded number of times.
//
// Real-time notifications are published only after the transaction has
// committed, and only best-effort: a lost notification never affects the
// persisted state.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// conflict slug and user identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/accordhq/go-accord-backend/internal/domain"
	"github.com/accordhq/go-accord-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// defaultSaveRetries bounds how often a use case is replayed after losing an
// optimistic-concurrency race before the failure is surfaced.
const defaultSaveRetries = 3

// NegotiationService coordinates all conflict use cases.
type NegotiationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Notifier receives post-commit notifications; may be nil in tests.
	Notifier Notifier
	// Users resolves display names for events; may be nil (ids are used).
	Users UserDirectory

	// MaxRetries overrides the optimistic-retry bound when > 0.
	MaxRetries int
}

// NewNegotiationService constructs a NegotiationService.
func NewNegotiationService(db *gorm.DB, notifier Notifier, users UserDirectory) *NegotiationService {
	return &NegotiationService{DB: db, Notifier: notifier, Users: users}
}

//
// Inputs and results
//

// CreateItemInput is one item of a new conflict. Both fields are required;
// Value is the creator's initial choice.
type CreateItemInput struct {
	Title string
	Value string
}

// CreateConflictInput carries everything needed to open a conflict.
type CreateConflictInput struct {
	Title     string
	PartnerID *string
	Items     []CreateItemInput
}

// UpdateItemResult is returned by UpdateItem. Conflict is non-nil only when
// the update newly resolved the whole conflict.
type UpdateItemResult struct {
	Item     ItemView      `json:"item"`
	Resolved bool          `json:"resolved"`
	Conflict *ConflictView `json:"conflict,omitempty"`
}

//
// Use cases
//

// Create opens a new conflict for creatorID with at least one item. Each
// item needs a non-empty title and a non-empty initial value from the
// creator. A fallback title is generated when none is supplied. The creation
// event is logged before the per-item events; progress starts at zero.
func (s *NegotiationService) Create(ctx context.Context, creatorID string, in CreateConflictInput) (*ConflictView, error) {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", creatorID)),
	)
	defer span.End()

	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.Title) == "" || it.Value == "" {
			return nil, ErrInvalidItem
		}
	}
	if in.PartnerID != nil && *in.PartnerID == creatorID {
		return nil, ErrSelfPartner
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fallbackTitle()
	}

	now := time.Now().UTC()
	c := &domain.Conflict{
		ID:          uuid.NewString(),
		Slug:        uuid.NewString(),
		CreatorID:   creatorID,
		PartnerID:   in.PartnerID,
		Title:       title,
		Status:      domain.StatusPending,
		TruceStatus: domain.TruceNone,
		Version:     1,
		CreatedAt:   now,
	}
	if in.PartnerID != nil {
		c.Status = domain.StatusInProgress
	}
	for _, it := range in.Items {
		v := it.Value
		c.Items = append(c.Items, domain.Item{
			ID:                 uuid.NewString(),
			ConflictID:         c.ID,
			Title:              it.Title,
			CreatorChoiceValue: &v,
			CreatedAt:          now,
		})
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateConflict(ctx, tx, c); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, tx, c, domain.EventConflictCreate, &creatorID, nil, nil, nil); err != nil {
			return err
		}
		for i := range c.Items {
			if err := s.appendEvent(ctx, tx, c, domain.EventItemAdd, &creatorID, &c.Items[i], nil, c.Items[i].CreatorChoiceValue); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conflictView(c), nil
}

// Get returns the full view of a conflict addressed by slug. Only visible
// participants get a result; everyone else receives ErrConflictNotFound,
// indistinguishable from an absent conflict.
func (s *NegotiationService) Get(ctx context.Context, userID, slug string) (*ConflictView, error) {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("conflict.slug", slug), attribute.String("user.id", userID)),
	)
	defer span.End()

	c, err := s.loadForUser(ctx, s.DB, userID, slug)
	if err != nil {
		return nil, err
	}
	return conflictView(c), nil
}

// List returns a page of the user's visible conflicts, newest first, plus
// the total count for pagination.
func (s *NegotiationService) List(ctx context.Context, userID string, page, pageSize int) ([]ConflictShortView, int64, error) {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountConflicts(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []ConflictShortView{}, 0, nil
	}

	rows, err := repo.ListConflictsPage(ctx, s.DB, userID, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ConflictShortView, 0, len(rows))
	for i := range rows {
		out = append(out, *conflictShortView(&rows[i]))
	}
	return out, total, nil
}

// Join assigns userID as the partner of a pending conflict. The partner slot
// can be filled at most once and never by the creator; joining moves the
// conflict to in_progress and notifies the creator's live connections.
func (s *NegotiationService) Join(ctx context.Context, userID, slug string) (*ConflictView, error) {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, "Join",
		trace.WithAttributes(attribute.String("conflict.slug", slug), attribute.String("user.id", userID)),
	)
	defer span.End()

	c, err := s.mutate(ctx, slug, func(tx *gorm.DB, c *domain.Conflict) (*Notification, error) {
		if c.IsCreator(userID) {
			return nil, ErrSelfPartner
		}
		if c.PartnerID != nil {
			// A joined outsider learns nothing beyond "taken".
			if !c.IsParticipant(userID) {
				return nil, ErrConflictNotFound
			}
			return nil, ErrPartnerAssigned
		}
		if c.IsTerminal() {
			return nil, ErrConflictClosed
		}
		uid := userID
		c.PartnerID = &uid
		c.Status = domain.StatusInProgress
		if err := repo.SaveConflict(ctx, tx, c); err != nil {
			return nil, err
		}
		if err := s.appendEvent(ctx, tx, c, domain.EventConflictJoin, &userID, nil, nil, nil); err != nil {
			return nil, err
		}
		return s.notification(ctx, c, domain.EventConflictJoin, userID, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return conflictView(c), nil
}

// UpdateItem overwrites the caller's side of an item with newValue, captures
// the old value in the audit log, re-evaluates convergence, and recomputes
// aggregate progress. When progress reaches 100 the conflict resolves,
// resolved_at is stamped exactly once, and a resolution event follows the
// item event. Exactly one item_update event is emitted per call regardless
// of agreement.
func (s *NegotiationService) UpdateItem(ctx context.Context, userID, slug, itemID, newValue string) (*UpdateItemResult, error) {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, "UpdateItem",
		trace.WithAttributes(
			attribute.String("conflict.slug", slug),
			attribute.String("item.id", itemID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	if newValue == "" {
		return nil, ErrEmptyValue
	}

	var result *UpdateItemResult
	c, err := s.mutate(ctx, slug, func(tx *gorm.DB, c *domain.Conflict) (*Notification, error) {
		if !c.IsParticipant(userID) || !c.VisibleTo(userID) {
			return nil, ErrConflictNotFound
		}
		if c.IsTerminal() {
			return nil, ErrConflictClosed
		}

		item := findItem(c, itemID)
		if item == nil {
			return nil, ErrItemNotFound
		}

		var oldValue *string
		v := newValue
		if c.IsCreator(userID) {
			oldValue = item.CreatorChoiceValue
			item.CreatorChoiceValue = &v
		} else {
			oldValue = item.PartnerChoiceValue
			item.PartnerChoiceValue = &v
		}

		domain.ApplyConvergence(item)
		if err := repo.SaveItem(ctx, tx, item); err != nil {
			return nil, err
		}

		c.Progress = domain.ComputeProgress(c.Items)
		newlyResolved := c.Progress >= 100 && c.Status != domain.StatusResolved
		if newlyResolved {
			c.Status = domain.StatusResolved
			if c.ResolvedAt == nil {
				now := time.Now().UTC()
				c.ResolvedAt = &now
			}
		}
		if err := repo.SaveConflict(ctx, tx, c); err != nil {
			return nil, err
		}

		if err := s.appendEvent(ctx, tx, c, domain.EventItemUpdate, &userID, item, oldValue, &v); err != nil {
			return nil, err
		}
		noteType := domain.EventItemUpdate
		if newlyResolved {
			if err := s.appendEvent(ctx, tx, c, domain.EventConflictResolved, &userID, nil, nil, nil); err != nil {
				return nil, err
			}
			noteType = domain.EventConflictResolved
		}

		result = &UpdateItemResult{Item: itemView(item), Resolved: newlyResolved}
		return s.notification(ctx, c, noteType, userID, item), nil
	})
	if err != nil {
		return nil, err
	}
	if result.Resolved {
		result.Conflict = conflictView(c)
	}
	return result, nil
}

// Cancel ends a non-terminal conflict, stamps resolved_at, and notifies both
// participants.
func (s *NegotiationService) Cancel(ctx context.Context, userID, slug string) (*ConflictShortView, error) {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(attribute.String("conflict.slug", slug), attribute.String("user.id", userID)),
	)
	defer span.End()

	c, err := s.mutate(ctx, slug, func(tx *gorm.DB, c *domain.Conflict) (*Notification, error) {
		if !c.IsParticipant(userID) || !c.VisibleTo(userID) {
			return nil, ErrConflictNotFound
		}
		if c.IsTerminal() {
			return nil, ErrConflictClosed
		}
		c.Status = domain.StatusCancelled
		if c.ResolvedAt == nil {
			now := time.Now().UTC()
			c.ResolvedAt = &now
		}
		if err := repo.SaveConflict(ctx, tx, c); err != nil {
			return nil, err
		}
		if err := s.appendEvent(ctx, tx, c, domain.EventConflictCancel, &userID, nil, nil, nil); err != nil {
			return nil, err
		}
		return s.notification(ctx, c, domain.EventConflictCancel, userID, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return conflictShortView(c), nil
}

// Delete performs the caller's half of the two-sided soft delete. The
// conflict disappears from the caller's listings immediately, but is only
// materially removed once both participants have deleted it; resolved_at is
// stamped at that point if still unset. Deleting the same side twice is an
// error, not a silent no-op.
func (s *NegotiationService) Delete(ctx context.Context, userID, slug string) error {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("conflict.slug", slug), attribute.String("user.id", userID)),
	)
	defer span.End()

	_, err := s.mutate(ctx, slug, func(tx *gorm.DB, c *domain.Conflict) (*Notification, error) {
		if !c.IsParticipant(userID) {
			return nil, ErrConflictNotFound
		}
		if c.IsCreator(userID) {
			if c.DeletedByCreator {
				return nil, ErrAlreadyDeleted
			}
			c.DeletedByCreator = true
		} else {
			if c.DeletedByPartner {
				return nil, ErrAlreadyDeleted
			}
			c.DeletedByPartner = true
		}

		purge := c.DeletedByCreator && (c.DeletedByPartner || c.PartnerID == nil)
		if purge && c.ResolvedAt == nil {
			now := time.Now().UTC()
			c.ResolvedAt = &now
		}
		if err := repo.SaveConflict(ctx, tx, c); err != nil {
			return nil, err
		}
		if err := s.appendEvent(ctx, tx, c, domain.EventConflictDelete, &userID, nil, nil, nil); err != nil {
			return nil, err
		}
		if purge {
			if err := repo.PurgeConflict(ctx, tx, c.ID); err != nil {
				return nil, err
			}
		}
		return s.notification(ctx, c, domain.EventConflictDelete, userID, nil), nil
	})
	return err
}

// OfferTruce opens the truce sub-protocol: none → pending, the caller
// becomes the initiator. An offer requires both participants, a conflict in
// progress, no other pending offer, and every item answered by both sides.
func (s *NegotiationService) OfferTruce(ctx context.Context, userID, slug string) (*ConflictView, error) {
	return s.transitionTruce(ctx, userID, slug, "OfferTruce",
		func(c *domain.Conflict) error {
			if c.PartnerID == nil {
				return ErrMissingPartner
			}
			if c.TruceStatus != domain.TruceNone {
				return ErrTrucePending
			}
			if !domain.AllItemsAnswered(c.Items) {
				return ErrItemsUnanswered
			}
			uid := userID
			c.TruceStatus = domain.TrucePending
			c.TruceInitiatorID = &uid
			return nil
		},
		domain.EventTruceOffer, false)
}

// CancelTruceOffer ends a pending offer: pending → none. Either participant
// may call it; the initiator retracts their own offer, the other side
// declines it. Both paths clear the initiator and log the caller.
func (s *NegotiationService) CancelTruceOffer(ctx context.Context, userID, slug string) (*ConflictView, error) {
	return s.transitionTruce(ctx, userID, slug, "CancelTruceOffer",
		func(c *domain.Conflict) error {
			if c.TruceStatus != domain.TrucePending {
				return ErrNoActiveTruce
			}
			c.TruceStatus = domain.TruceNone
			c.TruceInitiatorID = nil
			return nil
		},
		domain.EventTruceDecline, false)
}

// AcceptTruce accepts a pending offer: pending → accepted. Only the
// participant who did not initiate the offer may accept; acceptance also
// resolves the conflict regardless of item progress.
func (s *NegotiationService) AcceptTruce(ctx context.Context, userID, slug string) (*ConflictView, error) {
	return s.transitionTruce(ctx, userID, slug, "AcceptTruce",
		func(c *domain.Conflict) error {
			if c.TruceStatus != domain.TrucePending {
				return ErrNoActiveTruce
			}
			if c.TruceInitiatorID != nil && *c.TruceInitiatorID == userID {
				return ErrTruceSelfAccept
			}
			// The initiator stays on record as who offered the truce.
			c.TruceStatus = domain.TruceAccepted
			c.Status = domain.StatusResolved
			if c.ResolvedAt == nil {
				now := time.Now().UTC()
				c.ResolvedAt = &now
			}
			return nil
		},
		domain.EventTruceAccept, true)
}

// AbandonStale marks every non-terminal conflict untouched since olderThan
// ago as abandoned. It is meant to run from a background sweeper, not a user
// request; the emitted events carry no initiator. Conflicts that lose a
// concurrent race are skipped and picked up by the next sweep.
func (s *NegotiationService) AbandonStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, "AbandonStale")
	defer span.End()

	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := repo.ListStaleConflicts(ctx, s.DB, cutoff)
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for i := range stale {
		c := &stale[i]
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			c.Status = domain.StatusAbandoned
			if err := repo.SaveConflict(ctx, tx, c); err != nil {
				return err
			}
			return s.appendEvent(ctx, tx, c, domain.EventConflictAbandon, nil, nil, nil, nil)
		})
		switch {
		case errors.Is(err, repo.ErrStaleConflict):
			continue
		case err != nil:
			return abandoned, err
		}
		abandoned++
		s.publish(c.Slug, s.notification(ctx, c, domain.EventConflictAbandon, "", nil))
	}
	return abandoned, nil
}

//
// Internals
//

// loadForUser loads the whole aggregate and applies the merged
// not-found/access-denied rule: non-participants and sides that deleted the
// conflict get ErrConflictNotFound.
func (s *NegotiationService) loadForUser(ctx context.Context, db *gorm.DB, userID, slug string) (*domain.Conflict, error) {
	c, err := repo.GetConflictBySlug(ctx, db, slug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConflictNotFound
		}
		return nil, err
	}
	if !c.IsParticipant(userID) || !c.VisibleTo(userID) {
		return nil, ErrConflictNotFound
	}
	return c, nil
}

// mutate runs fn against the freshly loaded aggregate inside one
// transaction, retrying the whole use case when the optimistic save loses a
// race. The notification returned by fn is published only after the commit.
//
// fn is responsible for its own access checks: Join races on the partner
// slot and must see the aggregate before the caller is a participant.
func (s *NegotiationService) mutate(ctx context.Context, slug string, fn func(tx *gorm.DB, c *domain.Conflict) (*Notification, error)) (*domain.Conflict, error) {
	retries := s.MaxRetries
	if retries <= 0 {
		retries = defaultSaveRetries
	}

	var (
		conflict *domain.Conflict
		note     *Notification
		err      error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		conflict, note = nil, nil
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			c, lerr := repo.GetConflictBySlug(ctx, tx, slug)
			if lerr != nil {
				if errors.Is(lerr, repo.ErrNotFound) {
					return ErrConflictNotFound
				}
				return lerr
			}
			n, ferr := fn(tx, c)
			if ferr != nil {
				return ferr
			}
			conflict, note = c, n
			return nil
		})
		if errors.Is(err, repo.ErrStaleConflict) {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}
	s.publish(conflict.Slug, note)
	return conflict, nil
}

// transitionTruce is the shared body of the three truce operations: load,
// participant check, terminal check, the operation-specific transition,
// save, event, notification. resolves controls whether a conflict_resolved
// event follows the truce event.
func (s *NegotiationService) transitionTruce(ctx context.Context, userID, slug, op string, transition func(c *domain.Conflict) error, eventType string, resolves bool) (*ConflictView, error) {
	tr := otel.Tracer("services/NegotiationService")
	ctx, span := tr.Start(ctx, op,
		trace.WithAttributes(attribute.String("conflict.slug", slug), attribute.String("user.id", userID)),
	)
	defer span.End()

	c, err := s.mutate(ctx, slug, func(tx *gorm.DB, c *domain.Conflict) (*Notification, error) {
		if !c.IsParticipant(userID) || !c.VisibleTo(userID) {
			return nil, ErrConflictNotFound
		}
		if c.IsTerminal() {
			return nil, ErrConflictClosed
		}
		oldTruce := c.TruceStatus
		if err := transition(c); err != nil {
			return nil, err
		}
		if err := repo.SaveConflict(ctx, tx, c); err != nil {
			return nil, err
		}
		if err := s.appendEvent(ctx, tx, c, eventType, &userID, nil, &oldTruce, &c.TruceStatus); err != nil {
			return nil, err
		}
		if resolves {
			if err := s.appendEvent(ctx, tx, c, domain.EventConflictResolved, &userID, nil, nil, nil); err != nil {
				return nil, err
			}
		}
		return s.notification(ctx, c, eventType, userID, nil), nil
	})
	if err != nil {
		return nil, err
	}
	return conflictView(c), nil
}

// appendEvent writes one audit record inside the current transaction and
// mirrors it onto the in-memory aggregate so views stay complete. Old and
// new values are snapshotted because event rows are immutable.
func (s *NegotiationService) appendEvent(ctx context.Context, tx *gorm.DB, c *domain.Conflict, eventType string, initiatorID *string, item *domain.Item, oldValue, newValue *string) error {
	e := &domain.Event{
		ConflictID:  c.ID,
		EventType:   eventType,
		InitiatorID: initiatorID,
		OldValue:    snapshot(oldValue),
		NewValue:    snapshot(newValue),
	}
	if initiatorID != nil {
		name := s.username(ctx, *initiatorID)
		e.InitiatorUsername = &name
	}
	if item != nil {
		id, title := item.ID, item.Title
		e.ItemID = &id
		e.ItemTitle = &title
	}
	if _, err := repo.AppendEvent(ctx, tx, e); err != nil {
		return err
	}
	c.Events = append(c.Events, *e)
	return nil
}

// notification builds the broadcast payload for a committed mutation.
func (s *NegotiationService) notification(ctx context.Context, c *domain.Conflict, noteType, initiatorID string, item *domain.Item) *Notification {
	n := &Notification{
		Type:        noteType,
		Slug:        c.Slug,
		Status:      c.Status,
		TruceStatus: c.TruceStatus,
		ResolvedAt:  c.ResolvedAt,
		InitiatorID: initiatorID,
	}
	progress := c.Progress
	n.Progress = &progress
	if initiatorID != "" {
		n.InitiatorUsername = s.username(ctx, initiatorID)
	}
	if item != nil {
		n.ItemID = item.ID
	}
	return n
}

// publish pushes a notification to the conflict's topic. Best-effort by
// contract: nothing here can fail the already-committed use case.
func (s *NegotiationService) publish(slug string, n *Notification) {
	if s.Notifier == nil || n == nil {
		return
	}
	s.Notifier.Publish(TopicFor(slug), *n)
	log.Debug().Str("topic", TopicFor(slug)).Str("type", n.Type).Msg("notification published")
}

// username resolves a display name, falling back to the raw id when the
// directory is absent or errors out.
func (s *NegotiationService) username(ctx context.Context, userID string) string {
	if s.Users == nil {
		return userID
	}
	name, err := s.Users.Username(ctx, userID)
	if err != nil || name == "" {
		return userID
	}
	return name
}

// snapshot copies an optional string so event rows never alias live item
// fields.
func snapshot(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

// findItem returns the aggregate's item with the given id, or nil.
func findItem(c *domain.Conflict, itemID string) *domain.Item {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// fallbackTitle builds the default conflict title from a fresh random id:
// "Conflict - " plus its first eight hex characters, uppercased.
func fallbackTitle() string {
	hexID := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "Conflict - " + hexID[:8]
}
