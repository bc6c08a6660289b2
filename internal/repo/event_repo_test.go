package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/accordhq/go-accord-backend/internal/domain"
)

func TestAppendEvent_AssignsIDAndTimestamp(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c := newConflict("u1", nil)
	if err := CreateConflict(ctx, db, c); err != nil {
		t.Fatalf("CreateConflict: %v", err)
	}

	e, err := AppendEvent(ctx, db, &domain.Event{
		ConflictID:        c.ID,
		EventType:         domain.EventConflictCreate,
		InitiatorID:       strp("u1"),
		InitiatorUsername: strp("alice"),
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if e.ID == "" {
		t.Fatal("event id not assigned")
	}
	if e.CreatedAt.IsZero() {
		t.Fatal("created_at not assigned")
	}
}

func TestAppendEvent_RejectsUnknownType(t *testing.T) {
	db := testDB(t)
	_, err := AppendEvent(context.Background(), db, &domain.Event{
		ConflictID: "c1",
		EventType:  "item_delete",
	})
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("err = %v; want ErrUnknownEventType", err)
	}
}

func TestAppendEvent_RequiresConflictID(t *testing.T) {
	db := testDB(t)
	_, err := AppendEvent(context.Background(), db, &domain.Event{EventType: domain.EventItemAdd})
	if err == nil {
		t.Fatal("expected error for missing conflict id")
	}
}

func TestListEvents_OrderedByCreation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c := newConflict("u1", nil)
	if err := CreateConflict(ctx, db, c); err != nil {
		t.Fatalf("CreateConflict: %v", err)
	}

	types := []string{domain.EventConflictCreate, domain.EventItemAdd, domain.EventItemUpdate}
	for _, et := range types {
		if _, err := AppendEvent(ctx, db, &domain.Event{ConflictID: c.ID, EventType: et}); err != nil {
			t.Fatalf("AppendEvent(%s): %v", et, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct created_at for strict ordering
	}

	events, err := ListEvents(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d; want 3", len(events))
	}
	for i, et := range types {
		if events[i].EventType != et {
			t.Errorf("events[%d] = %s; want %s", i, events[i].EventType, et)
		}
	}

	total, err := CountEvents(ctx, db, c.ID)
	if err != nil || total != 3 {
		t.Fatalf("CountEvents = (%d, %v); want (3, nil)", total, err)
	}
}
