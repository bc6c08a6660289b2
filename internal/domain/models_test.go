package domain

import "testing"

func TestKnownEventType(t *testing.T) {
	for _, et := range []string{
		EventConflictCreate, EventConflictJoin, EventItemAdd, EventItemUpdate,
		EventConflictCancel, EventConflictDelete, EventConflictAbandon,
		EventConflictResolved, EventTruceOffer, EventTruceAccept, EventTruceDecline,
	} {
		if !KnownEventType(et) {
			t.Errorf("KnownEventType(%q) = false; want true", et)
		}
	}
	for _, et := range []string{"", "item_delete", "CONFLICT_CREATE", "truce"} {
		if KnownEventType(et) {
			t.Errorf("KnownEventType(%q) = true; want false", et)
		}
	}
}

func TestConflict_IsTerminal(t *testing.T) {
	cases := map[string]bool{
		StatusPending:    false,
		StatusInProgress: false,
		StatusResolved:   true,
		StatusCancelled:  true,
		StatusAbandoned:  true,
	}
	for status, want := range cases {
		c := &Conflict{Status: status}
		if got := c.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v; want %v", status, got, want)
		}
	}
}

func TestConflict_Participants(t *testing.T) {
	partner := "u2"
	c := &Conflict{CreatorID: "u1", PartnerID: &partner}

	if !c.IsParticipant("u1") || !c.IsParticipant("u2") {
		t.Fatal("both sides must be participants")
	}
	if c.IsParticipant("u3") || c.IsParticipant("") {
		t.Fatal("outsiders must not be participants")
	}
	if !c.IsCreator("u1") || c.IsCreator("u2") {
		t.Fatal("IsCreator must match only the creator")
	}

	if other := c.OtherParticipant("u1"); other == nil || *other != "u2" {
		t.Fatalf("OtherParticipant(u1) = %v; want u2", other)
	}
	if other := c.OtherParticipant("u2"); other == nil || *other != "u1" {
		t.Fatalf("OtherParticipant(u2) = %v; want u1", other)
	}
	if other := c.OtherParticipant("u3"); other != nil {
		t.Fatalf("OtherParticipant(u3) = %v; want nil", other)
	}

	solo := &Conflict{CreatorID: "u1"}
	if other := solo.OtherParticipant("u1"); other != nil {
		t.Fatalf("partnerless conflict has no other participant, got %v", other)
	}
}

func TestConflict_VisibleTo(t *testing.T) {
	partner := "u2"
	c := &Conflict{CreatorID: "u1", PartnerID: &partner}

	if !c.VisibleTo("u1") || !c.VisibleTo("u2") {
		t.Fatal("fresh conflict visible to both sides")
	}
	if c.VisibleTo("u3") {
		t.Fatal("outsider must not see the conflict")
	}

	c.DeletedByCreator = true
	if c.VisibleTo("u1") {
		t.Fatal("creator deleted their side; must be hidden from creator")
	}
	if !c.VisibleTo("u2") {
		t.Fatal("single-sided delete must leave the other side visible")
	}
}
