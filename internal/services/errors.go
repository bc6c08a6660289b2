// Package services defines the business logic of the negotiation backend.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrConflictNotFound indicates that the requested conflict does not exist
	// or is not visible to the current user. The two cases are deliberately
	// indistinguishable so non-participants cannot probe for existence.
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrNoItems is returned when a conflict is created without items.
	ErrNoItems = errors.New("conflict requires at least one item")

	// ErrInvalidItem is returned when an item is created without a title or
	// without the creator's initial value.
	ErrInvalidItem = errors.New("item requires a title and an initial value")

	// ErrSelfPartner is returned when someone tries to be both sides of the
	// same conflict.
	ErrSelfPartner = errors.New("cannot be your own partner")

	// ErrPartnerAssigned is returned when joining a conflict that already has
	// a partner.
	ErrPartnerAssigned = errors.New("partner already assigned")

	// ErrConflictClosed is returned when mutating a conflict in a terminal
	// state (resolved, cancelled, abandoned).
	ErrConflictClosed = errors.New("conflict is resolved, cancelled or abandoned")

	// ErrItemNotFound indicates that the item does not belong to the conflict.
	ErrItemNotFound = errors.New("item not found")

	// ErrEmptyValue is returned when an item update carries an empty value.
	ErrEmptyValue = errors.New("choice value is empty")

	// ErrAlreadyDeleted is returned when a participant soft-deletes the same
	// conflict a second time.
	ErrAlreadyDeleted = errors.New("conflict already deleted by you")

	// ErrMissingPartner is returned for truce offers on a conflict that has
	// no partner yet.
	ErrMissingPartner = errors.New("conflict has no partner yet")

	// ErrItemsUnanswered is returned for truce offers while some item still
	// lacks a value from one of the sides.
	ErrItemsUnanswered = errors.New("not every item is answered by both sides")

	// ErrTrucePending is returned when offering a truce while another offer
	// is already awaiting an answer.
	ErrTrucePending = errors.New("truce offer already pending")

	// ErrNoActiveTruce is returned when accepting or withdrawing a truce that
	// is not currently pending.
	ErrNoActiveTruce = errors.New("no active truce offer")

	// ErrTruceSelfAccept is returned when the initiator of a truce offer
	// tries to accept it themselves.
	ErrTruceSelfAccept = errors.New("cannot accept your own truce offer")
)
