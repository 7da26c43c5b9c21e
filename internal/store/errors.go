package store

import "errors"

// Every core operation reports failure through one of these sentinel reasons;
// callers match with errors.Is and map to user-facing messages. Wrapped
// details (conflicting intervals, participant id) ride on the error text.
var (
	ErrInvalidFormat            = errors.New("invalid date or time format")
	ErrPastTime                 = errors.New("cannot book a past time")
	ErrOutOfWindow              = errors.New("date is outside the booking window")
	ErrInvalidSlot              = errors.New("slot must be whole hours within a single day")
	ErrQuotaExceeded            = errors.New("active reservation limit reached")
	ErrParticipantQuotaExceeded = errors.New("participant active reservation limit reached")
	ErrTimeConflict             = errors.New("requested time conflicts with an existing reservation")
	ErrDuplicate                = errors.New("identical waitlist entry already exists")
	ErrNotFound                 = errors.New("not found")
	ErrNotOwner                 = errors.New("only the owner may do this")
)
