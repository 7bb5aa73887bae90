package services

import (
	"errors"
	"fmt"
	"time"

	"referral-bridge-system/models"
)

// Expected denials get their own types so route handlers can map them to a
// status code and a human-readable reason. Anything else coming out of a
// service method is an infrastructure fault (store, storage, network) and is
// surfaced to the caller as a generic message while the detail is logged.

// QuotaExceededError is returned when the actor has no quota left in the
// current window for the given category.
type QuotaExceededError struct {
	Category string
	Limit    int
	ResetAt  time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit of %d reached for %s — resets at %s",
		e.Limit, e.Category, e.ResetAt.UTC().Format(time.RFC3339))
}

// InvalidStateError is returned when a lifecycle operation is attempted from
// a status that does not permit it.
type InvalidStateError struct {
	RequestID string
	Current   models.ReferralStatus
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s referral request %s: current status is %q",
		e.Attempted, e.RequestID, e.Current)
}

// NotFoundError is returned when a referenced document does not exist.
type NotFoundError struct {
	Kind string // "referral_request", "profile", "resume"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// DuplicateRequestError is returned when a seeker already has a request open
// against the same referrer.
type DuplicateRequestError struct {
	SeekerID   string
	ReferrerID string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("a referral request from seeker %s to referrer %s already exists",
		e.SeekerID, e.ReferrerID)
}

// ErrReasonRequired rejects cancellations without a reason string.
var ErrReasonRequired = errors.New("cancellation reason is required")
