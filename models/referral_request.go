package models

import "time"

// ReferralStatus is the lifecycle state of a ReferralRequest.
type ReferralStatus string

const (
	StatusPending   ReferralStatus = "pending"
	StatusViewed    ReferralStatus = "viewed"
	StatusReferred  ReferralStatus = "referred_awaiting_confirmation"
	StatusConfirmed ReferralStatus = "confirmed"
	StatusCancelled ReferralStatus = "cancelled"
	StatusNotAFit   ReferralStatus = "not_a_fit"
)

// Terminal reports whether no further transition is allowed from s.
func (s ReferralStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusNotAFit
}

// ReferralRequest tracks one seeker's ask to one referrer.
// At most one request may exist per (seeker, referrer) pair.
type ReferralRequest struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SeekerID   string `gorm:"not null;index;uniqueIndex:idx_seeker_referrer" json:"seeker_id"`   // ExternalUserID
	ReferrerID string `gorm:"not null;index;uniqueIndex:idx_seeker_referrer" json:"referrer_id"` // ExternalUserID

	JobInfo string         `gorm:"type:text" json:"job_info,omitempty"` // optional free text: role, req ID, link
	Status  ReferralStatus `gorm:"type:varchar(32);default:'pending';index" json:"status"`

	RequestedAt time.Time  `json:"requested_at"`
	ReferredAt  *time.Time `json:"referred_at,omitempty"` // when the referrer marked it referred
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	// AutoConfirmed distinguishes the 5-day timeout path from an explicit
	// seeker confirmation.
	AutoConfirmed bool `json:"auto_confirmed" gorm:"default:false"`

	CancellationReason *string `json:"cancellation_reason,omitempty"` // set only when status = cancelled

	Timestamps
}
