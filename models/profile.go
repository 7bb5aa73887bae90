package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile is the referral-relevant slice of a user's profile.
// Points and IsPremiumReferrer are a deterministic function of the user's
// confirmed-referral count and are recomputed by the points ledger, never
// incremented ad hoc (AwardAncillary is the one documented exception).
// Display fields are mirrored from the profile service by the sync worker.
type Profile struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"` // ExternalUserID from the profile service

	FullName  string  `json:"full_name,omitempty"`
	Email     string  `gorm:"index" json:"email,omitempty"` // mirror for display/notifications only
	Company   string  `json:"company,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`

	Points            int64 `json:"points" gorm:"default:0"`
	IsPremiumReferrer bool  `json:"is_premium_referrer" gorm:"default:false"`

	EmailSyncedAt *time.Time `json:"email_synced_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
