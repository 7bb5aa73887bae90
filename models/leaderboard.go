package models

import "time"

// LeaderboardEntry is a denormalized, display-oriented projection of a
// referrer's points. It is a cache, not a source of truth: name, avatar and
// company are copied from Profile at award time and can go stale.
type LeaderboardEntry struct {
	ReferrerID string  `gorm:"primaryKey;type:uuid" json:"referrer_id"`
	Name       string  `json:"name"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
	Company    string  `json:"company,omitempty"`
	Points     int64   `json:"points" gorm:"default:0;index:idx_leaderboard_points,sort:desc"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
