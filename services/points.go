package services

import (
	"errors"
	"fmt"
	"log"

	"referral-bridge-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Point rules (tunable via config/env later)
const (
	// PremiumThreshold is the confirmed-referral count that unlocks premium.
	// The first PremiumThreshold confirmations qualify the referrer and earn
	// zero per-referral points themselves.
	PremiumThreshold = 10
	// PointsPerConfirmed is earned for each confirmation beyond the threshold.
	PointsPerConfirmed = 75

	ProfileViewPoints   = 2  // ancillary: someone viewed the referrer's profile
	SimpleConfirmPoints = 10 // ancillary: legacy flat bonus per confirm (pre-reconcile path)
)

// pointsForConfirmed returns the reconciled points balance for a
// confirmed-referral count.
func pointsForConfirmed(n int64) int64 {
	if n <= PremiumThreshold {
		return 0
	}
	return (n - PremiumThreshold) * PointsPerConfirmed
}

// ReconcileResult reports what a reconciliation computed and wrote.
type ReconcileResult struct {
	ConfirmedCount int64 `json:"confirmed_count"`
	PointsBefore   int64 `json:"points_before"`
	PointsAfter    int64 `json:"points_after"`
	IsPremium      bool  `json:"is_premium"`
}

type PointsService struct {
	DB *gorm.DB
}

func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{DB: db}
}

// ConfirmedCount counts the referrer's confirmed requests.
func (s *PointsService) ConfirmedCount(referrerID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.ReferralRequest{}).
		Where("referrer_id = ? AND status = ?", referrerID, models.StatusConfirmed).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting confirmed referrals for %s: %w", referrerID, err)
	}
	return count, nil
}

// Reconcile recomputes points and premium status from the confirmed-referral
// count and merge-writes only those two columns onto the profile, creating a
// minimal row if none exists yet. Idempotent: with no new confirmations a
// second call writes the same values.
func (s *PointsService) Reconcile(referrerID string) (*ReconcileResult, error) {
	count, err := s.ConfirmedCount(referrerID)
	if err != nil {
		return nil, err
	}

	var before int64
	var prof models.Profile
	err = s.DB.Where("id = ?", referrerID).First(&prof).Error
	switch {
	case err == nil:
		before = prof.Points
	case errors.Is(err, gorm.ErrRecordNotFound):
		before = 0
	default:
		return nil, fmt.Errorf("loading profile %s: %w", referrerID, err)
	}

	isPremium := count >= PremiumThreshold
	after := pointsForConfirmed(count)

	// Upsert touching only the ledger columns so unrelated profile fields
	// are never clobbered.
	err = s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"points":              after,
			"is_premium_referrer": isPremium,
		}),
	}).Create(&models.Profile{
		ID:                referrerID,
		Points:            after,
		IsPremiumReferrer: isPremium,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("writing reconciled points for %s: %w", referrerID, err)
	}

	log.Printf("🏆 Points reconciled: %s → confirmed=%d, points %d→%d, premium=%t",
		referrerID, count, before, after, isPremium)

	return &ReconcileResult{
		ConfirmedCount: count,
		PointsBefore:   before,
		PointsAfter:    after,
		IsPremium:      isPremium,
	}, nil
}

// AwardAncillary adds a small fixed bonus outside the reconcile formula
// (profile views, the legacy flat-confirm bonus) and mirrors it onto the
// leaderboard cache. Non-commutative with Reconcile: a later Reconcile
// overwrites these increments on the profile — the two paths coexist on
// purpose and are not unified here.
//
// A missing profile is a logged no-op, not an error.
func (s *PointsService) AwardAncillary(referrerID string, amount int64, reason string) error {
	var prof models.Profile
	if err := s.DB.Where("id = ?", referrerID).First(&prof).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️  Skipping %d-point award (%s): no profile for %s", amount, reason, referrerID)
			return nil
		}
		return fmt.Errorf("loading profile %s: %w", referrerID, err)
	}

	if err := s.DB.Model(&models.Profile{}).
		Where("id = ?", referrerID).
		UpdateColumn("points", gorm.Expr("points + ?", amount)).Error; err != nil {
		return fmt.Errorf("incrementing points for %s: %w", referrerID, err)
	}

	// Display fields are copied from the profile as of now; they can go
	// stale and that is accepted — the leaderboard row is a cache.
	entry := models.LeaderboardEntry{
		ReferrerID: referrerID,
		Name:       prof.FullName,
		AvatarURL:  prof.AvatarURL,
		Company:    prof.Company,
		Points:     amount,
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "referrer_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"points":     gorm.Expr("leaderboard_entries.points + ?", amount),
			"name":       prof.FullName,
			"avatar_url": prof.AvatarURL,
			"company":    prof.Company,
		}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upserting leaderboard entry for %s: %w", referrerID, err)
	}

	log.Printf("🏆 Points awarded: %s +%d (%s)", referrerID, amount, reason)
	return nil
}

// TopReferrers returns the leaderboard cache ordered by points.
func (s *PointsService) TopReferrers(limit int) ([]models.LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var entries []models.LeaderboardEntry
	err := s.DB.Order("points DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}
	return entries, nil
}
