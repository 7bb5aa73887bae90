package services

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"referral-bridge-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// QuotaCategory names a class of rate-limited action.
type QuotaCategory string

const (
	CategoryReferralRequest   QuotaCategory = "referral_request"
	CategoryCandidateDownload QuotaCategory = "candidate_download"
	CategoryRequestDownload   QuotaCategory = "request_download"
	CategoryAdminDownload     QuotaCategory = "admin_download"
)

// WindowPolicy decides how the start of the current window is computed.
type WindowPolicy int

const (
	// WindowRolling24h: window start = now − 24h.
	WindowRolling24h WindowPolicy = iota
	// WindowFixedBoundary: window start = most recent boundary-hour instant
	// (local wall clock, fixed offset) at or before now.
	WindowFixedBoundary
)

// CategoryLimit is the per-category quota configuration.
type CategoryLimit struct {
	Limit     int
	Policy    WindowPolicy
	Unlimited bool // skips the check entirely; consumption is still logged
}

type QuotaConfig struct {
	Limits          map[QuotaCategory]CategoryLimit
	TZOffsetMinutes int // fixed offset, no DST (IST = +330)
	BoundaryHour    int // local hour at which the fixed daily window resets
}

// LoadQuotaConfig reads limits from the environment with sane defaults.
func LoadQuotaConfig() QuotaConfig {
	return QuotaConfig{
		Limits: map[QuotaCategory]CategoryLimit{
			CategoryReferralRequest:   {Limit: envInt("REQUEST_QUOTA_LIMIT", 15), Policy: WindowRolling24h},
			CategoryCandidateDownload: {Limit: envInt("CANDIDATE_DOWNLOAD_LIMIT", 3), Policy: WindowFixedBoundary},
			CategoryRequestDownload:   {Limit: envInt("REQUEST_DOWNLOAD_LIMIT", 6), Policy: WindowFixedBoundary},
			CategoryAdminDownload:     {Unlimited: true, Policy: WindowFixedBoundary},
		},
		TZOffsetMinutes: envInt("QUOTA_TZ_OFFSET_MINUTES", 330),
		BoundaryHour:    envInt("QUOTA_BOUNDARY_HOUR", 8),
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

// ConsumeMeta carries the audit fields written onto a download activity row.
type ConsumeMeta struct {
	CandidateID string
	FileName    string
}

type QuotaService struct {
	DB    *gorm.DB
	Cfg   QuotaConfig
	Clock clockwork.Clock
}

func NewQuotaService(db *gorm.DB, cfg QuotaConfig) *QuotaService {
	return &QuotaService{DB: db, Cfg: cfg, Clock: clockwork.NewRealClock()}
}

// windowStart returns the start of the current fixed daily window: the most
// recent boundaryHour instant in the fixed-offset zone at or before now. If
// the local wall clock is before boundaryHour, that is the previous calendar
// day's boundary.
func windowStart(now time.Time, offsetMinutes, boundaryHour int) time.Time {
	zone := time.FixedZone("quota", offsetMinutes*60)
	local := now.In(zone)
	boundary := time.Date(local.Year(), local.Month(), local.Day(), boundaryHour, 0, 0, 0, zone)
	if local.Before(boundary) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary
}

func (s *QuotaService) windowStartFor(cl CategoryLimit, now time.Time) time.Time {
	if cl.Policy == WindowRolling24h {
		return now.Add(-24 * time.Hour)
	}
	return windowStart(now, s.Cfg.TZOffsetMinutes, s.Cfg.BoundaryHour)
}

// UnlimitedRemaining is returned by Remaining for categories whose check is
// skipped entirely.
const UnlimitedRemaining = -1

// Remaining returns how many actions the actor may still perform in the
// current window, or UnlimitedRemaining for a privileged category.
func (s *QuotaService) Remaining(actorID string, category QuotaCategory) (int, error) {
	cl, ok := s.Cfg.Limits[category]
	if !ok {
		return 0, fmt.Errorf("unknown quota category %q", category)
	}
	if cl.Unlimited {
		return UnlimitedRemaining, nil
	}

	since := s.windowStartFor(cl, s.Clock.Now())
	count, err := s.countInWindow(actorID, category, since)
	if err != nil {
		return 0, fmt.Errorf("counting %s activity: %w", category, err)
	}
	remaining := cl.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (s *QuotaService) countInWindow(actorID string, category QuotaCategory, since time.Time) (int64, error) {
	var count int64
	var err error
	if category == CategoryReferralRequest {
		err = s.DB.Model(&models.RequestActivity{}).
			Where("seeker_id = ? AND requested_at >= ?", actorID, since).
			Count(&count).Error
	} else {
		err = s.DB.Model(&models.DownloadActivity{}).
			Where("downloader_id = ? AND source = ? AND downloaded_at >= ?", actorID, string(category), since).
			Count(&count).Error
	}
	return count, err
}

// TryConsume re-checks the actor's remaining quota and, when allowed, appends
// one activity record. A denial never appends anything.
//
// This is check-then-act: two concurrent calls can both observe a free slot,
// so under load the limit can be overshot by at most the number of concurrent
// racers. Callers only ever see TryConsume, so a transactional counter can be
// swapped in here without touching them.
func (s *QuotaService) TryConsume(actorID string, category QuotaCategory, meta ConsumeMeta) error {
	cl, ok := s.Cfg.Limits[category]
	if !ok {
		return fmt.Errorf("unknown quota category %q", category)
	}
	now := s.Clock.Now()

	if !cl.Unlimited {
		remaining, err := s.Remaining(actorID, category)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return &QuotaExceededError{
				Category: string(category),
				Limit:    cl.Limit,
				ResetAt:  s.resetAt(actorID, category, cl, now),
			}
		}
	}

	return s.appendActivity(actorID, category, meta, now)
}

func (s *QuotaService) appendActivity(actorID string, category QuotaCategory, meta ConsumeMeta, now time.Time) error {
	if category == CategoryReferralRequest {
		rec := models.RequestActivity{
			ID:          uuid.NewString(),
			SeekerID:    actorID,
			RequestedAt: now,
		}
		if err := s.DB.Create(&rec).Error; err != nil {
			return fmt.Errorf("recording request activity: %w", err)
		}
		return nil
	}
	rec := models.DownloadActivity{
		ID:           uuid.NewString(),
		DownloaderID: actorID,
		CandidateID:  meta.CandidateID,
		FileName:     meta.FileName,
		Source:       string(category),
		DownloadedAt: now,
	}
	if err := s.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("recording download activity: %w", err)
	}
	return nil
}

// resetAt computes when the denied actor regains quota. For a fixed window
// that is the next boundary; for a rolling window it is 24h after the oldest
// activity still inside the window.
func (s *QuotaService) resetAt(actorID string, category QuotaCategory, cl CategoryLimit, now time.Time) time.Time {
	if cl.Policy == WindowFixedBoundary {
		return windowStart(now, s.Cfg.TZOffsetMinutes, s.Cfg.BoundaryHour).Add(24 * time.Hour)
	}

	since := now.Add(-24 * time.Hour)
	var oldest time.Time
	err := s.DB.Model(&models.RequestActivity{}).
		Where("seeker_id = ? AND requested_at >= ?", actorID, since).
		Select("MIN(requested_at)").
		Scan(&oldest).Error
	if err != nil || oldest.IsZero() {
		return now.Add(24 * time.Hour)
	}
	return oldest.Add(24 * time.Hour)
}
