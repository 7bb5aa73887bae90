package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"referral-bridge-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// AutoConfirmAfter is how long a request may sit in
// referred_awaiting_confirmation before it is confirmed automatically.
const AutoConfirmAfter = 5 * 24 * time.Hour

type ReferralService struct {
	DB       *gorm.DB
	Quota    *QuotaService
	Points   *PointsService
	Notifier *Notifier // optional; nil disables lifecycle emails
	Clock    clockwork.Clock
}

func NewReferralService(db *gorm.DB, quota *QuotaService, points *PointsService, notifier *Notifier) *ReferralService {
	return &ReferralService{
		DB:       db,
		Quota:    quota,
		Points:   points,
		Notifier: notifier,
		Clock:    clockwork.NewRealClock(),
	}
}

// canTransition reports whether a request currently in cur may move to next.
// Cancel is allowed from any non-terminal state; not_a_fit only before the
// referrer has committed to referring.
func canTransition(cur, next models.ReferralStatus) bool {
	switch next {
	case models.StatusViewed:
		return cur == models.StatusPending
	case models.StatusReferred:
		return cur == models.StatusPending || cur == models.StatusViewed
	case models.StatusConfirmed:
		return cur == models.StatusReferred
	case models.StatusCancelled:
		return !cur.Terminal()
	case models.StatusNotAFit:
		return cur == models.StatusPending || cur == models.StatusViewed
	}
	return false
}

// autoConfirmDue reports whether the 5-day rule applies to req at now.
func autoConfirmDue(req *models.ReferralRequest, now time.Time) bool {
	if req.Status != models.StatusReferred || req.ReferredAt == nil {
		return false
	}
	return now.Sub(*req.ReferredAt) >= AutoConfirmAfter
}

// CreateRequest records a new pending request from seeker to referrer,
// consuming one unit of the seeker's request quota. At most one request may
// exist per (seeker, referrer) pair.
func (s *ReferralService) CreateRequest(seekerID, referrerID, jobInfo string) (*models.ReferralRequest, error) {
	var existing int64
	if err := s.DB.Model(&models.ReferralRequest{}).
		Where("seeker_id = ? AND referrer_id = ?", seekerID, referrerID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("checking for existing request: %w", err)
	}
	if existing > 0 {
		return nil, &DuplicateRequestError{SeekerID: seekerID, ReferrerID: referrerID}
	}

	if err := s.Quota.TryConsume(seekerID, CategoryReferralRequest, ConsumeMeta{}); err != nil {
		return nil, err
	}

	req := &models.ReferralRequest{
		ID:          uuid.NewString(),
		SeekerID:    seekerID,
		ReferrerID:  referrerID,
		JobInfo:     strings.TrimSpace(jobInfo),
		Status:      models.StatusPending,
		RequestedAt: s.Clock.Now(),
	}
	if err := s.DB.Create(req).Error; err != nil {
		return nil, fmt.Errorf("creating referral request: %w", err)
	}

	if s.Notifier != nil {
		s.Notifier.RequestCreated(req)
	}
	return req, nil
}

// GetRequest loads a request, applying the lazy auto-confirm guard.
func (s *ReferralService) GetRequest(id string) (*models.ReferralRequest, error) {
	var req models.ReferralRequest
	if err := s.DB.Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Kind: "referral_request", ID: id}
		}
		return nil, fmt.Errorf("loading referral request %s: %w", id, err)
	}
	if err := s.applyAutoConfirm(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ownedByReferrer loads a request scoped to its referrer; a miss is reported
// as not-found rather than leaking whether the request exists at all.
func (s *ReferralService) ownedByReferrer(id, referrerID string) (*models.ReferralRequest, error) {
	var req models.ReferralRequest
	if err := s.DB.Where("id = ? AND referrer_id = ?", id, referrerID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Kind: "referral_request", ID: id}
		}
		return nil, fmt.Errorf("loading referral request %s: %w", id, err)
	}
	return &req, nil
}

func (s *ReferralService) ownedBySeeker(id, seekerID string) (*models.ReferralRequest, error) {
	var req models.ReferralRequest
	if err := s.DB.Where("id = ? AND seeker_id = ?", id, seekerID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Kind: "referral_request", ID: id}
		}
		return nil, fmt.Errorf("loading referral request %s: %w", id, err)
	}
	return &req, nil
}

// applyAutoConfirm promotes an overdue awaiting-confirmation request.
// Called on every read and transition entry point so the 5-day rule holds
// without depending on the sweep; the gocron sweep reuses it for timeliness.
func (s *ReferralService) applyAutoConfirm(req *models.ReferralRequest) error {
	if !autoConfirmDue(req, s.Clock.Now()) {
		return nil
	}
	return s.confirm(req, true)
}

// confirm finalizes the transition into the terminal confirmed state and
// kicks off points reconciliation for the referrer. Reconcile failures are
// logged, not raised: Reconcile is idempotent and the next confirmation (or
// an admin-triggered run) repairs the balance.
func (s *ReferralService) confirm(req *models.ReferralRequest, auto bool) error {
	now := s.Clock.Now()
	req.Status = models.StatusConfirmed
	req.ConfirmedAt = &now
	req.AutoConfirmed = auto
	if err := s.DB.Save(req).Error; err != nil {
		return fmt.Errorf("confirming referral request %s: %w", req.ID, err)
	}

	if _, err := s.Points.Reconcile(req.ReferrerID); err != nil {
		log.Printf("⚠️  Reconcile after confirm of %s failed: %v", req.ID, err)
	}
	if s.Notifier != nil {
		s.Notifier.RequestConfirmed(req)
	}

	if auto {
		log.Printf("✅ Auto-confirmed referral request %s (referrer %s)", req.ID, req.ReferrerID)
	}
	return nil
}

// MarkViewedForPair fires when the referrer opens the seeker's profile. It
// only acts on a pending request; in every other situation (no request, any
// later status) it is a silent no-op — re-viewing must not error or regress.
func (s *ReferralService) MarkViewedForPair(referrerID, seekerID string) error {
	var req models.ReferralRequest
	err := s.DB.Where("seeker_id = ? AND referrer_id = ?", seekerID, referrerID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading referral request for pair (%s, %s): %w", seekerID, referrerID, err)
	}
	if err := s.applyAutoConfirm(&req); err != nil {
		return err
	}
	if req.Status != models.StatusPending {
		return nil
	}
	req.Status = models.StatusViewed
	if err := s.DB.Save(&req).Error; err != nil {
		return fmt.Errorf("marking referral request %s viewed: %w", req.ID, err)
	}
	return nil
}

// MarkReferred is the referrer committing to the referral; starts the 5-day
// auto-confirmation clock.
func (s *ReferralService) MarkReferred(id, referrerID string) (*models.ReferralRequest, error) {
	req, err := s.ownedByReferrer(id, referrerID)
	if err != nil {
		return nil, err
	}
	if err := s.applyAutoConfirm(req); err != nil {
		return nil, err
	}
	if !canTransition(req.Status, models.StatusReferred) {
		return nil, &InvalidStateError{RequestID: req.ID, Current: req.Status, Attempted: "mark referred"}
	}
	now := s.Clock.Now()
	req.Status = models.StatusReferred
	req.ReferredAt = &now
	if err := s.DB.Save(req).Error; err != nil {
		return nil, fmt.Errorf("marking referral request %s referred: %w", req.ID, err)
	}
	if s.Notifier != nil {
		s.Notifier.MarkedReferred(req)
	}
	return req, nil
}

// Confirm is the seeker acknowledging that the referral actually happened.
// Confirming an already-confirmed request is rejected, never double-awarded.
func (s *ReferralService) Confirm(id, seekerID string) (*models.ReferralRequest, error) {
	req, err := s.ownedBySeeker(id, seekerID)
	if err != nil {
		return nil, err
	}
	if err := s.applyAutoConfirm(req); err != nil {
		return nil, err
	}
	if req.Status != models.StatusReferred {
		return nil, &InvalidStateError{RequestID: req.ID, Current: req.Status, Attempted: "confirm"}
	}
	if err := s.confirm(req, false); err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel is referrer-initiated and legal from any non-terminal state; the
// reason is mandatory and stored verbatim.
func (s *ReferralService) Cancel(id, referrerID, reason string) (*models.ReferralRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	req, err := s.ownedByReferrer(id, referrerID)
	if err != nil {
		return nil, err
	}
	if err := s.applyAutoConfirm(req); err != nil {
		return nil, err
	}
	if !canTransition(req.Status, models.StatusCancelled) {
		return nil, &InvalidStateError{RequestID: req.ID, Current: req.Status, Attempted: "cancel"}
	}
	req.Status = models.StatusCancelled
	req.CancellationReason = &reason
	if err := s.DB.Save(req).Error; err != nil {
		return nil, fmt.Errorf("cancelling referral request %s: %w", req.ID, err)
	}
	return req, nil
}

// MarkNotAFit declines a request the referrer cannot help with; only legal
// before the referral has been committed.
func (s *ReferralService) MarkNotAFit(id, referrerID string) (*models.ReferralRequest, error) {
	req, err := s.ownedByReferrer(id, referrerID)
	if err != nil {
		return nil, err
	}
	if err := s.applyAutoConfirm(req); err != nil {
		return nil, err
	}
	if !canTransition(req.Status, models.StatusNotAFit) {
		return nil, &InvalidStateError{RequestID: req.ID, Current: req.Status, Attempted: "mark not-a-fit"}
	}
	req.Status = models.StatusNotAFit
	if err := s.DB.Save(req).Error; err != nil {
		return nil, fmt.Errorf("marking referral request %s not-a-fit: %w", req.ID, err)
	}
	return req, nil
}

// IncomingForReferrer lists requests addressed to the referrer, newest first,
// applying the lazy auto-confirm guard to each row.
func (s *ReferralService) IncomingForReferrer(referrerID string) ([]models.ReferralRequest, error) {
	var reqs []models.ReferralRequest
	if err := s.DB.Where("referrer_id = ?", referrerID).
		Order("requested_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("listing incoming requests for %s: %w", referrerID, err)
	}
	s.applyAutoConfirmAll(reqs)
	return reqs, nil
}

// OutgoingForSeeker lists the seeker's own requests, newest first.
func (s *ReferralService) OutgoingForSeeker(seekerID string) ([]models.ReferralRequest, error) {
	var reqs []models.ReferralRequest
	if err := s.DB.Where("seeker_id = ?", seekerID).
		Order("requested_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("listing outgoing requests for %s: %w", seekerID, err)
	}
	s.applyAutoConfirmAll(reqs)
	return reqs, nil
}

func (s *ReferralService) applyAutoConfirmAll(reqs []models.ReferralRequest) {
	for i := range reqs {
		if err := s.applyAutoConfirm(&reqs[i]); err != nil {
			log.Printf("⚠️  Auto-confirm on read failed for %s: %v", reqs[i].ID, err)
		}
	}
}

// AutoConfirmOverdue promotes every request whose 5-day window has elapsed.
// Used by the scheduler sweep; returns how many were confirmed.
func (s *ReferralService) AutoConfirmOverdue() (int, error) {
	cutoff := s.Clock.Now().Add(-AutoConfirmAfter)
	var reqs []models.ReferralRequest
	err := s.DB.Where("status = ? AND referred_at <= ?", models.StatusReferred, cutoff).
		Find(&reqs).Error
	if err != nil {
		return 0, fmt.Errorf("listing overdue requests: %w", err)
	}

	confirmed := 0
	for i := range reqs {
		if err := s.confirm(&reqs[i], true); err != nil {
			log.Printf("⚠️  Sweep failed to confirm %s: %v", reqs[i].ID, err)
			continue
		}
		confirmed++
	}
	return confirmed, nil
}
