package services

import (
	"errors"
	"testing"
	"time"

	"referral-bridge-system/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func newTestReferralService(t *testing.T, at time.Time) (*ReferralService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTestDB(t)
	quota := NewQuotaService(db, testQuotaConfig())
	quota.Clock = clockwork.NewFakeClockAt(at)
	svc := NewReferralService(db, quota, NewPointsService(db), nil)
	svc.Clock = clockwork.NewFakeClockAt(at)
	return svc, mock
}

func requestRow(id string, status models.ReferralStatus, referredAt *time.Time) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "seeker_id", "referrer_id", "status", "requested_at", "referred_at"})
	rows.AddRow(id, "seeker-001", "referrer-001", string(status), time.Now().Add(-48*time.Hour), referredAt)
	return rows
}

// ==========================
// Transition rules
// ==========================

func TestCanTransition(t *testing.T) {
	cases := []struct {
		cur, next models.ReferralStatus
		allowed   bool
	}{
		{models.StatusPending, models.StatusViewed, true},
		{models.StatusViewed, models.StatusViewed, false},
		{models.StatusPending, models.StatusReferred, true},
		{models.StatusViewed, models.StatusReferred, true},
		{models.StatusReferred, models.StatusConfirmed, true},
		{models.StatusPending, models.StatusConfirmed, false},
		{models.StatusViewed, models.StatusConfirmed, false},
		{models.StatusConfirmed, models.StatusConfirmed, false},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusViewed, models.StatusCancelled, true},
		{models.StatusReferred, models.StatusCancelled, true},
		{models.StatusConfirmed, models.StatusCancelled, false},
		{models.StatusCancelled, models.StatusCancelled, false},
		{models.StatusPending, models.StatusNotAFit, true},
		{models.StatusViewed, models.StatusNotAFit, true},
		{models.StatusReferred, models.StatusNotAFit, false},
		{models.StatusNotAFit, models.StatusViewed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, canTransition(tc.cur, tc.next), "%s → %s", tc.cur, tc.next)
	}
}

func TestAutoConfirmDue(t *testing.T) {
	referredAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	req := &models.ReferralRequest{Status: models.StatusReferred, ReferredAt: &referredAt}

	assert.True(t, autoConfirmDue(req, referredAt.Add(5*24*time.Hour+time.Second)))
	assert.False(t, autoConfirmDue(req, referredAt.Add(4*24*time.Hour+23*time.Hour)))

	pending := &models.ReferralRequest{Status: models.StatusPending, ReferredAt: &referredAt}
	assert.False(t, autoConfirmDue(pending, referredAt.Add(30*24*time.Hour)))

	noTimestamp := &models.ReferralRequest{Status: models.StatusReferred}
	assert.False(t, autoConfirmDue(noTimestamp, referredAt.Add(30*24*time.Hour)))
}

// ==========================
// Create
// ==========================

func TestCreateRequest_DuplicatePairIsRejected(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT count\(\*\) FROM "referral_requests"`).
		WillReturnRows(countRows(1))

	_, err := svc.CreateRequest("seeker-001", "referrer-001", "")

	var dupErr *DuplicateRequestError
	assert.True(t, errors.As(err, &dupErr))
	assert.NoError(t, mock.ExpectationsWereMet(), "no quota consumed, no request written")
}

func TestCreateRequest_QuotaDenialCreatesNothing(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT count\(\*\) FROM "referral_requests"`).
		WillReturnRows(countRows(0))
	// Request quota exhausted: 15 of 15 used in the rolling window.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "request_activities"`).
		WillReturnRows(countRows(15))
	mock.ExpectQuery(`SELECT MIN\(requested_at\) FROM "request_activities"`).
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(time.Now().Add(-23 * time.Hour)))

	_, err := svc.CreateRequest("seeker-001", "referrer-001", "SRE role, req #4431")

	var quotaErr *QuotaExceededError
	assert.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, 15, quotaErr.Limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Confirm
// ==========================

func TestConfirm_FromPendingFailsWithoutMutation(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusPending, nil))

	_, err := svc.Confirm("req-001", "seeker-001")

	var stateErr *InvalidStateError
	assert.True(t, errors.As(err, &stateErr))
	assert.Equal(t, models.StatusPending, stateErr.Current)
	assert.NoError(t, mock.ExpectationsWereMet(), "no update and no reconcile may run")
}

func TestConfirm_AlreadyConfirmedIsRejectedNotReawarded(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusConfirmed, nil))

	_, err := svc.Confirm("req-001", "seeker-001")

	var stateErr *InvalidStateError
	assert.True(t, errors.As(err, &stateErr))
	assert.Equal(t, models.StatusConfirmed, stateErr.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirm_FromAwaitingConfirmationReconciles(t *testing.T) {
	now := time.Now()
	svc, mock := newTestReferralService(t, now)
	referredAt := now.Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusReferred, &referredAt))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "referral_requests" SET`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// Reconcile for the referrer fires on entering the terminal state.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "referral_requests"`).
		WillReturnRows(countRows(11))
	mock.ExpectQuery(`SELECT (.+) FROM "profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points"}).AddRow("referrer-001", int64(0)))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "profiles" (.+) ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	req, err := svc.Confirm("req-001", "seeker-001")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, req.Status)
	assert.False(t, req.AutoConfirmed)
	assert.NotNil(t, req.ConfirmedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Lazy auto-confirm
// ==========================

func TestGetRequest_AutoConfirmsAfterFiveDays(t *testing.T) {
	referredAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	now := referredAt.Add(5*24*time.Hour + time.Second)
	svc, mock := newTestReferralService(t, now)

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusReferred, &referredAt))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "referral_requests" SET`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "referral_requests"`).
		WillReturnRows(countRows(1))
	mock.ExpectQuery(`SELECT (.+) FROM "profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points"}).AddRow("referrer-001", int64(0)))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "profiles" (.+) ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	req, err := svc.GetRequest("req-001")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, req.Status)
	assert.True(t, req.AutoConfirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRequest_NotYetDueStaysAwaiting(t *testing.T) {
	referredAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	now := referredAt.Add(4*24*time.Hour + 23*time.Hour)
	svc, mock := newTestReferralService(t, now)

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusReferred, &referredAt))

	req, err := svc.GetRequest("req-001")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReferred, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRequest_NotFound(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetRequest("missing")

	var notFoundErr *NotFoundError
	assert.True(t, errors.As(err, &notFoundErr))
	assert.Equal(t, "referral_request", notFoundErr.Kind)
}

// ==========================
// Cancel
// ==========================

func TestCancel_EmptyReasonIsRejected(t *testing.T) {
	svc, _ := newTestReferralService(t, time.Now())

	_, err := svc.Cancel("req-001", "referrer-001", "   ")
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestCancel_PersistsReasonVerbatim(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusViewed, nil))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "referral_requests" SET`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reason := "Role was filled internally last week"
	req, err := svc.Cancel("req-001", "referrer-001", reason)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, req.Status)
	assert.NotNil(t, req.CancellationReason)
	assert.Equal(t, reason, *req.CancellationReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_TerminalStateIsRejected(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusConfirmed, nil))

	_, err := svc.Cancel("req-001", "referrer-001", "changed my mind")

	var stateErr *InvalidStateError
	assert.True(t, errors.As(err, &stateErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// View side effect
// ==========================

func TestMarkViewedForPair_NoRequestIsANoOp(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	assert.NoError(t, svc.MarkViewedForPair("referrer-001", "seeker-001"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkViewedForPair_ReViewIsANoOp(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusViewed, nil))

	assert.NoError(t, svc.MarkViewedForPair("referrer-001", "seeker-001"))
	assert.NoError(t, mock.ExpectationsWereMet(), "no write on re-view")
}

func TestMarkViewedForPair_PendingBecomesViewed(t *testing.T) {
	svc, mock := newTestReferralService(t, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM "referral_requests"`).
		WillReturnRows(requestRow("req-001", models.StatusPending, nil))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "referral_requests" SET`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assert.NoError(t, svc.MarkViewedForPair("referrer-001", "seeker-001"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
