// workers/email_sync_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"referral-bridge-system/models"
	"referral-bridge-system/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lookupChunkSize caps how many ids go into one batch request to the profile
// service.
const lookupChunkSize = 50

// ResolvedIdentity matches one entry of the profile service's batch lookup
// response. Used for display and notifications only, never authorization.
type ResolvedIdentity struct {
	UserID    string  `json:"user_id"`
	Email     string  `json:"email"`
	FullName  string  `json:"full_name,omitempty"`
	Company   string  `json:"company,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// BatchLookupResponse is the top-level structure of the lookup response.
type BatchLookupResponse struct {
	Users []ResolvedIdentity `json:"users"`
}

type EmailSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/internal/users/lookup"
	serviceToken string
	httpClient   *http.Client
}

func NewEmailSyncWorker(db *gorm.DB, profileServiceBaseURL, endpointPath, serviceToken string) *EmailSyncWorker {
	return &EmailSyncWorker{
		db:           db,
		interval:     5 * time.Minute,
		baseURL:      profileServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *EmailSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Email Sync Worker (profile-service → profiles mirror)…")
	go w.run(ctx)
}

func (w *EmailSyncWorker) run(ctx context.Context) {
	if err := w.syncOnce(ctx); err != nil {
		log.Printf("⚠️ Initial email sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncOnce(ctx); err != nil {
				log.Printf("❌ Email sync failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Email Sync Worker stopped")
			return
		}
	}
}

// pendingIDs collects every user id referenced by a referral request that has
// no email mirrored locally yet.
func (w *EmailSyncWorker) pendingIDs() ([]string, error) {
	var ids []string
	err := w.db.Raw(`
		SELECT DISTINCT uid FROM (
			SELECT seeker_id AS uid FROM referral_requests
			UNION
			SELECT referrer_id AS uid FROM referral_requests
		) refs
		WHERE uid NOT IN (SELECT id FROM profiles WHERE email <> '' AND deleted_at IS NULL)
	`).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("collecting unresolved user ids: %w", err)
	}
	return ids, nil
}

func (w *EmailSyncWorker) syncOnce(ctx context.Context) error {
	ids, err := w.pendingIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	log.Printf("[SYNC] 📡 Resolving %d user id(s) in chunks of %d…", len(ids), lookupChunkSize)

	var resolved, errorCount int
	for start := 0; start < len(ids); start += lookupChunkSize {
		end := start + lookupChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		n, err := w.lookupChunk(ctx, ids[start:end])
		if err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Chunk lookup failed (%d ids): %v", end-start, err)
			continue
		}
		resolved += n
	}

	log.Printf("[SYNC] ✅ Resolved %d identity(ies), %d chunk error(s)", resolved, errorCount)
	return nil
}

func (w *EmailSyncWorker) lookupChunk(ctx context.Context, ids []string) (int, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath).String()

	payload, _ := json.Marshal(map[string]interface{}{"user_ids": ids})
	req, err := http.NewRequestWithContext(ctx, "POST", endpointURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request to %s: %w", endpointURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request to profile service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("profile service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response BatchLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	now := time.Now()
	upserted := 0
	for _, identity := range response.Users {
		if identity.UserID == "" {
			continue
		}
		prof := models.Profile{
			ID:            identity.UserID,
			Email:         identity.Email,
			FullName:      identity.FullName,
			Company:       identity.Company,
			AvatarURL:     identity.AvatarURL,
			EmailSyncedAt: &now,
		}
		// Never touch points/is_premium_referrer here — those columns belong
		// to the points ledger.
		err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "full_name", "company", "avatar_url", "email_synced_at",
			}),
		}).Create(&prof).Error
		if err != nil {
			log.Printf("[SYNC] ⚠️ Failed to upsert profile mirror (user_id=%q): %v", identity.UserID, err)
			continue
		}
		upserted++
	}
	return upserted, nil
}
