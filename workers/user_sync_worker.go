// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"radcoin-economy-system/models"
	"radcoin-economy-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredUserFromProfile matches the JSON response of the profile
// service's public sync endpoint.
type MirroredUserFromProfile struct {
	ExternalID    string     `json:"external_id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	AccountStatus string     `json:"account_status"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// GetUserChangesResponse is the top-level structure of the sync service response.
type GetUserChangesResponse struct {
	Users []MirroredUserFromProfile `json:"users"`
}

// EconomyUserSyncWorker mirrors profile-service users into economy_users
// so bulk distribution can resolve target populations locally.
type EconomyUserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewEconomyUserSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *EconomyUserSyncWorker {
	return &EconomyUserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *EconomyUserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Economy User Sync Worker (profile service → economy_users)…")
	go w.run(ctx)
}

func (w *EconomyUserSyncWorker) run(ctx context.Context) {
	// Initial sync (backfill if needed) — sync from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial user sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	lastSync := time.Now().UTC()
	for {
		select {
		case <-ctx.Done():
			log.Println("Economy user sync stopped.")
			return
		case <-ticker.C:
			cycleStart := time.Now().UTC()
			if err := w.syncBatch(ctx, lastSync); err != nil {
				log.Printf("⚠️ User sync failed: %v", err)
				continue // retry the same window next tick
			}
			lastSync = cycleStart
		}
	}
}

func (w *EconomyUserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	changed, err := w.fetchChangedUsers(ctx, since)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}

	mirrors := make([]models.EconomyUser, 0, len(changed))
	for _, u := range changed {
		if u.ExternalID == "" {
			continue
		}
		mirrors = append(mirrors, models.EconomyUser{
			ID:             uuid.NewString(),
			ExternalUserID: u.ExternalID,
			Username:       u.Username,
			Email:          u.Email,
			IsActive:       u.AccountStatus == "active",
			LastSeen:       u.LastSeen,
		})
	}
	if len(mirrors) == 0 {
		return nil
	}

	if err := w.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username",
			"email",
			"is_active",
			"last_seen",
			"updated_at",
		}),
	}).Create(&mirrors).Error; err != nil {
		return fmt.Errorf("failed to upsert %d user(s) into economy_users: %w", len(mirrors), err)
	}

	log.Printf("📥 Synced %d user change(s) into economy_users.", len(mirrors))
	return nil
}

func (w *EconomyUserSyncWorker) fetchChangedUsers(ctx context.Context, since time.Time) ([]MirroredUserFromProfile, error) {
	u, err := url.Parse(w.baseURL + w.endpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sync URL: %w", err)
	}

	q := u.Query()
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sync service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response GetUserChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return response.Users, nil
}
