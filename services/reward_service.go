// services/reward_service.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"radcoin-economy-system/models"
	"radcoin-economy-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	bulkWorkers     = 8 // in-flight grant bound during bulk distribution
	bulkMaxAttempts = 3 // per-user attempts on transient ledger errors
)

// RewardService turns reward intents into ledger transactions, applying
// the configuration-driven multipliers and caps, and drives bulk
// distribution batches.
type RewardService struct {
	DB      *gorm.DB
	Ledger  *LedgerService
	Configs *ConfigService
}

func NewRewardService(db *gorm.DB, ledger *LedgerService, configs *ConfigService) *RewardService {
	return &RewardService{DB: db, Ledger: ledger, Configs: configs}
}

// GrantContext carries the per-grant signals the multipliers depend on.
// Now defaults to the wall clock; tests pin it for calendar checks.
type GrantContext struct {
	HasActiveStreak bool
	Now             time.Time
}

func (ctx GrantContext) at() time.Time {
	if ctx.Now.IsZero() {
		return time.Now().UTC()
	}
	return ctx.Now.UTC()
}

// GrantSingle computes the final amount from the current configuration
// and applies it through the ledger. Failures propagate to the caller;
// nothing is retried here.
func (s *RewardService) GrantSingle(userID string, baseAmount int64, txType models.TransactionType, ctx GrantContext, idempotencyKey string, metadata map[string]string) (*models.Transaction, error) {
	cfg, err := s.Configs.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("loading reward config: %w", err)
	}
	return s.grantWithConfig(cfg, userID, baseAmount, txType, ctx, idempotencyKey, metadata)
}

// grantWithConfig is the snapshot-config variant used by bulk batches and
// helpers that must share one config read across several steps.
func (s *RewardService) grantWithConfig(cfg *models.RewardConfig, userID string, baseAmount int64, txType models.TransactionType, ctx GrantContext, idempotencyKey string, metadata map[string]string) (*models.Transaction, error) {
	if baseAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	final := computeAmount(cfg, baseAmount, txType, ctx)
	if final <= 0 {
		// Multipliers floored the grant away entirely (e.g. a streak
		// multiplier below 1 on a tiny base).
		return nil, ErrInvalidAmount
	}

	if cfg.InflationControl {
		// The allowance check and the apply must share the account lock;
		// the ledger owns both.
		return s.Ledger.ApplyWithDailyCap(userID, final, txType, idempotencyKey, metadata, cfg.MaxDailyPerUser, ctx.at())
	}
	return s.Ledger.ApplyTransaction(userID, final, txType, idempotencyKey, metadata)
}

// computeAmount applies the multipliers in a fixed order — achievement,
// streak, weekend, event bonus last — and floors once at the end, so the
// result never depends on rounding order.
func computeAmount(cfg *models.RewardConfig, base int64, txType models.TransactionType, ctx GrantContext) int64 {
	amount := float64(base)

	if txType == models.TransactionTypeAchievementUnlock {
		amount *= cfg.AchievementMultiplier
	}
	if ctx.HasActiveStreak {
		amount *= cfg.StreakMultiplier
	}
	if txType == models.TransactionTypeDailyLogin && cfg.WeekendBonus && isWeekend(ctx.at()) {
		amount *= 2
	}
	if cfg.EventBonusActive {
		amount *= 1.5
	}

	return int64(math.Floor(amount))
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// GrantAchievement pays out a completed achievement. The idempotency key
// is derived from (user, achievement code), so recomputed or replayed
// completions can never double-grant.
func (s *RewardService) GrantAchievement(userID string, def models.AchievementDefinition, ctx GrantContext) (*models.Transaction, error) {
	if def.RewardCoins <= 0 {
		return nil, nil // points-only achievement, nothing to credit
	}
	key := fmt.Sprintf("achievement:%s:%s", userID, def.Code)
	meta := map[string]string{
		"achievement_code": def.Code,
		"rarity":           string(def.Rarity),
	}
	return s.GrantSingle(userID, def.RewardCoins, models.TransactionTypeAchievementUnlock, ctx, key, meta)
}

// GrantDailyLogin credits the daily login reward at most once per UTC
// day (the date is baked into the idempotency key).
func (s *RewardService) GrantDailyLogin(userID string, hasStreak bool, at time.Time) (*models.Transaction, error) {
	cfg, err := s.Configs.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("loading reward config: %w", err)
	}
	ctx := GrantContext{HasActiveStreak: hasStreak, Now: at}
	key := fmt.Sprintf("daily_login:%s:%s", userID, ctx.at().Format("2006-01-02"))
	return s.grantWithConfig(cfg, userID, cfg.DailyLoginBase, models.TransactionTypeDailyLogin, ctx, key, map[string]string{"source": "daily_login"})
}

// --- Bulk distribution ---

// DistributeBulk creates a batch record, then grants amountPerUser to
// every user matching targetFilter. Per-user failures never abort the
// batch; the admin gets an itemized outcome. The returned batch is the
// finished audit record.
func (s *RewardService) DistributeBulk(targetFilter string, amountPerUser int64, txType models.TransactionType, reason, createdBy string) (*models.DistributionBatch, error) {
	if targetFilter != "all" && targetFilter != "active" {
		return nil, fmt.Errorf("unknown target filter %q", targetFilter)
	}
	if amountPerUser <= 0 {
		return nil, ErrInvalidAmount
	}
	if !models.ValidTransactionTypes[txType] {
		return nil, fmt.Errorf("unknown transaction type %q", txType)
	}

	batch := models.DistributionBatch{
		ID:            uuid.NewString(),
		TargetFilter:  targetFilter,
		AmountPerUser: amountPerUser,
		Type:          txType,
		Reason:        reason,
		Status:        models.BatchStatusPending,
		CreatedBy:     createdBy,
	}
	if err := s.DB.Create(&batch).Error; err != nil {
		return nil, err
	}

	return s.runBatch(&batch)
}

// ResumeBatch re-runs an interrupted or partial batch. Already-applied
// grants are skipped as no-ops by their idempotency keys, so the system
// never pays a user twice for the same batch.
func (s *RewardService) ResumeBatch(batchID string) (*models.DistributionBatch, error) {
	var batch models.DistributionBatch
	if err := s.DB.First(&batch, "id = ?", batchID).Error; err != nil {
		return nil, err
	}
	if batch.Status == models.BatchStatusComplete {
		return &batch, nil
	}
	return s.runBatch(&batch)
}

// ResumeStaleBatches picks up batches left pending (e.g. by a process
// restart mid-distribution). Called by the scheduler.
func (s *RewardService) ResumeStaleBatches(olderThan time.Duration) {
	var stale []models.DistributionBatch
	cutoff := time.Now().UTC().Add(-olderThan)
	if err := s.DB.Where("status = ? AND created_at < ?", models.BatchStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		log.Printf("[BatchResumer] DB error: %v", err)
		return
	}
	for _, b := range stale {
		log.Printf("[BatchResumer] Resuming stale batch %s", b.ID)
		if _, err := s.ResumeBatch(b.ID); err != nil {
			log.Printf("[BatchResumer] Failed to resume batch %s: %v", b.ID, err)
		}
	}
}

func (s *RewardService) runBatch(batch *models.DistributionBatch) (*models.DistributionBatch, error) {
	// Snapshot semantics: targets and configuration are resolved once
	// before any grant runs; later signups or config edits do not affect
	// this run.
	targets, err := s.resolveTargets(batch.TargetFilter)
	if err != nil {
		return nil, fmt.Errorf("resolving batch targets: %w", err)
	}
	cfg, err := s.Configs.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("loading reward config: %w", err)
	}

	batch.TotalTargets = len(targets)
	if err := s.DB.Model(batch).Update("total_targets", batch.TotalTargets).Error; err != nil {
		return nil, err
	}
	log.Printf("💸 Batch %s: distributing %d RadCoins to %d user(s)", batch.ID, batch.AmountPerUser, len(targets))

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < bulkWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				s.grantForBatch(batch, cfg, userID)
			}
		}()
	}
	for _, userID := range targets {
		jobs <- userID
	}
	close(jobs)
	wg.Wait()

	return s.finalizeBatch(batch)
}

// grantForBatch applies one user's grant with bounded retries and records
// the outcome. Validation errors are terminal; anything else is treated
// as transient.
func (s *RewardService) grantForBatch(batch *models.DistributionBatch, cfg *models.RewardConfig, userID string) {
	key := batch.ID + ":" + userID
	meta := map[string]string{
		"batch_id": batch.ID,
		"reason":   batch.Reason,
	}

	var tx *models.Transaction
	var err error
	for attempt := 1; attempt <= bulkMaxAttempts; attempt++ {
		tx, err = s.grantWithConfig(cfg, userID, batch.AmountPerUser, batch.Type, GrantContext{}, key, meta)
		if err == nil || errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrInsufficientFunds) {
			break
		}
		log.Printf("💸 Batch %s: transient error for %s (attempt %d/%d): %v", batch.ID, userID, attempt, bulkMaxAttempts, err)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}

	outcome := models.BatchOutcome{
		ID:      uuid.NewString(),
		BatchID: batch.ID,
		UserID:  userID,
	}
	switch {
	case err != nil:
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
	case tx.Type == models.TransactionTypeCapped:
		outcome.Status = models.OutcomeSkippedCap
		outcome.TransactionID = tx.ID
	default:
		outcome.Status = models.OutcomeSucceeded
		outcome.TransactionID = tx.ID
	}

	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "transaction_id", "error", "updated_at"}),
	}).Create(&outcome).Error; err != nil {
		log.Printf("💸 Batch %s: failed to record outcome for %s: %v", batch.ID, userID, err)
	}
}

func (s *RewardService) finalizeBatch(batch *models.DistributionBatch) (*models.DistributionBatch, error) {
	counts := map[models.OutcomeStatus]int{}
	var rows []struct {
		Status models.OutcomeStatus
		N      int
	}
	if err := s.DB.Model(&models.BatchOutcome{}).
		Select("status, COUNT(*) AS n").
		Where("batch_id = ?", batch.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.Status] = r.N
	}

	batch.Succeeded = counts[models.OutcomeSucceeded]
	batch.Failed = counts[models.OutcomeFailed]
	batch.SkippedCap = counts[models.OutcomeSkippedCap]
	if batch.Failed > 0 || batch.SkippedCap > 0 || batch.Succeeded < batch.TotalTargets {
		batch.Status = models.BatchStatusPartial
	} else {
		batch.Status = models.BatchStatusComplete
	}
	now := time.Now().UTC()
	batch.CompletedAt = &now

	if url, err := s.uploadBatchReport(batch); err != nil {
		log.Printf("💸 Batch %s: report upload failed: %v", batch.ID, err)
	} else if url != "" {
		batch.ReportURL = url
	}

	if err := s.DB.Save(batch).Error; err != nil {
		return nil, err
	}
	log.Printf("✅ Batch %s finished: %s (%d ok, %d failed, %d capped)",
		batch.ID, batch.Status, batch.Succeeded, batch.Failed, batch.SkippedCap)
	return batch, nil
}

// uploadBatchReport exports the per-user outcomes as CSV to R2 so admins
// can review large batches outside the API. Best effort: a failed upload
// never fails the batch.
func (s *RewardService) uploadBatchReport(batch *models.DistributionBatch) (string, error) {
	if !utils.R2Enabled() {
		return "", nil
	}

	var outcomes []models.BatchOutcome
	if err := s.DB.Where("batch_id = ?", batch.ID).Order("user_id ASC").Find(&outcomes).Error; err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"user_id", "status", "transaction_id", "error"})
	for _, o := range outcomes {
		_ = w.Write([]string{o.UserID, string(o.Status), o.TransactionID, o.Error})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	key := fmt.Sprintf("batch-reports/%s.csv", batch.ID)
	return utils.UploadBytesToR2(context.Background(), key, "text/csv", buf.Bytes())
}

func (s *RewardService) resolveTargets(filter string) ([]string, error) {
	query := s.DB.Model(&models.EconomyUser{})
	if filter == "active" {
		query = query.Where("is_active = ?", true)
	}
	var ids []string
	if err := query.Order("external_user_id ASC").Pluck("external_user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
