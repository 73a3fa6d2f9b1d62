package models

import (
	"time"
)

// BatchStatus tracks the lifecycle of a bulk distribution.
type BatchStatus string

const (
	BatchStatusPending  BatchStatus = "pending"
	BatchStatusPartial  BatchStatus = "partial"
	BatchStatusComplete BatchStatus = "complete"
)

// OutcomeStatus is the per-user result inside a batch.
type OutcomeStatus string

const (
	OutcomeSucceeded  OutcomeStatus = "succeeded"
	OutcomeFailed     OutcomeStatus = "failed"
	OutcomeSkippedCap OutcomeStatus = "skipped_cap"
)

// DistributionBatch records a bulk admin grant. The row is created as
// pending before any grant runs; after completion it is an immutable
// audit artifact. The batch ID scopes every per-user idempotency key
// (batch_id + ":" + user_id), which is what makes re-runs safe.
type DistributionBatch struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"batch_id"`
	TargetFilter  string          `gorm:"size:64;not null" json:"target_filter"` // "all" | "active"
	AmountPerUser int64           `gorm:"not null" json:"amount_per_user"`
	Type          TransactionType `gorm:"type:varchar(32);not null" json:"type"`
	Reason        string          `gorm:"size:255" json:"reason"`
	Status        BatchStatus     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	TotalTargets  int             `gorm:"not null;default:0" json:"total_targets"`
	Succeeded     int             `gorm:"not null;default:0" json:"succeeded"`
	Failed        int             `gorm:"not null;default:0" json:"failed"`
	SkippedCap    int             `gorm:"not null;default:0" json:"skipped_cap"`
	ReportURL     string          `gorm:"type:text" json:"report_url,omitempty"`
	CreatedBy     string          `gorm:"size:64" json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// BatchOutcome is one user's result inside a batch. Upserted on
// (batch_id, user_id) so a resumed batch overwrites a prior failure with
// the retry's result instead of duplicating it.
type BatchOutcome struct {
	ID            string        `gorm:"primaryKey;type:uuid" json:"id"`
	BatchID       string        `gorm:"uniqueIndex:idx_batch_user;type:uuid;not null" json:"batch_id"`
	UserID        string        `gorm:"uniqueIndex:idx_batch_user;size:64;not null" json:"user_id"`
	Status        OutcomeStatus `gorm:"type:varchar(16);not null" json:"status"`
	TransactionID string        `gorm:"type:uuid" json:"transaction_id,omitempty"`
	Error         string        `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}
