package models

import (
	"time"
)

// TransactionType classifies the source of a ledger entry
type TransactionType string

const (
	TransactionTypeAdminGrant           TransactionType = "admin_grant"
	TransactionTypeDailyLogin           TransactionType = "daily_login"
	TransactionTypeAchievementUnlock    TransactionType = "achievement_unlock"
	TransactionTypeEventReward          TransactionType = "event_reward"
	TransactionTypeSubscriptionPurchase TransactionType = "subscription_purchase"
	TransactionTypeAIChatUsage          TransactionType = "ai_chat_usage"
	// TransactionTypeCapped marks a zero-amount audit entry written when
	// inflation control clipped a grant all the way to zero.
	TransactionTypeCapped TransactionType = "capped"
)

// ValidTransactionTypes is the closed set accepted from admin commands.
var ValidTransactionTypes = map[TransactionType]bool{
	TransactionTypeAdminGrant:           true,
	TransactionTypeDailyLogin:           true,
	TransactionTypeAchievementUnlock:    true,
	TransactionTypeEventReward:          true,
	TransactionTypeSubscriptionPurchase: true,
	TransactionTypeAIChatUsage:          true,
}

// Transaction is an immutable ledger entry. Amount is in whole RadCoins
// (positive = credit, negative = debit). Rows are append-only: never
// updated or deleted after creation, so there is no UpdatedAt/DeletedAt.
type Transaction struct {
	ID             string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string            `gorm:"index:idx_tx_user_created;not null" json:"user_id"`
	Amount         int64             `gorm:"not null" json:"amount"`
	Type           TransactionType   `gorm:"type:varchar(32);not null;index" json:"type"`
	BalanceAfter   int64             `gorm:"not null" json:"balance_after"`
	IdempotencyKey string            `gorm:"uniqueIndex;size:255;not null" json:"idempotency_key"`
	Metadata       map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"index:idx_tx_user_created;autoCreateTime" json:"created_at"`
}

// AccountBalance is the current-balance projection, one row per user.
// Owned by the ledger service; mutated only inside ApplyTransaction.
type AccountBalance struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the projection table apart from the profile mirror.
func (AccountBalance) TableName() string {
	return "account_balances"
}
