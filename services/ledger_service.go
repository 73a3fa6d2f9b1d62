// services/ledger_service.go
package services

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"radcoin-economy-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrInvalidAmount: zero-amount transactions are rejected outright.
	ErrInvalidAmount = errors.New("transaction amount must be non-zero")
	// ErrInsufficientFunds: a debit would drive the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// LedgerService owns the append-only transaction log and the
// account_balances projection. All balance mutations go through
// ApplyTransaction; nothing else writes either table.
type LedgerService struct {
	DB *gorm.DB

	// accountLocks serializes mutations per account. Different users
	// proceed fully in parallel; the same user's writes queue here.
	accountLocks sync.Map // userID → *sync.Mutex
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

func (s *LedgerService) lockAccount(userID string) *sync.Mutex {
	mu, _ := s.accountLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ApplyTransaction appends a transaction and updates the account balance
// as one atomic unit. Exactly-once per idempotency key: replaying a known
// key returns the originally recorded transaction without touching the
// balance again.
func (s *LedgerService) ApplyTransaction(userID string, amount int64, txType models.TransactionType, idempotencyKey string, metadata map[string]string) (*models.Transaction, error) {
	mu := s.lockAccount(userID)
	mu.Lock()
	defer mu.Unlock()
	return s.applyLocked(userID, amount, txType, idempotencyKey, metadata)
}

// applyLocked is ApplyTransaction's body; the caller holds the account lock.
func (s *LedgerService) applyLocked(userID string, amount int64, txType models.TransactionType, idempotencyKey string, metadata map[string]string) (*models.Transaction, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return nil, errors.New("idempotency key is required")
	}

	var result models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Replay check: a known key short-circuits without re-applying.
		var existing models.Transaction
		err := tx.Where("idempotency_key = ?", idempotencyKey).First(&existing).Error
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var account models.AccountBalance
		err = tx.Where("user_id = ?", userID).First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			account = models.AccountBalance{UserID: userID, Balance: 0}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		newBalance := account.Balance + amount
		if newBalance < 0 {
			return ErrInsufficientFunds
		}

		result = models.Transaction{
			ID:             uuid.NewString(),
			UserID:         userID,
			Amount:         amount,
			Type:           txType,
			BalanceAfter:   newBalance,
			IdempotencyKey: idempotencyKey,
			Metadata:       metadata,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}

		account.Balance = newBalance
		return tx.Save(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ApplyWithDailyCap credits a user while enforcing the daily allowance.
// The allowance read and the apply share one account lock: released
// between them, two concurrent grants could both observe the same
// remaining headroom and overshoot the cap. Grants larger than the
// remainder are clipped; a grant clipped to zero becomes a capped marker.
func (s *LedgerService) ApplyWithDailyCap(userID string, amount int64, txType models.TransactionType, idempotencyKey string, metadata map[string]string, maxDaily int64, at time.Time) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	mu := s.lockAccount(userID)
	mu.Lock()
	defer mu.Unlock()

	credited, err := s.DailyCredited(userID, at)
	if err != nil {
		return nil, fmt.Errorf("computing daily credits: %w", err)
	}

	remaining := maxDaily - credited
	if remaining <= 0 {
		meta := withMeta(metadata, map[string]string{
			"capped_reason":    "daily_cap",
			"requested_amount": strconv.FormatInt(amount, 10),
		})
		return s.recordCapMarkerLocked(userID, idempotencyKey, meta)
	}
	if amount > remaining {
		metadata = withMeta(metadata, map[string]string{
			"capped_reason":    "daily_cap",
			"requested_amount": strconv.FormatInt(amount, 10),
		})
		amount = remaining
	}
	return s.applyLocked(userID, amount, txType, idempotencyKey, metadata)
}

func withMeta(base map[string]string, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// RecordCapMarker writes a zero-amount "capped" audit entry for grants
// that inflation control clipped all the way to zero. ApplyTransaction
// rejects zero amounts, so this is the one other writer of the
// transactions table; BalanceAfter repeats the current balance, keeping
// the per-user chain invariant intact. Idempotent per key.
func (s *LedgerService) RecordCapMarker(userID, idempotencyKey string, metadata map[string]string) (*models.Transaction, error) {
	mu := s.lockAccount(userID)
	mu.Lock()
	defer mu.Unlock()
	return s.recordCapMarkerLocked(userID, idempotencyKey, metadata)
}

func (s *LedgerService) recordCapMarkerLocked(userID, idempotencyKey string, metadata map[string]string) (*models.Transaction, error) {
	if idempotencyKey == "" {
		return nil, errors.New("idempotency key is required")
	}

	var result models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Transaction
		err := tx.Where("idempotency_key = ?", idempotencyKey).First(&existing).Error
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		balance, err := currentBalance(tx, userID)
		if err != nil {
			return err
		}

		result = models.Transaction{
			ID:             uuid.NewString(),
			UserID:         userID,
			Amount:         0,
			Type:           models.TransactionTypeCapped,
			BalanceAfter:   balance,
			IdempotencyKey: idempotencyKey,
			Metadata:       metadata,
			CreatedAt:      time.Now().UTC(),
		}
		return tx.Create(&result).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func currentBalance(tx *gorm.DB, userID string) (int64, error) {
	var account models.AccountBalance
	err := tx.Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// GetBalance reflects the latest applied transaction; users without an
// account row simply have balance 0.
func (s *LedgerService) GetBalance(userID string) (int64, error) {
	return currentBalance(s.DB, userID)
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	Type models.TransactionType
	From time.Time
	To   time.Time
}

// TransactionPage is a cursor-paged slice of a user's history, ordered by
// created_at ascending. Pass NextCursor back in to restart where the
// previous page stopped.
type TransactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}

// ListTransactions pages through a user's ledger history oldest-first.
// The cursor is the last transaction ID of the previous page.
func (s *LedgerService) ListTransactions(userID string, filter TransactionFilter, cursor string, limit int) (*TransactionPage, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := s.DB.Where("user_id = ?", userID)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at <= ?", filter.To)
	}

	if cursor != "" {
		// Anchor must belong to the same user; a foreign transaction ID
		// is not a valid cursor.
		var anchor models.Transaction
		if err := s.DB.Where("id = ? AND user_id = ?", cursor, userID).First(&anchor).Error; err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		query = query.Where(
			"(created_at > ?) OR (created_at = ? AND id > ?)",
			anchor.CreatedAt, anchor.CreatedAt, anchor.ID,
		)
	}

	var txs []models.Transaction
	if err := query.Order("created_at ASC, id ASC").Limit(limit + 1).Find(&txs).Error; err != nil {
		return nil, err
	}

	page := &TransactionPage{}
	if len(txs) > limit {
		txs = txs[:limit]
		page.NextCursor = txs[len(txs)-1].ID
	}
	page.Transactions = txs
	return page, nil
}

// DailyCredited sums the positive amounts credited to a user during the
// UTC calendar day containing `at`. Used by inflation control.
func (s *LedgerService) DailyCredited(userID string, at time.Time) (int64, error) {
	dayStart := at.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var total int64
	err := s.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND amount > 0 AND created_at >= ? AND created_at < ?", userID, dayStart, dayEnd).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// TotalEarned sums all credits ever granted to a user (feeds the
// coins_earned achievement metric).
func (s *LedgerService) TotalEarned(userID string) (int64, error) {
	var total int64
	err := s.DB.Model(&models.Transaction{}).
		Where("user_id = ? AND amount > 0", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
