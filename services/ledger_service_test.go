package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"radcoin-economy-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTransactionCreditsAndDebits(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	tx, err := ledger.ApplyTransaction("u1", 100, models.TransactionTypeAdminGrant, "k1", map[string]string{"reason": "welcome"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), tx.Amount)
	assert.Equal(t, int64(100), tx.BalanceAfter)

	tx, err = ledger.ApplyTransaction("u1", -30, models.TransactionTypeAIChatUsage, "k2", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(70), tx.BalanceAfter)

	balance, err := ledger.GetBalance("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)
}

func TestApplyTransactionRejectsZeroAmount(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	_, err := ledger.ApplyTransaction("u1", 0, models.TransactionTypeAdminGrant, "k1", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestApplyTransactionIdempotency(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	first, err := ledger.ApplyTransaction("u1", 50, models.TransactionTypeAdminGrant, "same-key", nil)
	require.NoError(t, err)

	second, err := ledger.ApplyTransaction("u1", 50, models.TransactionTypeAdminGrant, "same-key", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "replay must return the original transaction")
	assert.Equal(t, first.BalanceAfter, second.BalanceAfter)

	balance, err := ledger.GetBalance("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance, "balance applied exactly once")

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInsufficientFundsLeavesLedgerUntouched(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	_, err := ledger.ApplyTransaction("u1", 5, models.TransactionTypeAdminGrant, "k1", nil)
	require.NoError(t, err)

	_, err = ledger.ApplyTransaction("u1", -10, models.TransactionTypeAIChatUsage, "k2", nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	balance, err := ledger.GetBalance("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "the rejected debit must not be recorded")
}

func TestLedgerReconciliation(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	amounts := []int64{100, -20, 35, -5, 250}
	for i, amt := range amounts {
		txType := models.TransactionTypeAdminGrant
		if amt < 0 {
			txType = models.TransactionTypeAIChatUsage
		}
		_, err := ledger.ApplyTransaction("u1", amt, txType, fmt.Sprintf("k%d", i), nil)
		require.NoError(t, err)
	}

	var txs []models.Transaction
	require.NoError(t, db.Where("user_id = ?", "u1").Order("created_at ASC, id ASC").Find(&txs).Error)

	var running int64
	for _, tx := range txs {
		running += tx.Amount
		assert.Equal(t, running, tx.BalanceAfter, "balance_after chain must be consistent")
	}

	balance, err := ledger.GetBalance("u1")
	require.NoError(t, err)
	assert.Equal(t, running, balance, "replay from zero must reproduce the stored balance")
}

func TestConcurrentCreditsSerializePerAccount(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.ApplyTransaction("u1", 10, models.TransactionTypeAdminGrant, fmt.Sprintf("k%d", i), nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	balance, err := ledger.GetBalance("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(n*10), balance)
}

func TestListTransactionsPagination(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	for i := 0; i < 5; i++ {
		_, err := ledger.ApplyTransaction("u1", 10, models.TransactionTypeAdminGrant, fmt.Sprintf("k%d", i), nil)
		require.NoError(t, err)
	}
	// Another user's rows must not leak in.
	_, err := ledger.ApplyTransaction("u2", 99, models.TransactionTypeAdminGrant, "other", nil)
	require.NoError(t, err)

	page1, err := ledger.ListTransactions("u1", TransactionFilter{}, "", 3)
	require.NoError(t, err)
	require.Len(t, page1.Transactions, 3)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := ledger.ListTransactions("u1", TransactionFilter{}, page1.NextCursor, 3)
	require.NoError(t, err)
	require.Len(t, page2.Transactions, 2)
	assert.Empty(t, page2.NextCursor)

	// Ascending order across the full listing, no duplicates.
	seen := map[string]bool{}
	var last time.Time
	for _, tx := range append(page1.Transactions, page2.Transactions...) {
		assert.False(t, seen[tx.ID], "cursor paging must not repeat rows")
		seen[tx.ID] = true
		assert.False(t, tx.CreatedAt.Before(last))
		last = tx.CreatedAt
	}
}

func TestListTransactionsTypeFilter(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	_, err := ledger.ApplyTransaction("u1", 10, models.TransactionTypeDailyLogin, "k1", nil)
	require.NoError(t, err)
	_, err = ledger.ApplyTransaction("u1", 20, models.TransactionTypeAdminGrant, "k2", nil)
	require.NoError(t, err)

	page, err := ledger.ListTransactions("u1", TransactionFilter{Type: models.TransactionTypeDailyLogin}, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, models.TransactionTypeDailyLogin, page.Transactions[0].Type)
}

func TestDailyCredited(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	_, err := ledger.ApplyTransaction("u1", 40, models.TransactionTypeAdminGrant, "k1", nil)
	require.NoError(t, err)
	_, err = ledger.ApplyTransaction("u1", 50, models.TransactionTypeDailyLogin, "k2", nil)
	require.NoError(t, err)
	// Debits never count against the daily cap.
	_, err = ledger.ApplyTransaction("u1", -30, models.TransactionTypeAIChatUsage, "k3", nil)
	require.NoError(t, err)

	credited, err := ledger.DailyCredited("u1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(90), credited)
}

func TestRecordCapMarkerKeepsChainAndIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	_, err := ledger.ApplyTransaction("u1", 100, models.TransactionTypeAdminGrant, "k1", nil)
	require.NoError(t, err)

	marker, err := ledger.RecordCapMarker("u1", "cap-key", map[string]string{"capped_reason": "daily_cap"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), marker.Amount)
	assert.Equal(t, models.TransactionTypeCapped, marker.Type)
	assert.Equal(t, int64(100), marker.BalanceAfter, "marker repeats the current balance")

	again, err := ledger.RecordCapMarker("u1", "cap-key", nil)
	require.NoError(t, err)
	assert.Equal(t, marker.ID, again.ID)

	balance, err := ledger.GetBalance("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestListTransactionsRejectsForeignCursor(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	_, err := ledger.ApplyTransaction("u1", 10, models.TransactionTypeAdminGrant, "k1", nil)
	require.NoError(t, err)
	other, err := ledger.ApplyTransaction("u2", 10, models.TransactionTypeAdminGrant, "k2", nil)
	require.NoError(t, err)

	_, err = ledger.ListTransactions("u1", TransactionFilter{}, other.ID, 10)
	assert.Error(t, err, "another user's transaction ID is not a valid cursor")
}

func TestTransactionsAfterDisambiguatesEqualTimestamps(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	// Two rows sharing one timestamp, as a bulk batch produces.
	ts := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	rows := []models.Transaction{
		{ID: "00000000-0000-0000-0000-000000000001", UserID: "u1", Amount: 10, Type: models.TransactionTypeAdminGrant, BalanceAfter: 10, IdempotencyKey: "k1", CreatedAt: ts},
		{ID: "00000000-0000-0000-0000-000000000002", UserID: "u1", Amount: 10, Type: models.TransactionTypeAdminGrant, BalanceAfter: 20, IdempotencyKey: "k2", CreatedAt: ts},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	newer, err := ledger.transactionsAfter("u1", ts, rows[0].ID)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, rows[1].ID, newer[0].ID, "the same-timestamp sibling must not be skipped")
}
