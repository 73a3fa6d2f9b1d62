// services/analytics_service.go
package services

import (
	"sort"
	"sync"
	"time"

	"radcoin-economy-system/models"

	"gorm.io/gorm"
)

// EconomyStats is a point-in-time rollup of the ledger. Values may be
// slightly stale relative to concurrent writes; this is the one read
// path where that is acceptable.
type EconomyStats struct {
	TotalCirculation int64            `json:"total_circulation"`
	MeanBalance      int64            `json:"mean_balance"`
	MedianBalance    int64            `json:"median_balance"`
	ActiveWallets    int64            `json:"active_wallets"`
	CreditedByType   map[string]int64 `json:"credited_by_type"`
	TopHolders       []TopHolder      `json:"top_holders"`
	WindowDays       int              `json:"window_days"`
	ComputedAt       time.Time        `json:"computed_at"`
}

type TopHolder struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// AnalyticsService derives economy rollups from the ledger. Read-only:
// it never writes balance state. A cached snapshot is refreshed by the
// stats worker; Compute always reads live.
type AnalyticsService struct {
	DB *gorm.DB

	mu     sync.RWMutex
	cached *EconomyStats
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db}
}

const (
	statsTopN       = 10
	statsWindowDays = 30
)

// Compute builds a fresh snapshot from the ledger tables.
func (s *AnalyticsService) Compute() (*EconomyStats, error) {
	stats := &EconomyStats{
		CreditedByType: map[string]int64{},
		WindowDays:     statsWindowDays,
		ComputedAt:     time.Now().UTC(),
	}

	var balances []int64
	if err := s.DB.Model(&models.AccountBalance{}).Pluck("balance", &balances).Error; err != nil {
		return nil, err
	}

	for _, b := range balances {
		stats.TotalCirculation += b
		if b > 0 {
			stats.ActiveWallets++
		}
	}
	if n := len(balances); n > 0 {
		stats.MeanBalance = stats.TotalCirculation / int64(n)
		// Median requires the slice actually sorted before indexing.
		sort.Slice(balances, func(i, j int) bool { return balances[i] < balances[j] })
		if n%2 == 1 {
			stats.MedianBalance = balances[n/2]
		} else {
			stats.MedianBalance = (balances[n/2-1] + balances[n/2]) / 2
		}
	}

	since := stats.ComputedAt.AddDate(0, 0, -statsWindowDays)
	var byType []struct {
		Type  string
		Total int64
	}
	if err := s.DB.Model(&models.Transaction{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("amount > 0 AND created_at >= ?", since).
		Group("type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, row := range byType {
		stats.CreditedByType[row.Type] = row.Total
	}

	var top []models.AccountBalance
	if err := s.DB.Order("balance DESC").Limit(statsTopN).Find(&top).Error; err != nil {
		return nil, err
	}
	for _, acc := range top {
		stats.TopHolders = append(stats.TopHolders, TopHolder{UserID: acc.UserID, Balance: acc.Balance})
	}

	return stats, nil
}

// Refresh recomputes and stores the cached snapshot.
func (s *AnalyticsService) Refresh() (*EconomyStats, error) {
	stats, err := s.Compute()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cached = stats
	s.mu.Unlock()
	return stats, nil
}

// Snapshot returns the cached rollup, computing one on first use.
func (s *AnalyticsService) Snapshot() (*EconomyStats, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return s.Refresh()
}
