// workers/stats_refresh_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"radcoin-economy-system/services"
)

// PollEconomyStats refreshes the cached analytics snapshot on an
// interval. The rollups are explicitly allowed to lag concurrent ledger
// writes, so a periodic recompute is all the dashboards need.
func PollEconomyStats(ctx context.Context, analytics *services.AnalyticsService, pollInterval time.Duration) {
	log.Println("Starting economy stats polling…")

	// Warm the cache before the first tick so the dashboard never waits.
	if _, err := analytics.Refresh(); err != nil {
		log.Printf("❌ Initial stats refresh failed: %v", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Economy stats polling stopped.")
			return
		case <-ticker.C:
			stats, err := analytics.Refresh()
			if err != nil {
				log.Printf("❌ Stats refresh failed: %v", err)
				continue
			}
			log.Printf("📊 Stats refreshed: circulation=%d wallets=%d", stats.TotalCirculation, stats.ActiveWallets)
		}
	}
}
