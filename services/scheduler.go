// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartScheduler runs the service's periodic jobs on one shared gocron
// scheduler: stale-batch resume every minute (safe because per-user
// grants are idempotent on batch-scoped keys) and a daily economy
// snapshot for the ops log. Returns the running scheduler so callers can
// shut it down.
func StartScheduler(rewards *RewardService, analytics *AnalyticsService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			rewards.ResumeStaleBatches(10 * time.Minute)
		}),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			stats, err := analytics.Refresh()
			if err != nil {
				log.Printf("[Scheduler] Stats snapshot failed: %v", err)
				return
			}
			log.Printf("📊 Daily snapshot: circulation=%d active_wallets=%d median=%d",
				stats.TotalCirculation, stats.ActiveWallets, stats.MedianBalance)
		}),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
