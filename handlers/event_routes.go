// handlers/event_routes.go
package handlers

import (
	"errors"
	"log"
	"time"

	"radcoin-economy-system/models"
	"radcoin-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEventRoutes wires the domain-event ingest endpoint. Events arrive
// from the content/login/event subsystems through the gateway
// (service-to-service, no user context): the tracker updates progress,
// and newly completed achievements are paid out through the reward
// engine. Ledger rejections on these single-user grants surface as
// errors — the caller must see them, not a silently diverged balance.
func SetupEventRoutes(app *fiber.App, achievementService *services.AchievementService, rewardService *services.RewardService, ledgerService *services.LedgerService) {
	app.Post("/events", func(c *fiber.Ctx) error {
		var ev models.DomainEvent
		if err := c.BodyParser(&ev); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if ev.UserID == "" || ev.Metric == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and metric are required"})
		}
		if ev.Value < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "value must be non-negative"})
		}
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now().UTC()
		}

		granted, err := processEvent(achievementService, rewardService, ev)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "event processing failed",
				"cause": err.Error(),
			})
		}

		// Feed the lifetime-earnings metric back through the tracker so
		// collector achievements unlock off real ledger totals.
		if len(granted) > 0 {
			total, err := ledgerService.TotalEarned(ev.UserID)
			if err != nil {
				log.Printf("⚠️ Failed to compute lifetime earnings for %s: %v", ev.UserID, err)
			} else {
				more, err := processEvent(achievementService, rewardService, models.DomainEvent{
					UserID:     ev.UserID,
					Metric:     models.MetricCoinsEarned,
					Value:      total,
					OccurredAt: ev.OccurredAt,
				})
				if err != nil {
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
						"error": "event processing failed",
						"cause": err.Error(),
					})
				}
				granted = append(granted, more...)
			}
		}

		return c.JSON(fiber.Map{
			"message":      "event processed",
			"transactions": granted,
		})
	})
}

// processEvent runs one event through the tracker and pays out every
// completion it produced. Daily login rewards ride the login_streak
// event; the grant is idempotent per UTC day.
func processEvent(achievementService *services.AchievementService, rewardService *services.RewardService, ev models.DomainEvent) ([]models.Transaction, error) {
	completions, err := achievementService.RecordEvent(ev.UserID, ev.Metric, ev.Value)
	if err != nil {
		return nil, err
	}

	var granted []models.Transaction
	for _, done := range completions {
		tx, err := rewardService.GrantAchievement(ev.UserID, done.Definition, services.GrantContext{Now: ev.OccurredAt})
		if err != nil {
			return granted, err
		}
		if tx != nil {
			granted = append(granted, *tx)
		}
	}

	if ev.Metric == models.MetricLoginStreak {
		hasStreak := ev.Value >= 2
		tx, err := rewardService.GrantDailyLogin(ev.UserID, hasStreak, ev.OccurredAt)
		if err != nil && !errors.Is(err, services.ErrInvalidAmount) {
			return granted, err
		}
		if tx != nil {
			granted = append(granted, *tx)
		}
	}

	return granted, nil
}
