// handlers/admin_routes.go
package handlers

import (
	"errors"
	"strconv"

	"radcoin-economy-system/middleware"
	"radcoin-economy-system/models"
	"radcoin-economy-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SetupAdminRoutes(app *fiber.App, rewardService *services.RewardService, configService *services.ConfigService, analyticsService *services.AnalyticsService) {
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	// Single-target grant. Ledger rejections propagate straight back.
	adminGroup.Post("/grant", func(c *fiber.Ctx) error {
		var req struct {
			UserID         string                 `json:"user_id"`
			Amount         int64                  `json:"amount"`
			Type           models.TransactionType `json:"type"`
			Reason         string                 `json:"reason"`
			IdempotencyKey string                 `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
		}
		if req.Type == "" {
			req.Type = models.TransactionTypeAdminGrant
		}
		if !models.ValidTransactionTypes[req.Type] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown transaction type"})
		}
		key := req.IdempotencyKey
		if key == "" {
			key = uuid.NewString()
		}

		meta := map[string]string{"reason": req.Reason, "granted_by": c.Locals("user_id").(string)}
		tx, err := rewardService.GrantSingle(req.UserID, req.Amount, req.Type, services.GrantContext{}, key, meta)
		if err != nil {
			status := fiber.StatusInternalServerError
			if errors.Is(err, services.ErrInvalidAmount) || errors.Is(err, services.ErrInsufficientFunds) {
				status = fiber.StatusUnprocessableEntity
			}
			return c.Status(status).JSON(fiber.Map{"error": "grant failed", "cause": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(tx)
	})

	// Bulk distribution: synchronous, returns the itemized batch record.
	adminGroup.Post("/distribute", func(c *fiber.Ctx) error {
		var req struct {
			TargetFilter  string                 `json:"target_filter"`
			AmountPerUser int64                  `json:"amount_per_user"`
			Type          models.TransactionType `json:"type"`
			Reason        string                 `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Type == "" {
			req.Type = models.TransactionTypeAdminGrant
		}

		batch, err := rewardService.DistributeBulk(req.TargetFilter, req.AmountPerUser, req.Type, req.Reason, c.Locals("user_id").(string))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "distribution failed", "cause": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(batch)
	})

	adminGroup.Post("/batches/:id/resume", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid batch ID"})
		}
		batch, err := rewardService.ResumeBatch(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Batch not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "resume failed", "cause": err.Error()})
		}
		return c.JSON(batch)
	})

	adminGroup.Get("/batches", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		if page < 1 {
			page = 1
		}
		if size < 1 || size > 100 {
			size = 20
		}

		var batches []models.DistributionBatch
		if err := rewardService.DB.
			Order("created_at DESC").
			Limit(size).Offset((page - 1) * size).
			Find(&batches).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list batches"})
		}
		return c.JSON(fiber.Map{"batches": batches, "page": page, "size": size})
	})

	adminGroup.Get("/batches/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")

		var batch models.DistributionBatch
		if err := rewardService.DB.First(&batch, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Batch not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		var outcomes []models.BatchOutcome
		if err := rewardService.DB.Where("batch_id = ?", id).Order("user_id ASC").Find(&outcomes).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch outcomes"})
		}
		return c.JSON(fiber.Map{"batch": batch, "outcomes": outcomes})
	})

	adminGroup.Get("/config", func(c *fiber.Ctx) error {
		cfg, err := configService.GetConfig()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch config"})
		}
		return c.JSON(cfg)
	})

	adminGroup.Put("/config", func(c *fiber.Ctx) error {
		var req models.RewardConfig
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		stored, err := configService.SetConfig(req, c.Locals("user_id").(string))
		if err != nil {
			if errors.Is(err, services.ErrConfigValidation) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "config rejected", "cause": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store config"})
		}
		return c.JSON(stored)
	})

	adminGroup.Get("/stats", func(c *fiber.Ctx) error {
		live := c.Query("live") == "true"

		var stats *services.EconomyStats
		var err error
		if live {
			stats, err = analyticsService.Compute()
		} else {
			stats, err = analyticsService.Snapshot()
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute stats", "cause": err.Error()})
		}
		return c.JSON(stats)
	})
}
