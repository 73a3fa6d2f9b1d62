// handlers/ledger_routes.go
package handlers

import (
	"strconv"
	"time"

	"radcoin-economy-system/middleware"
	"radcoin-economy-system/models"
	"radcoin-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLedgerRoutes(app *fiber.App, ledgerService *services.LedgerService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/balance", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		balance, err := ledgerService.GetBalance(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch balance",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"user_id": userID,
			"balance": balance,
		})
	})

	securedGroup.Get("/user/transactions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		cursor := c.Query("cursor")

		var filter services.TransactionFilter
		if t := c.Query("type"); t != "" {
			filter.Type = models.TransactionType(t)
		}
		if from := c.Query("from"); from != "" {
			ts, err := time.Parse(time.RFC3339, from)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid 'from' timestamp"})
			}
			filter.From = ts
		}
		if to := c.Query("to"); to != "" {
			ts, err := time.Parse(time.RFC3339, to)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid 'to' timestamp"})
			}
			filter.To = ts
		}

		page, err := ledgerService.ListTransactions(userID, filter, cursor, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch transactions",
				"cause": err.Error(),
			})
		}
		return c.JSON(page)
	})

	// SSE stream — authenticated via query params (EventSource cannot set headers)
	app.Get("/user/transactions/stream", middleware.SSEAuthMiddleware(), ledgerService.StreamUserTransactionsSSE)
}
