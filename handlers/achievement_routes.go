// handlers/achievement_routes.go
package handlers

import (
	"radcoin-economy-system/middleware"
	"radcoin-economy-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAchievementRoutes(app *fiber.App, achievementService *services.AchievementService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		progress, err := achievementService.GetProgress(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch achievement progress",
				"cause": err.Error(),
			})
		}
		return c.JSON(progress)
	})

	securedGroup.Get("/user/achievements/completed", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		completed, err := achievementService.ListCompleted(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch completed achievements",
				"cause": err.Error(),
			})
		}
		return c.JSON(completed)
	})

	// Admin catalog management
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())
	adminGroup.Get("/achievements", achievementService.ListAchievements)
	adminGroup.Post("/achievements", achievementService.CreateAchievement)
	adminGroup.Put("/achievements/:id", achievementService.UpdateAchievement)
}
