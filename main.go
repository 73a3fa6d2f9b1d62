package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"radcoin-economy-system/handlers"
	"radcoin-economy-system/middleware"
	"radcoin-economy-system/models"
	"radcoin-economy-system/services"
	"radcoin-economy-system/utils"
	"radcoin-economy-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Transaction{},
		&models.AccountBalance{},
		&models.AchievementDefinition{},
		&models.AchievementProgress{},
		&models.RewardConfig{},
		&models.DistributionBatch{},
		&models.BatchOutcome{},
		&models.EconomyUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledgerService := services.NewLedgerService(db)
	configService := services.NewConfigService(db)
	achievementService := services.NewAchievementService(db)
	rewardService := services.NewRewardService(db, ledgerService, configService)
	analyticsService := services.NewAnalyticsService(db)

	if err := configService.EnsureConfig(); err != nil {
		log.Fatal("failed to seed reward config:", err)
	}
	if err := achievementService.EnsureCatalog(); err != nil {
		log.Fatal("failed to seed achievement catalog:", err)
	}

	// --- CONFIGURE Sync Service Details for the user mirror ---
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("ECONOMY_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("ECONOMY_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	syncWorker := workers.NewEconomyUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workers.PollEconomyStats(ctx, analyticsService, 60*time.Second)

	go func() {
		log.Println("Starting Economy User Sync Worker...")
		syncWorker.Start(ctx)
	}()

	if _, err := services.StartScheduler(rewardService, analyticsService); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	// ✅ Setup routes — enforced Gateway auth everywhere
	handlers.SetupLedgerRoutes(app, ledgerService)
	handlers.SetupAchievementRoutes(app, achievementService)
	handlers.SetupEventRoutes(app, achievementService, rewardService, ledgerService)
	handlers.SetupAdminRoutes(app, rewardService, configService, analyticsService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Economy User Sync Worker running")
	log.Println("✅ Stats polling running (every 60s)")
	log.Println("✅ Batch resumer running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
