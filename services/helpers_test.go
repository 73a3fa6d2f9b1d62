package services

import (
	"fmt"
	"strings"
	"testing"

	"radcoin-economy-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database per test and migrates
// the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// SQLite allows one writer; a single connection avoids spurious
	// "database is locked" errors in concurrent tests.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Transaction{},
		&models.AccountBalance{},
		&models.AchievementDefinition{},
		&models.AchievementProgress{},
		&models.RewardConfig{},
		&models.DistributionBatch{},
		&models.BatchOutcome{},
		&models.EconomyUser{},
	))
	return db
}

// newTestEconomy wires the service graph the way main does.
func newTestEconomy(t *testing.T) (*gorm.DB, *LedgerService, *ConfigService, *RewardService) {
	t.Helper()

	db := newTestDB(t)
	ledger := NewLedgerService(db)
	configs := NewConfigService(db)
	require.NoError(t, configs.EnsureConfig())
	rewards := NewRewardService(db, ledger, configs)
	return db, ledger, configs, rewards
}

// setConfig stores a new config version, failing the test on rejection.
func setConfig(t *testing.T, configs *ConfigService, cfg models.RewardConfig) {
	t.Helper()
	_, err := configs.SetConfig(cfg, "test-admin")
	require.NoError(t, err)
}

// seedEconomyUsers creates n active mirror users and returns their IDs.
func seedEconomyUsers(t *testing.T, db *gorm.DB, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("user-%03d", i)
		require.NoError(t, db.Create(&models.EconomyUser{
			ID:             fmt.Sprintf("00000000-0000-0000-0000-%012d", i),
			ExternalUserID: id,
			Username:       fmt.Sprintf("resident%d", i),
			IsActive:       true,
		}).Error)
		ids = append(ids, id)
	}
	return ids
}
