package services

import (
	"testing"

	"radcoin-economy-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureConfigSeedsDefaultsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewConfigService(db)

	require.NoError(t, svc.EnsureConfig())
	require.NoError(t, svc.EnsureConfig())

	var count int64
	require.NoError(t, db.Model(&models.RewardConfig{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	cfg, err := svc.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, models.DefaultRewardConfig().DailyLoginBase, cfg.DailyLoginBase)
}

func TestGetConfigReturnsDefaultsWhenEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := NewConfigService(db)

	cfg, err := svc.GetConfig()
	require.NoError(t, err)
	assert.True(t, cfg.InflationControl)
	assert.Positive(t, cfg.MaxDailyPerUser)
}

func TestSetConfigIncrementsVersion(t *testing.T) {
	db := newTestDB(t)
	svc := NewConfigService(db)
	require.NoError(t, svc.EnsureConfig())

	next := models.DefaultRewardConfig()
	next.DailyLoginBase = 8
	stored, err := svc.SetConfig(next, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, "admin-1", stored.UpdatedBy)

	again := models.DefaultRewardConfig()
	again.DailyLoginBase = 12
	stored, err = svc.SetConfig(again, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Version)

	cfg, err := svc.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(12), cfg.DailyLoginBase, "reads always see the latest version")

	// Earlier versions stay in the table as an audit trail.
	var count int64
	require.NoError(t, db.Model(&models.RewardConfig{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestSetConfigRejectsInvalidValues(t *testing.T) {
	db := newTestDB(t)
	svc := NewConfigService(db)
	require.NoError(t, svc.EnsureConfig())

	cases := []func(*models.RewardConfig){
		func(c *models.RewardConfig) { c.DailyLoginBase = -1 },
		func(c *models.RewardConfig) { c.LevelUpBase = -5 },
		func(c *models.RewardConfig) { c.AchievementMultiplier = -0.5 },
		func(c *models.RewardConfig) { c.StreakMultiplier = 11 },
		func(c *models.RewardConfig) { c.MaxDailyPerUser = -100 },
	}
	for _, mutate := range cases {
		bad := models.DefaultRewardConfig()
		mutate(&bad)
		_, err := svc.SetConfig(bad, "admin-1")
		assert.ErrorIs(t, err, ErrConfigValidation)
	}

	// Rejected writes must not bump the version.
	cfg, err := svc.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
}
