// services/config_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"radcoin-economy-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrConfigValidation: the submitted configuration failed bounds checks
// and was rejected before it could affect any grant computation.
var ErrConfigValidation = errors.New("invalid reward configuration")

// ConfigService stores the versioned reward configuration. Reads return
// the highest version; writes insert a new version row (last-writer-wins
// at the document level). Grant computations snapshot the config once per
// operation, so a concurrent update never changes an in-flight batch.
type ConfigService struct {
	DB *gorm.DB
}

func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{DB: db}
}

// EnsureConfig seeds version 1 with defaults when the table is empty.
func (s *ConfigService) EnsureConfig() error {
	var count int64
	if err := s.DB.Model(&models.RewardConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	cfg := models.DefaultRewardConfig()
	cfg.ID = uuid.NewString()
	if err := s.DB.Create(&cfg).Error; err != nil {
		return err
	}
	log.Printf("⚙️ Seeded reward configuration v%d", cfg.Version)
	return nil
}

// GetConfig returns the current (highest-version) configuration.
func (s *ConfigService) GetConfig() (*models.RewardConfig, error) {
	var cfg models.RewardConfig
	err := s.DB.Order("version DESC").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := models.DefaultRewardConfig()
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetConfig validates and stores a new configuration version. Takes
// effect for all grant computations that start after the write.
func (s *ConfigService) SetConfig(next models.RewardConfig, updatedBy string) (*models.RewardConfig, error) {
	if err := validateConfig(next); err != nil {
		return nil, err
	}

	var stored models.RewardConfig
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		current := 0
		var latest models.RewardConfig
		err := tx.Order("version DESC").First(&latest).Error
		if err == nil {
			current = latest.Version
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		stored = next
		stored.ID = uuid.NewString()
		stored.Version = current + 1
		stored.UpdatedBy = updatedBy
		return tx.Create(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("⚙️ Reward configuration updated to v%d by %s", stored.Version, updatedBy)
	return &stored, nil
}

func validateConfig(cfg models.RewardConfig) error {
	if cfg.LevelUpBase < 0 || cfg.DailyLoginBase < 0 {
		return fmt.Errorf("%w: base values cannot be negative", ErrConfigValidation)
	}
	if cfg.AchievementMultiplier < 0 || cfg.StreakMultiplier < 0 {
		return fmt.Errorf("%w: multipliers cannot be negative", ErrConfigValidation)
	}
	if cfg.AchievementMultiplier > 10 || cfg.StreakMultiplier > 10 {
		return fmt.Errorf("%w: multipliers above 10x are not allowed", ErrConfigValidation)
	}
	if cfg.MaxDailyPerUser < 0 {
		return fmt.Errorf("%w: daily cap cannot be negative", ErrConfigValidation)
	}
	return nil
}
