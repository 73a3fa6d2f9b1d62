package models

import (
	"time"
)

// RewardConfig is the versioned reward configuration document. Updates
// insert a new row with Version+1; readers always take the highest
// version, so writes are last-writer-wins at the document level.
type RewardConfig struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	Version int    `gorm:"uniqueIndex;not null" json:"version"`

	// Base values
	LevelUpBase    int64 `gorm:"not null;default:25" json:"level_up_base"`
	DailyLoginBase int64 `gorm:"not null;default:5" json:"daily_login_base"`

	// Multipliers
	AchievementMultiplier float64 `gorm:"not null;default:1" json:"achievement_multiplier"`
	StreakMultiplier      float64 `gorm:"not null;default:1" json:"streak_multiplier"`

	// Caps
	MaxDailyPerUser int64 `gorm:"not null;default:500" json:"max_daily_per_user"`

	// Toggles
	WeekendBonus     bool `gorm:"not null;default:false" json:"weekend_bonus"`
	EventBonusActive bool `gorm:"not null;default:false" json:"event_bonus_active"`
	InflationControl bool `gorm:"not null;default:true" json:"inflation_control"`

	UpdatedBy string    `gorm:"size:64" json:"updated_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DefaultRewardConfig is inserted as version 1 when the table is empty.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		Version:               1,
		LevelUpBase:           25,
		DailyLoginBase:        5,
		AchievementMultiplier: 1.0,
		StreakMultiplier:      1.0,
		MaxDailyPerUser:       500,
		WeekendBonus:          true,
		EventBonusActive:      false,
		InflationControl:      true,
	}
}
