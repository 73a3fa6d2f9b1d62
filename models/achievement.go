package models

import (
	"time"
)

// ConditionKind determines how incoming event values update progress.
type ConditionKind string

const (
	// ConditionKindCounter accumulates: each event value is added to the
	// current progress (e.g. total cases solved).
	ConditionKindCounter ConditionKind = "counter"
	// ConditionKindSnapshot reports a current value (e.g. login streak
	// length); progress keeps the maximum ever observed so it never drops.
	ConditionKindSnapshot ConditionKind = "snapshot"
)

// AchievementRarity: display/reward classification, common → legendary.
type AchievementRarity string

const (
	RarityCommon    AchievementRarity = "common"
	RarityUncommon  AchievementRarity = "uncommon"
	RarityRare      AchievementRarity = "rare"
	RarityEpic      AchievementRarity = "epic"
	RarityLegendary AchievementRarity = "legendary"
)

// AchievementDefinition: static catalog entry (seeded or admin-created).
// The unlock condition is the closed pair (Metric, Kind) with a typed
// integer threshold, so evaluation is exhaustive instead of an open map.
type AchievementDefinition struct {
	ID           string            `gorm:"primaryKey;type:uuid" json:"id"`
	Code         string            `gorm:"uniqueIndex;size:64;not null" json:"code"` // e.g. "first_case_solved"
	Name         string            `gorm:"not null" json:"name"`
	Description  string            `gorm:"type:text" json:"description"`
	IconURL      string            `gorm:"type:text" json:"icon_url"`
	Rarity       AchievementRarity `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	Metric       string            `gorm:"size:64;not null;index" json:"metric"` // e.g. "cases_solved"
	Kind         ConditionKind     `gorm:"type:varchar(16);not null" json:"kind"`
	Threshold    int64             `gorm:"not null" json:"threshold"`
	RewardCoins  int64             `gorm:"not null;default:0" json:"reward_coins"`
	RewardPoints int64             `gorm:"not null;default:0" json:"reward_points"`
	IsActive     bool              `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// AchievementProgress: one row per (user, achievement). CurrentProgress is
// monotonically non-decreasing; IsCompleted flips false→true exactly once.
type AchievementProgress struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          string     `gorm:"uniqueIndex:idx_user_achievement;size:64;not null" json:"user_id"`
	AchievementID   string     `gorm:"uniqueIndex:idx_user_achievement;type:uuid;not null" json:"achievement_id"`
	CurrentProgress int64      `gorm:"not null;default:0" json:"current_progress"`
	IsCompleted     bool       `gorm:"not null;default:false;index" json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultAchievements seeds the catalog on first boot (admins can extend
// it at runtime through the admin endpoints).
var DefaultAchievements = []AchievementDefinition{
	{
		Code:        "first_case_solved",
		Name:        "First Diagnosis",
		Description: "Solved your first radiology case",
		Rarity:      RarityCommon,
		Metric:      "cases_solved",
		Kind:        ConditionKindCounter,
		Threshold:   1,
		RewardCoins: 20,
	},
	{
		Code:        "case_solver_50",
		Name:        "Resident Reader",
		Description: "Solved 50 cases",
		Rarity:      RarityRare,
		Metric:      "cases_solved",
		Kind:        ConditionKindCounter,
		Threshold:   50,
		RewardCoins: 100,
	},
	{
		Code:        "case_solver_500",
		Name:        "Attending Eye",
		Description: "Solved 500 cases",
		Rarity:      RarityEpic,
		Metric:      "cases_solved",
		Kind:        ConditionKindCounter,
		Threshold:   500,
		RewardCoins: 500,
	},
	{
		Code:        "streak_7",
		Name:        "One Week Strong",
		Description: "Logged in 7 days in a row",
		Rarity:      RarityUncommon,
		Metric:      "login_streak",
		Kind:        ConditionKindSnapshot,
		Threshold:   7,
		RewardCoins: 50,
	},
	{
		Code:        "streak_30",
		Name:        "Iron Discipline",
		Description: "Logged in 30 days in a row",
		Rarity:      RarityEpic,
		Metric:      "login_streak",
		Kind:        ConditionKindSnapshot,
		Threshold:   30,
		RewardCoins: 300,
	},
	{
		Code:        "event_champion",
		Name:        "Event Champion",
		Description: "Won a platform event",
		Rarity:      RarityEpic,
		Metric:      "events_won",
		Kind:        ConditionKindCounter,
		Threshold:   1,
		RewardCoins: 250,
	},
	{
		Code:        "collector_1000",
		Name:        "RadCoin Collector",
		Description: "Earned 1000 RadCoins lifetime",
		Rarity:      RarityLegendary,
		Metric:      "coins_earned",
		Kind:        ConditionKindSnapshot, // fed the lifetime total, not deltas
		Threshold:   1000,
		RewardCoins: 100,
	},
}
