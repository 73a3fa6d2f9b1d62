// services/achievement_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"radcoin-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// AchievementService owns the achievement catalog and the per-user
// progress tracker. It never writes the ledger: completions are returned
// to the caller (the reward engine decides how and when to pay out).
type AchievementService struct {
	DB *gorm.DB

	// progressLocks serializes progress updates per user. Without it,
	// two concurrent counter events both read the same progress and the
	// later Save overwrites the earlier increment.
	progressLocks sync.Map // userID → *sync.Mutex
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

func (s *AchievementService) lockUser(userID string) *sync.Mutex {
	mu, _ := s.progressLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// EnsureCatalog seeds the default achievement definitions (idempotent,
// keyed by code).
func (s *AchievementService) EnsureCatalog() error {
	for _, def := range models.DefaultAchievements {
		var count int64
		if err := s.DB.Model(&models.AchievementDefinition{}).
			Where("code = ?", def.Code).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		def.ID = uuid.NewString()
		def.IsActive = true
		if err := s.DB.Create(&def).Error; err != nil {
			return err
		}
		log.Printf("🏅 Seeded achievement: %s", def.Code)
	}
	return nil
}

// CompletedAchievement is returned by RecordEvent for each achievement
// the event pushed over its threshold.
type CompletedAchievement struct {
	Definition  models.AchievementDefinition `json:"definition"`
	CompletedAt time.Time                    `json:"completed_at"`
}

// RecordEvent applies one domain event to every active achievement whose
// condition references the event's metric. Counter conditions accumulate
// the value; snapshot conditions keep the maximum observed, so progress
// never decreases either way. Completion flips IsCompleted exactly once;
// replayed events against a completed row are no-ops.
func (s *AchievementService) RecordEvent(userID, metric string, value int64) ([]CompletedAchievement, error) {
	if value < 0 {
		return nil, fmt.Errorf("event value must be non-negative, got %d", value)
	}

	var defs []models.AchievementDefinition
	if err := s.DB.Where("metric = ? AND is_active = ?", metric, true).Find(&defs).Error; err != nil {
		return nil, err
	}

	var completed []CompletedAchievement
	for _, def := range defs {
		done, err := s.applyEvent(userID, def, value)
		if err != nil {
			return completed, err
		}
		if done != nil {
			completed = append(completed, *done)
		}
	}
	return completed, nil
}

// applyEvent updates one (user, achievement) row inside its own
// transaction and reports a completion at most once. The user's progress
// lock covers the whole read-modify-write.
func (s *AchievementService) applyEvent(userID string, def models.AchievementDefinition, value int64) (*CompletedAchievement, error) {
	mu := s.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	var result *CompletedAchievement
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var prog models.AchievementProgress
		err := tx.Where("user_id = ? AND achievement_id = ?", userID, def.ID).First(&prog).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			prog = models.AchievementProgress{
				ID:            uuid.NewString(),
				UserID:        userID,
				AchievementID: def.ID,
			}
			if err := tx.Create(&prog).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if prog.IsCompleted {
			return nil // terminal: duplicate deliveries are no-ops
		}

		switch def.Kind {
		case models.ConditionKindCounter:
			prog.CurrentProgress += value
		case models.ConditionKindSnapshot:
			if value > prog.CurrentProgress {
				prog.CurrentProgress = value
			}
		default:
			return fmt.Errorf("unknown condition kind %q on achievement %s", def.Kind, def.Code)
		}

		if prog.CurrentProgress >= def.Threshold {
			now := time.Now().UTC()
			prog.IsCompleted = true
			prog.CompletedAt = &now
			result = &CompletedAchievement{Definition: def, CompletedAt: now}
			log.Printf("🎖️ Achievement completed: %s → %s", def.Code, userID)
		}

		return tx.Save(&prog).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetProgress returns all progress rows for a user joined with their
// definitions (consumed by the achievement gallery UI).
func (s *AchievementService) GetProgress(userID string) ([]fiber.Map, error) {
	var rows []struct {
		models.AchievementProgress
		Code        string                   `json:"code"`
		Name        string                   `json:"name"`
		Rarity      models.AchievementRarity `json:"rarity"`
		Threshold   int64                    `json:"threshold"`
		RewardCoins int64                    `json:"reward_coins"`
	}
	err := s.DB.Table("achievement_progresses AS p").
		Select("p.*, d.code, d.name, d.rarity, d.threshold, d.reward_coins").
		Joins("INNER JOIN achievement_definitions d ON d.id = p.achievement_id").
		Where("p.user_id = ?", userID).
		Order("p.updated_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]fiber.Map, 0, len(rows))
	for _, r := range rows {
		out = append(out, fiber.Map{
			"achievement_id":   r.AchievementID,
			"code":             r.Code,
			"name":             r.Name,
			"rarity":           r.Rarity,
			"current_progress": r.CurrentProgress,
			"threshold":        r.Threshold,
			"reward_coins":     r.RewardCoins,
			"is_completed":     r.IsCompleted,
			"completed_at":     r.CompletedAt,
		})
	}
	return out, nil
}

// ListCompleted returns only completed achievements, newest first.
func (s *AchievementService) ListCompleted(userID string) ([]fiber.Map, error) {
	all, err := s.GetProgress(userID)
	if err != nil {
		return nil, err
	}
	completed := make([]fiber.Map, 0, len(all))
	for _, row := range all {
		if done, ok := row["is_completed"].(bool); ok && done {
			completed = append(completed, row)
		}
	}
	return completed, nil
}

// --- Admin Handlers ---

// CreateAchievement creates a catalog entry (Admin only). The code is
// derived from the name when not supplied.
func (s *AchievementService) CreateAchievement(c *fiber.Ctx) error {
	var req struct {
		Code         string                   `json:"code"`
		Name         string                   `json:"name"`
		Description  string                   `json:"description"`
		IconURL      string                   `json:"icon_url"`
		Rarity       models.AchievementRarity `json:"rarity"`
		Metric       string                   `json:"metric"`
		Kind         models.ConditionKind     `json:"kind"`
		Threshold    int64                    `json:"threshold"`
		RewardCoins  int64                    `json:"reward_coins"`
		RewardPoints int64                    `json:"reward_points"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" || req.Metric == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and metric are required"})
	}
	if req.Threshold < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "threshold must be at least 1"})
	}
	if req.Kind != models.ConditionKindCounter && req.Kind != models.ConditionKindSnapshot {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind must be counter or snapshot"})
	}
	if req.RewardCoins < 0 || req.RewardPoints < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rewards cannot be negative"})
	}

	code := req.Code
	if code == "" {
		code = strings.ReplaceAll(slug.Make(req.Name), "-", "_")
	}
	rarity := req.Rarity
	if rarity == "" {
		rarity = models.RarityCommon
	}

	def := models.AchievementDefinition{
		ID:           uuid.NewString(),
		Code:         code,
		Name:         req.Name,
		Description:  req.Description,
		IconURL:      req.IconURL,
		Rarity:       rarity,
		Metric:       req.Metric,
		Kind:         req.Kind,
		Threshold:    req.Threshold,
		RewardCoins:  req.RewardCoins,
		RewardPoints: req.RewardPoints,
		IsActive:     true,
	}
	if err := s.DB.Create(&def).Error; err != nil {
		log.Printf("DB Error creating achievement: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create achievement"})
	}
	return c.Status(fiber.StatusCreated).JSON(def)
}

// UpdateAchievement edits display fields, reward payload, or active flag
// (Admin only). The condition itself is immutable once users have
// progress against it; create a new achievement instead.
func (s *AchievementService) UpdateAchievement(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid achievement ID"})
	}

	var def models.AchievementDefinition
	if err := s.DB.First(&def, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Achievement not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Name         *string                   `json:"name"`
		Description  *string                   `json:"description"`
		IconURL      *string                   `json:"icon_url"`
		Rarity       *models.AchievementRarity `json:"rarity"`
		RewardCoins  *int64                    `json:"reward_coins"`
		RewardPoints *int64                    `json:"reward_points"`
		IsActive     *bool                     `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Name != nil {
		def.Name = *req.Name
	}
	if req.Description != nil {
		def.Description = *req.Description
	}
	if req.IconURL != nil {
		def.IconURL = *req.IconURL
	}
	if req.Rarity != nil {
		def.Rarity = *req.Rarity
	}
	if req.RewardCoins != nil {
		if *req.RewardCoins < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rewards cannot be negative"})
		}
		def.RewardCoins = *req.RewardCoins
	}
	if req.RewardPoints != nil {
		if *req.RewardPoints < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rewards cannot be negative"})
		}
		def.RewardPoints = *req.RewardPoints
	}
	if req.IsActive != nil {
		def.IsActive = *req.IsActive
	}

	if err := s.DB.Save(&def).Error; err != nil {
		log.Printf("DB Error updating achievement: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update achievement"})
	}
	return c.JSON(def)
}

// ListAchievements returns the full catalog (Admin only).
func (s *AchievementService) ListAchievements(c *fiber.Ctx) error {
	var defs []models.AchievementDefinition
	if err := s.DB.Order("created_at ASC").Find(&defs).Error; err != nil {
		log.Printf("DB Error fetching achievements: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch achievements"})
	}
	return c.JSON(defs)
}
