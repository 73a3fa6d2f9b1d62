package services

import (
	"sync"
	"testing"

	"radcoin-economy-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAchievement(t *testing.T, svc *AchievementService, def models.AchievementDefinition) models.AchievementDefinition {
	t.Helper()
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.IsActive = true
	require.NoError(t, svc.DB.Create(&def).Error)
	return def
}

func TestEnsureCatalogIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)

	require.NoError(t, svc.EnsureCatalog())
	require.NoError(t, svc.EnsureCatalog())

	var count int64
	require.NoError(t, db.Model(&models.AchievementDefinition{}).Count(&count).Error)
	assert.Equal(t, int64(len(models.DefaultAchievements)), count)
}

func TestCounterProgressAccumulatesAndCompletesOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	def := seedAchievement(t, svc, models.AchievementDefinition{
		Code: "solve_3", Name: "Solve Three", Metric: "cases_solved",
		Kind: models.ConditionKindCounter, Threshold: 3, RewardCoins: 20,
	})

	done, err := svc.RecordEvent("u1", "cases_solved", 2)
	require.NoError(t, err)
	assert.Empty(t, done)

	done, err = svc.RecordEvent("u1", "cases_solved", 1)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "solve_3", done[0].Definition.Code)
	assert.Equal(t, int64(20), done[0].Definition.RewardCoins)

	// Duplicate delivery after completion: no-op, no second completion.
	done, err = svc.RecordEvent("u1", "cases_solved", 5)
	require.NoError(t, err)
	assert.Empty(t, done)

	var prog models.AchievementProgress
	require.NoError(t, db.Where("user_id = ? AND achievement_id = ?", "u1", def.ID).First(&prog).Error)
	assert.True(t, prog.IsCompleted)
	require.NotNil(t, prog.CompletedAt)
	assert.Equal(t, int64(3), prog.CurrentProgress, "progress frozen at completion")
}

func TestSnapshotProgressIsMonotonic(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	def := seedAchievement(t, svc, models.AchievementDefinition{
		Code: "streak_7", Name: "Week Streak", Metric: "login_streak",
		Kind: models.ConditionKindSnapshot, Threshold: 7, RewardCoins: 50,
	})

	_, err := svc.RecordEvent("u1", "login_streak", 5)
	require.NoError(t, err)

	// A broken streak reports a lower value; stored progress must not drop.
	_, err = svc.RecordEvent("u1", "login_streak", 1)
	require.NoError(t, err)

	var prog models.AchievementProgress
	require.NoError(t, db.Where("user_id = ? AND achievement_id = ?", "u1", def.ID).First(&prog).Error)
	assert.Equal(t, int64(5), prog.CurrentProgress)
	assert.False(t, prog.IsCompleted)

	done, err := svc.RecordEvent("u1", "login_streak", 7)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "streak_7", done[0].Definition.Code)
}

func TestRecordEventIgnoresInactiveAndOtherMetrics(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)

	inactive := seedAchievement(t, svc, models.AchievementDefinition{
		Code: "solve_1", Name: "Solve One", Metric: "cases_solved",
		Kind: models.ConditionKindCounter, Threshold: 1, RewardCoins: 10,
	})
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	done, err := svc.RecordEvent("u1", "cases_solved", 1)
	require.NoError(t, err)
	assert.Empty(t, done)

	done, err = svc.RecordEvent("u1", "events_won", 1)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestRecordEventRejectsNegativeValues(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)

	_, err := svc.RecordEvent("u1", "cases_solved", -1)
	assert.Error(t, err)
}

func TestListCompletedFiltersProgress(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	seedAchievement(t, svc, models.AchievementDefinition{
		Code: "solve_1", Name: "Solve One", Metric: "cases_solved",
		Kind: models.ConditionKindCounter, Threshold: 1, RewardCoins: 10,
	})
	seedAchievement(t, svc, models.AchievementDefinition{
		Code: "solve_9", Name: "Solve Nine", Metric: "cases_solved",
		Kind: models.ConditionKindCounter, Threshold: 9, RewardCoins: 90,
	})

	_, err := svc.RecordEvent("u1", "cases_solved", 1)
	require.NoError(t, err)

	all, err := svc.GetProgress("u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := svc.ListCompleted("u1")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "solve_1", completed[0]["code"])
}

func TestConcurrentCounterEventsAreSerialized(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	def := seedAchievement(t, svc, models.AchievementDefinition{
		Code: "solve_10", Name: "Solve Ten", Metric: "cases_solved",
		Kind: models.ConditionKindCounter, Threshold: 10, RewardCoins: 10,
	})

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	completions := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done, err := svc.RecordEvent("u1", "cases_solved", 1)
			assert.NoError(t, err)
			mu.Lock()
			completions += len(done)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var prog models.AchievementProgress
	require.NoError(t, db.Where("user_id = ? AND achievement_id = ?", "u1", def.ID).First(&prog).Error)
	assert.Equal(t, int64(n), prog.CurrentProgress, "no increment may be lost")
	assert.True(t, prog.IsCompleted)
	assert.Equal(t, 1, completions, "completion fires exactly once")
}
