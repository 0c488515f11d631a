//go:build !integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"calcReco/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "reco.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.HistoryRecord{},
		&domain.Pattern{},
		&domain.Preset{},
		&domain.Preferences{},
	))
	return db
}

func seedHistory(t *testing.T, db *gorm.DB) {
	t.Helper()

	records := []domain.HistoryRecord{
		{ID: "h1", UserID: "u1", CalculatorType: "laser-cutting-cost", Inputs: datatypes.JSONMap{"material": "steel"}, Outputs: datatypes.JSONMap{"cost": 50}, Timestamp: baseTime},
		{ID: "h2", UserID: "u1", CalculatorType: "laser-cutting-cost", Inputs: datatypes.JSONMap{"material": "steel"}, Outputs: datatypes.JSONMap{"cost": 50}, Timestamp: baseTime.Add(time.Hour)},
		{ID: "h3", UserID: "u1", CalculatorType: "beam", Inputs: datatypes.JSONMap{"load": 3}, Timestamp: baseTime.Add(2 * time.Hour)},
		{ID: "h4", UserID: "u2", CalculatorType: "beam", Inputs: datatypes.JSONMap{"load": 4}, Timestamp: baseTime.Add(3 * time.Hour)},
	}
	require.NoError(t, db.Create(&records).Error)
}

func TestHistoryRepository_GetHistory(t *testing.T) {
	db := setupDB(t)
	seedHistory(t, db)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	page, err := repo.GetHistory(ctx, domain.HistoryQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Records, 3)
	assert.Equal(t, "h3", page.Records[0].ID, "newest first")
	assert.False(t, page.Pagination.HasMore)
	assert.Equal(t, "steel", page.Records[1].Inputs["material"])

	page, err = repo.GetHistory(ctx, domain.HistoryQuery{UserID: "u1", CalculatorType: "laser-cutting-cost", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "h2", page.Records[0].ID)
	assert.True(t, page.Pagination.HasMore)

	page, err = repo.GetHistory(ctx, domain.HistoryQuery{UserID: "u1", CalculatorType: "laser-cutting-cost", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "h1", page.Records[0].ID)
	assert.False(t, page.Pagination.HasMore)

	page, err = repo.GetHistory(ctx, domain.HistoryQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, int64(0), page.Total)
}

func TestHistoryRepository_CancelledContext(t *testing.T) {
	repo := NewHistoryRepository(setupDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetHistory(ctx, domain.HistoryQuery{UserID: "u1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPatternRepository_AnalyzeUserPatterns(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&[]domain.Pattern{
		{ID: "p1", UserID: "u1", Type: domain.PatternParameterPreference, CalculatorType: "beam", Frequency: 2, LastSeen: baseTime},
		{ID: "p2", UserID: "u1", Type: domain.PatternCalculatorSequence, CalculatorType: "beam",
			Parameters: datatypes.JSONMap{"from": "beam", "to": "cost"}, Frequency: 7, LastSeen: baseTime},
		{ID: "p3", UserID: "u2", Type: domain.PatternMaterialPreference, Frequency: 9, LastSeen: baseTime},
	}).Error)

	got, err := NewPatternRepository(db).AnalyzeUserPatterns(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].ID)
	assert.Equal(t, "cost", got[0].Parameters["to"])
}

func TestPresetRepository_GetPresets(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&[]domain.Preset{
		{ID: "a", UserID: "u1", Name: "Thin", CalculatorType: "laser-cutting-cost", UsageCount: 1, UpdatedAt: baseTime},
		{ID: "b", UserID: "u1", Name: "Thick", CalculatorType: "laser-cutting-cost", UsageCount: 8, UpdatedAt: baseTime},
		{ID: "c", UserID: "u1", Name: "Beam", CalculatorType: "beam", IsFavorite: true, UpdatedAt: baseTime},
		{ID: "d", UserID: "u2", Name: "Other", CalculatorType: "beam", UpdatedAt: baseTime},
	}).Error)
	repo := NewPresetRepository(db)
	ctx := context.Background()

	page, err := repo.GetPresets(ctx, domain.PresetQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Presets, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{page.Presets[0].ID, page.Presets[1].ID, page.Presets[2].ID})

	page, err = repo.GetPresets(ctx, domain.PresetQuery{UserID: "u1", CalculatorType: "laser-cutting-cost", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Presets, 1)
	assert.Equal(t, "b", page.Presets[0].ID)
}

func TestPreferencesRepository_GetPreferences(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&domain.Preferences{
		UserID:             "u1",
		PreferredMaterials: datatypes.JSONSlice[string]{"steel"},
		DisabledTypes:      datatypes.JSONSlice[string]{"workflow"},
		MaxRecommendations: 3,
		UpdatedAt:          baseTime,
	}).Error)
	repo := NewPreferencesRepository(db)
	ctx := context.Background()

	prefs, err := repo.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, []string{"steel"}, []string(prefs.PreferredMaterials))
	assert.Equal(t, []string{"workflow"}, []string(prefs.DisabledTypes))
	assert.Equal(t, 3, prefs.MaxRecommendations)

	prefs, err = repo.GetPreferences(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, prefs)
}
