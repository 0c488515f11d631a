package postgres

import (
	"context"
	"errors"
	"fmt"

	"calcReco/business/recommendation"
	"calcReco/domain"

	"gorm.io/gorm"
)

type PreferencesRepository struct {
	DB *gorm.DB
}

var _ recommendation.PreferencesReader = (*PreferencesRepository)(nil)

func NewPreferencesRepository(db *gorm.DB) *PreferencesRepository {
	return &PreferencesRepository{DB: db}
}

// GetPreferences returns nil, nil when the user never saved preferences.
func (r *PreferencesRepository) GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var prefs domain.Preferences
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user_preferences: %w", err)
	}

	return &prefs, nil
}
