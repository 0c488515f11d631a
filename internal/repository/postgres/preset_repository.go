package postgres

import (
	"context"
	"fmt"

	"calcReco/business/recommendation"
	"calcReco/domain"

	"gorm.io/gorm"
)

const defaultPresetPageSize = 100

type PresetRepository struct {
	DB *gorm.DB
}

var _ recommendation.PresetReader = (*PresetRepository)(nil)

func NewPresetRepository(db *gorm.DB) *PresetRepository {
	return &PresetRepository{DB: db}
}

// GetPresets lists saved presets, favorites and most used first.
func (r *PresetRepository) GetPresets(ctx context.Context, q domain.PresetQuery) (domain.PresetPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.PresetPage{}, fmt.Errorf("context error: %w", err)
	}

	if q.Limit <= 0 {
		q.Limit = defaultPresetPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	base := r.DB.WithContext(ctx).
		Model(&domain.Preset{}).
		Where("user_id = ?", q.UserID)
	if q.CalculatorType != "" {
		base = base.Where("calculator_type = ?", q.CalculatorType)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return domain.PresetPage{}, fmt.Errorf("failed to count calculator_presets: %w", err)
	}

	var presets []domain.Preset
	if err := base.Session(&gorm.Session{}).
		Order("is_favorite DESC").
		Order("usage_count DESC").
		Order("id ASC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&presets).Error; err != nil {
		return domain.PresetPage{}, fmt.Errorf("failed to query calculator_presets: %w", err)
	}

	return domain.PresetPage{
		Presets: presets,
		Total:   total,
		HasMore: int64(q.Offset+len(presets)) < total,
	}, nil
}
