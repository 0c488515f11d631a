package postgres

import (
	"context"
	"fmt"

	"calcReco/business/recommendation"
	"calcReco/domain"

	"gorm.io/gorm"
)

type PatternRepository struct {
	DB *gorm.DB
}

var _ recommendation.PatternRecognizer = (*PatternRepository)(nil)

func NewPatternRepository(db *gorm.DB) *PatternRepository {
	return &PatternRepository{DB: db}
}

// AnalyzeUserPatterns reads the precomputed usage patterns of a user, strongest first.
func (r *PatternRepository) AnalyzeUserPatterns(ctx context.Context, userID string) ([]domain.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var patterns []domain.Pattern
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("frequency DESC").
		Order("last_seen DESC").
		Find(&patterns).Error; err != nil {
		return nil, fmt.Errorf("failed to query usage_patterns: %w", err)
	}

	return patterns, nil
}
