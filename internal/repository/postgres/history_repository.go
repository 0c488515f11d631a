package postgres

import (
	"context"
	"fmt"

	"calcReco/business/recommendation"
	"calcReco/domain"

	"gorm.io/gorm"
)

const defaultHistoryPageSize = 50

type HistoryRepository struct {
	DB *gorm.DB
}

var _ recommendation.HistoryReader = (*HistoryRepository)(nil)

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{
		DB: db,
	}
}

// GetHistory returns one page of a user's calculations, newest first.
// An empty UserID selects the anonymous segment.
func (r *HistoryRepository) GetHistory(ctx context.Context, q domain.HistoryQuery) (domain.HistoryPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.HistoryPage{}, fmt.Errorf("context error: %w", err)
	}

	if q.Limit <= 0 {
		q.Limit = defaultHistoryPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	base := r.DB.WithContext(ctx).
		Model(&domain.HistoryRecord{}).
		Where("user_id = ?", q.UserID)
	if q.CalculatorType != "" {
		base = base.Where("calculator_type = ?", q.CalculatorType)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return domain.HistoryPage{}, fmt.Errorf("failed to count calculation_history: %w", err)
	}

	var records []domain.HistoryRecord
	if err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id ASC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&records).Error; err != nil {
		return domain.HistoryPage{}, fmt.Errorf("failed to query calculation_history: %w", err)
	}

	return domain.HistoryPage{
		Records: records,
		Total:   total,
		Pagination: domain.Pagination{
			Limit:   q.Limit,
			Offset:  q.Offset,
			HasMore: int64(q.Offset+len(records)) < total,
		},
	}, nil
}
