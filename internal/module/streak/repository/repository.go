package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fincoach/internal/module/streak/domain"
	"fincoach/internal/shared"
)

type StreakRepository interface {
	Get(ctx context.Context, userID uuid.UUID, streakType string) (*domain.UserStreak, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.UserStreak, error)
	Create(ctx context.Context, streak *domain.UserStreak) error
	Save(ctx context.Context, streak *domain.UserStreak) error
}

type streakRepository struct {
	db *gorm.DB
}

func NewStreakRepository(db *gorm.DB) StreakRepository {
	return &streakRepository{db: db}
}

func (r *streakRepository) Get(ctx context.Context, userID uuid.UUID, streakType string) (*domain.UserStreak, error) {
	var streak domain.UserStreak
	err := r.db.WithContext(ctx).
		First(&streak, "user_id = ? AND streak_type = ?", userID, streakType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound.WithDetails("streak %s/%s", userID, streakType)
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return &streak, nil
}

func (r *streakRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.UserStreak, error) {
	var streaks []domain.UserStreak
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&streaks).Error; err != nil {
		return nil, fmt.Errorf("list streaks: %w", err)
	}
	return streaks, nil
}

func (r *streakRepository) Create(ctx context.Context, streak *domain.UserStreak) error {
	if err := r.db.WithContext(ctx).Create(streak).Error; err != nil {
		return fmt.Errorf("create streak: %w", err)
	}
	return nil
}

func (r *streakRepository) Save(ctx context.Context, streak *domain.UserStreak) error {
	if err := r.db.WithContext(ctx).Save(streak).Error; err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}
