package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fincoach/internal/module/goal/domain"
	"fincoach/internal/shared"
)

type GoalRepository interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Goal, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error)
	// ListActive returns incomplete goals ordered by creation, oldest first.
	ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error)
	ListActiveTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]domain.Goal, error)
	Create(ctx context.Context, goal *domain.Goal) error
	Save(ctx context.Context, goal *domain.Goal) error
	SaveTx(ctx context.Context, tx *gorm.DB, goal *domain.Goal) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type goalRepository struct {
	db *gorm.DB
}

func NewGoalRepository(db *gorm.DB) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Goal, error) {
	var goal domain.Goal
	err := r.db.WithContext(ctx).First(&goal, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound.WithDetails("goal %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}

func (r *goalRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error) {
	var goals []domain.Goal
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

func (r *goalRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error) {
	return r.ListActiveTx(ctx, r.db, userID)
}

func (r *goalRepository) ListActiveTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]domain.Goal, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var goals []domain.Goal
	err := q.
		Where("user_id = ? AND is_completed = ?", userID, false).
		Order("created_at ASC").
		Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}
	return goals, nil
}

func (r *goalRepository) Create(ctx context.Context, goal *domain.Goal) error {
	if err := r.db.WithContext(ctx).Create(goal).Error; err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func (r *goalRepository) Save(ctx context.Context, goal *domain.Goal) error {
	return r.SaveTx(ctx, r.db, goal)
}

func (r *goalRepository) SaveTx(ctx context.Context, tx *gorm.DB, goal *domain.Goal) error {
	if err := tx.WithContext(ctx).Save(goal).Error; err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func (r *goalRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&domain.Goal{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return fmt.Errorf("delete goal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound.WithDetails("goal %s", id)
	}
	return nil
}
