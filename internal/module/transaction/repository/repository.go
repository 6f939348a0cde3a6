package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fincoach/internal/module/transaction/domain"
	"fincoach/internal/shared"
)

type TransactionRepository interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.ManualTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.ManualTransaction, error)
	List(ctx context.Context, userID uuid.UUID, txnType string, limit, offset int) ([]domain.ManualTransaction, error)
	ListSince(ctx context.Context, userID uuid.UUID, txnType string, since time.Time) ([]domain.ManualTransaction, error)
	ListMonth(ctx context.Context, userID uuid.UUID, monthStart, monthEnd time.Time) ([]domain.ManualTransaction, error)
	Create(ctx context.Context, txn *domain.ManualTransaction) error
	CreateTx(ctx context.Context, tx *gorm.DB, txn *domain.ManualTransaction) error
	SaveTx(ctx context.Context, tx *gorm.DB, txn *domain.ManualTransaction) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.ManualTransaction, error) {
	var txn domain.ManualTransaction
	err := r.db.WithContext(ctx).First(&txn, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound.WithDetails("transaction %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &txn, nil
}

func (r *transactionRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.ManualTransaction, error) {
	q := tx.WithContext(ctx)
	// sqlite serializes writers on its own and rejects FOR UPDATE
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var txn domain.ManualTransaction
	err := q.First(&txn, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound.WithDetails("transaction %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction for update: %w", err)
	}
	return &txn, nil
}

func (r *transactionRepository) List(ctx context.Context, userID uuid.UUID, txnType string, limit, offset int) ([]domain.ManualTransaction, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if txnType != "" {
		q = q.Where("type = ?", txnType)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txns []domain.ManualTransaction
	err := q.Order("occurred_at DESC").Limit(limit).Offset(offset).Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

func (r *transactionRepository) ListSince(ctx context.Context, userID uuid.UUID, txnType string, since time.Time) ([]domain.ManualTransaction, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND occurred_at >= ?", userID, since)
	if txnType != "" {
		q = q.Where("type = ?", txnType)
	}
	var txns []domain.ManualTransaction
	if err := q.Order("occurred_at DESC").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("list transactions since: %w", err)
	}
	return txns, nil
}

func (r *transactionRepository) ListMonth(ctx context.Context, userID uuid.UUID, monthStart, monthEnd time.Time) ([]domain.ManualTransaction, error) {
	var txns []domain.ManualTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, monthStart, monthEnd).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("list month transactions: %w", err)
	}
	return txns, nil
}

func (r *transactionRepository) Create(ctx context.Context, txn *domain.ManualTransaction) error {
	return r.CreateTx(ctx, r.db, txn)
}

func (r *transactionRepository) CreateTx(ctx context.Context, tx *gorm.DB, txn *domain.ManualTransaction) error {
	if err := tx.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) SaveTx(ctx context.Context, tx *gorm.DB, txn *domain.ManualTransaction) error {
	if err := tx.WithContext(ctx).Save(txn).Error; err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&domain.ManualTransaction{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return fmt.Errorf("delete transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound.WithDetails("transaction %s", id)
	}
	return nil
}
