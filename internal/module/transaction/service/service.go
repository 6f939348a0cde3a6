package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fincoach/internal/module/transaction/domain"
	"fincoach/internal/module/transaction/dto"
	"fincoach/internal/module/transaction/repository"
	"fincoach/internal/shared"
)

type TransactionService interface {
	Create(ctx context.Context, userID uuid.UUID, req dto.CreateTransactionRequest) (*domain.ManualTransaction, error)
	List(ctx context.Context, userID uuid.UUID, txnType string, limit, offset int) ([]domain.ManualTransaction, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type transactionService struct {
	repo   repository.TransactionRepository
	clock  shared.Clock
	logger *zap.Logger
}

func NewTransactionService(repo repository.TransactionRepository, clock shared.Clock, logger *zap.Logger) TransactionService {
	return &transactionService{repo: repo, clock: clock, logger: logger}
}

func (s *transactionService) Create(ctx context.Context, userID uuid.UUID, req dto.CreateTransactionRequest) (*domain.ManualTransaction, error) {
	if !req.Amount.IsPositive() {
		return nil, shared.ErrValidation.WithDetails("amount must be positive")
	}

	occurredAt := s.clock.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	txn := &domain.ManualTransaction{
		UserID:      userID,
		Type:        req.Type,
		Amount:      req.Amount.Round(2),
		Description: req.Description,
		Category:    req.Category,
		OccurredAt:  occurredAt,
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, err
	}
	s.logger.Info("manual transaction recorded",
		zap.String("user_id", userID.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.String("type", txn.Type),
		zap.String("amount", txn.Amount.String()))
	return txn, nil
}

func (s *transactionService) List(ctx context.Context, userID uuid.UUID, txnType string, limit, offset int) ([]domain.ManualTransaction, error) {
	return s.repo.List(ctx, userID, txnType, limit, offset)
}

func (s *transactionService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}
