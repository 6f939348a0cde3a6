package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fincoach/internal/module/connection/domain"
	"fincoach/internal/module/connection/dto"
	"fincoach/internal/module/connection/repository"
	"fincoach/internal/shared"
)

// SyncOutcome is what one sync pass produced: the refreshed connection plus
// the diffs downstream tasks feed on. PrevLastSync is the watermark as it
// stood before this pass.
type SyncOutcome struct {
	Connection   *domain.PaymentConnection
	PrevLastSync *time.Time
	NewIncome    []domain.SourceTransaction
	NewExpenses  []domain.SourceTransaction
	// SnapshotStale is set when the provider snapshot was missing or
	// unreadable and the persisted payload was reused as-is.
	SnapshotStale bool
}

type ConnectionService interface {
	Create(ctx context.Context, userID uuid.UUID, req dto.CreateConnectionRequest) (*SyncOutcome, error)
	Sync(ctx context.Context, userID, id uuid.UUID) (*SyncOutcome, error)
	Disconnect(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentConnection, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentConnection, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.PaymentConnection, error)
	ListConnected(ctx context.Context) ([]domain.PaymentConnection, error)
	Update(ctx context.Context, userID, id uuid.UUID, req dto.UpdateConnectionRequest) (*domain.PaymentConnection, error)
	AvailableSources() []string
}

type connectionService struct {
	repo      repository.ConnectionRepository
	snapshots SnapshotStore
	clock     shared.Clock
	logger    *zap.Logger
}

func NewConnectionService(
	repo repository.ConnectionRepository,
	snapshots SnapshotStore,
	clock shared.Clock,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:      repo,
		snapshots: snapshots,
		clock:     clock,
		logger:    logger,
	}
}

// Create connects a user to a source. A disconnected row with the same name
// is revived instead of replaced, so the allocation ledger inside its payload
// carries over; an already-connected duplicate is a conflict.
func (s *connectionService) Create(ctx context.Context, userID uuid.UUID, req dto.CreateConnectionRequest) (*SyncOutcome, error) {
	existing, err := s.repo.GetByUserAndName(ctx, userID, req.Name)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	var conn *domain.PaymentConnection
	switch {
	case existing != nil && existing.IsConnected():
		return nil, shared.ErrConflict.WithDetails("connection %q already active", req.Name)
	case existing != nil:
		// 1. Revive the disconnected row.
		existing.Status = domain.StatusConnected
		existing.Type = req.Type
		if req.Icon != "" {
			existing.Icon = req.Icon
		}
		if err := s.repo.Save(ctx, existing); err != nil {
			return nil, err
		}
		conn = existing
		s.logger.Info("connection revived",
			zap.String("user_id", userID.String()),
			zap.String("connection_id", conn.ID.String()),
			zap.String("source", conn.Name))
	default:
		conn = &domain.PaymentConnection{
			UserID: userID,
			Name:   req.Name,
			Type:   req.Type,
			Icon:   req.Icon,
			Status: domain.StatusConnected,
		}
		if err := s.repo.Create(ctx, conn); err != nil {
			return nil, err
		}
		s.logger.Info("connection created",
			zap.String("user_id", userID.String()),
			zap.String("connection_id", conn.ID.String()),
			zap.String("source", conn.Name))
	}

	// 2. Run the initial sync in the same call so the caller gets the diff.
	return s.syncConnection(ctx, conn)
}

func (s *connectionService) Sync(ctx context.Context, userID, id uuid.UUID) (*SyncOutcome, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !conn.IsConnected() {
		return nil, shared.ErrValidation.WithDetails("connection %s is disconnected", id)
	}
	return s.syncConnection(ctx, conn)
}

// syncConnection merges the current snapshot into the stored payload, diffs
// it against the previous watermark and persists the result. The last_sync
// watermark moves even when the snapshot is unreadable so a broken provider
// file cannot wedge the connection.
func (s *connectionService) syncConnection(ctx context.Context, conn *domain.PaymentConnection) (*SyncOutcome, error) {
	now := s.clock.Now()
	prevLastSync := conn.LastSync

	outcome := &SyncOutcome{Connection: conn, PrevLastSync: prevLastSync}

	// 1. Pull the provider's current truth.
	fresh, _, err := s.snapshots.Load(conn.Name)
	switch {
	case err == nil:
		conn.Payload = domain.Merge(conn.Payload, fresh)
	case errors.Is(err, shared.ErrSnapshotMissing) || errors.Is(err, shared.ErrSnapshotInvalid):
		outcome.SnapshotStale = true
		s.logger.Warn("snapshot unavailable, keeping persisted payload",
			zap.String("connection_id", conn.ID.String()),
			zap.String("source", conn.Name),
			zap.Error(err))
	default:
		return nil, fmt.Errorf("load snapshot for %s: %w", conn.Name, err)
	}

	// 2. Diff against the previous watermark.
	outcome.NewIncome = NewIncome(conn.Payload, conn.CreatedAt, prevLastSync, now)
	outcome.NewExpenses = NewExpenses(conn.Payload, prevLastSync, now)

	// 3. Persist payload and move the watermark.
	syncedAt := now
	conn.LastSync = &syncedAt
	if err := s.repo.Save(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("connection synced",
		zap.String("connection_id", conn.ID.String()),
		zap.String("source", conn.Name),
		zap.Int("new_income", len(outcome.NewIncome)),
		zap.Int("new_expenses", len(outcome.NewExpenses)),
		zap.Bool("snapshot_stale", outcome.SnapshotStale))
	return outcome, nil
}

// Disconnect flips the status without touching the payload. The allocation
// ledger must survive for a later reconnect.
func (s *connectionService) Disconnect(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentConnection, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !conn.IsConnected() {
		return conn, nil
	}
	conn.Status = domain.StatusDisconnected
	if err := s.repo.Save(ctx, conn); err != nil {
		return nil, err
	}
	s.logger.Info("connection disconnected",
		zap.String("user_id", userID.String()),
		zap.String("connection_id", id.String()))
	return conn, nil
}

func (s *connectionService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentConnection, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *connectionService) List(ctx context.Context, userID uuid.UUID) ([]domain.PaymentConnection, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *connectionService) ListConnected(ctx context.Context) ([]domain.PaymentConnection, error) {
	return s.repo.ListConnected(ctx)
}

func (s *connectionService) Update(ctx context.Context, userID, id uuid.UUID, req dto.UpdateConnectionRequest) (*domain.PaymentConnection, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Icon != nil {
		conn.Icon = *req.Icon
	}
	if req.Type != nil {
		conn.Type = *req.Type
	}
	if req.Meta != nil {
		conn.Meta = req.Meta
	}
	if err := s.repo.Save(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *connectionService) AvailableSources() []string {
	return s.snapshots.Available()
}
