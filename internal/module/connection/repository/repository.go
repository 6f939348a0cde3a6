package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fincoach/internal/module/connection/domain"
	"fincoach/internal/shared"
)

type ConnectionRepository interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentConnection, error)
	// GetByIDForUpdate takes a row lock so concurrent sync/allocation tasks
	// for the same connection serialize at the database.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.PaymentConnection, error)
	GetByUserAndName(ctx context.Context, userID uuid.UUID, name string) (*domain.PaymentConnection, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PaymentConnection, error)
	ListConnected(ctx context.Context) ([]domain.PaymentConnection, error)
	Create(ctx context.Context, conn *domain.PaymentConnection) error
	Save(ctx context.Context, conn *domain.PaymentConnection) error
	SaveTx(ctx context.Context, tx *gorm.DB, conn *domain.PaymentConnection) error
}

type connectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.PaymentConnection, error) {
	var conn domain.PaymentConnection
	err := r.db.WithContext(ctx).First(&conn, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound.WithDetails("connection %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &conn, nil
}

func (r *connectionRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.PaymentConnection, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		// sqlite serializes writers on its own and rejects FOR UPDATE
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var conn domain.PaymentConnection
	err := q.First(&conn, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound.WithDetails("connection %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock connection: %w", err)
	}
	return &conn, nil
}

// GetByUserAndName matches regardless of status; reconnect flows reuse the
// disconnected row to keep its allocation ledger.
func (r *connectionRepository) GetByUserAndName(ctx context.Context, userID uuid.UUID, name string) (*domain.PaymentConnection, error) {
	var conn domain.PaymentConnection
	err := r.db.WithContext(ctx).First(&conn, "user_id = ? AND name = ?", userID, name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound.WithDetails("connection %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection by name: %w", err)
	}
	return &conn, nil
}

func (r *connectionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PaymentConnection, error) {
	var conns []domain.PaymentConnection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return conns, nil
}

func (r *connectionRepository) ListConnected(ctx context.Context) ([]domain.PaymentConnection, error) {
	var conns []domain.PaymentConnection
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusConnected).
		Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("list connected: %w", err)
	}
	return conns, nil
}

func (r *connectionRepository) Create(ctx context.Context, conn *domain.PaymentConnection) error {
	if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
		return fmt.Errorf("create connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) Save(ctx context.Context, conn *domain.PaymentConnection) error {
	return r.SaveTx(ctx, r.db, conn)
}

func (r *connectionRepository) SaveTx(ctx context.Context, tx *gorm.DB, conn *domain.PaymentConnection) error {
	if err := tx.WithContext(ctx).Save(conn).Error; err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	return nil
}
