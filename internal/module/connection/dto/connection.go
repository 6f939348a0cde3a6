package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"fincoach/internal/module/connection/domain"
)

type CreateConnectionRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
	Icon string `json:"icon"`
}

type UpdateConnectionRequest struct {
	Icon *string           `json:"icon"`
	Type *string           `json:"type"`
	Meta datatypes.JSONMap `json:"meta"`
}

// maxTransactionsInResponse caps the payload echoed back to clients; the
// full history stays in storage.
const maxTransactionsInResponse = 200

type ConnectionResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	Icon      string           `json:"icon,omitempty"`
	Status    string           `json:"status"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
	LastSync  *time.Time       `json:"last_sync,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Payload   *PayloadResponse `json:"payload,omitempty"`
}

type PayloadResponse struct {
	AccountID      string                            `json:"account_id,omitempty"`
	Transactions   []domain.SourceTransaction        `json:"transactions"`
	MonthlySummary map[string]domain.MonthTotals     `json:"monthly_summary,omitempty"`
	AllocatedCount int                               `json:"allocated_count"`
}

type SyncResponse struct {
	Connection    ConnectionResponse `json:"connection"`
	NewIncome     int                `json:"new_income"`
	NewExpenses   int                `json:"new_expenses"`
	SnapshotStale bool               `json:"snapshot_stale"`
}

func ToConnectionResponse(c *domain.PaymentConnection, includePayload bool) ConnectionResponse {
	resp := ConnectionResponse{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Icon:      c.Icon,
		Status:    c.Status,
		LastSync:  c.LastSync,
		CreatedAt: c.CreatedAt,
	}
	if c.Payload != nil {
		resp.Balance = c.Payload.Balance
		if includePayload {
			txns := c.Payload.Transactions
			if len(txns) > maxTransactionsInResponse {
				txns = txns[:maxTransactionsInResponse]
			}
			resp.Payload = &PayloadResponse{
				AccountID:      c.Payload.AccountID,
				Transactions:   txns,
				MonthlySummary: c.Payload.MonthlySummary,
				AllocatedCount: len(c.Payload.AllocatedTransactionIDs),
			}
		}
	}
	return resp
}
