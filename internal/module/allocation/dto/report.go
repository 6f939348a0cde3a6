package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GoalAllocation is one applied slice of an allocation run.
type GoalAllocation struct {
	GoalID    uuid.UUID       `json:"goal_id"`
	GoalName  string          `json:"goal_name"`
	Percent   float64         `json:"percent"`
	Amount    decimal.Decimal `json:"amount"`
	Completed bool            `json:"completed"`
}

// AllocationReport is the record of one allocation run: the numbers actually
// applied plus the advisor's stated reasoning, so both can be surfaced.
type AllocationReport struct {
	UserID         uuid.UUID        `json:"user_id"`
	ConnectionID   *uuid.UUID       `json:"connection_id,omitempty"`
	TotalIncome    decimal.Decimal  `json:"total_income"`
	TotalAllocated decimal.Decimal  `json:"total_allocated"`
	Allocations    []GoalAllocation `json:"allocations"`
	PolicySource   string           `json:"policy_source"`
	Reasoning      string           `json:"reasoning"`
	TransactionIDs []string         `json:"transaction_ids,omitempty"`
	RanAt          time.Time        `json:"ran_at"`
}

func (r *AllocationReport) IsNoOp() bool {
	return len(r.Allocations) == 0
}
