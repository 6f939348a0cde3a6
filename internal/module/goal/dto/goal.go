package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fincoach/internal/module/goal/domain"
)

type CreateGoalRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Target      decimal.Decimal `json:"target" binding:"required"`
	Deadline    *time.Time      `json:"deadline"`
}

type UpdateGoalRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Target      *decimal.Decimal `json:"target"`
	Saved       *decimal.Decimal `json:"saved"`
	Deadline    *time.Time       `json:"deadline"`
}

type GoalResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Type            string          `json:"type"`
	Target          decimal.Decimal `json:"target"`
	Saved           decimal.Decimal `json:"saved"`
	Remaining       decimal.Decimal `json:"remaining"`
	ProgressPercent float64         `json:"progress_percent"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
	IsCompleted     bool            `json:"is_completed"`
	CreatedAt       time.Time       `json:"created_at"`
}

func ToGoalResponse(g *domain.Goal) GoalResponse {
	resp := GoalResponse{
		ID:              g.ID,
		Name:            g.Name,
		Description:     g.Description,
		Type:            g.Type,
		Target:          g.Target,
		Saved:           g.Saved,
		Remaining:       g.Remaining(),
		ProgressPercent: g.ProgressPercent(),
		IsCompleted:     g.IsCompleted,
		CreatedAt:       g.CreatedAt,
	}
	if g.Deadline != nil {
		if _, ok := g.DaysUntilDeadline(g.CreatedAt); ok {
			resp.Deadline = g.Deadline
		}
	}
	return resp
}
