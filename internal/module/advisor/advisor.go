// Package advisor wraps the LLM that proposes allocation splits and refined
// goal targets. Every caller must survive the advisor being unavailable; the
// allocation engine carries its own formula fallback.
package advisor

import (
	"context"

	"github.com/shopspring/decimal"
)

// GoalSummary is the advisor's view of one active goal. The slice handed to
// ProposeAllocation is pre-sorted most urgent first.
type GoalSummary struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Type              string          `json:"type"`
	Target            decimal.Decimal `json:"target"`
	Saved             decimal.Decimal `json:"saved"`
	Remaining         decimal.Decimal `json:"remaining"`
	ProgressPercent   float64         `json:"progress_percent"`
	DaysUntilDeadline *int            `json:"days_until_deadline"`
	Urgency           string          `json:"urgency"`
}

// AllocationInput is the financial context for one allocation decision.
type AllocationInput struct {
	IncomeAmount       decimal.Decimal
	AvgMonthlyIncome   decimal.Decimal
	AvgMonthlyExpenses decimal.Decimal
	SavingsRatePercent float64
	EmergencyStatus    string
	EmergencyProgress  float64
	Goals              []GoalSummary
}

// GoalShare is one proposed slice of the income.
type GoalShare struct {
	GoalID  string
	Percent float64
}

// AllocationPlan is a normalized advisor proposal. The 40/40/20 envelope is
// enforced before the plan leaves this package: emergency is capped at 15%,
// each goal share at 25%.
type AllocationPlan struct {
	EmergencyPercent float64
	GoalShares       []GoalShare
	Reasoning        string
	Source           string
}

const (
	PlanSourceLLM     = "llm"
	PlanSourceFormula = "formula"
)

// TargetProfile describes the user for goal target refinement.
type TargetProfile struct {
	AvgMonthlyIncome   decimal.Decimal
	AvgMonthlyExpenses decimal.Decimal
	SavingsRatePercent float64
	JobType            string
	Location           string
}

// BaseTargets are the formula-derived goal targets before refinement.
type BaseTargets struct {
	EmergencyFund decimal.Decimal
	SavingsGoal1  decimal.Decimal
	SavingsGoal2  decimal.Decimal
	Reasoning     string
}

type Advisor interface {
	// ProposeAllocation asks for a split of new income. Any error means the
	// caller should use its formula fallback; ErrQuotaExhausted additionally
	// signals a cooldown is now in force.
	ProposeAllocation(ctx context.Context, input AllocationInput) (*AllocationPlan, error)
	// RefineTargets adjusts formula targets to the user's profile, bounded
	// so the result stays within sane multiples of income and expenses.
	RefineTargets(ctx context.Context, base BaseTargets, profile TargetProfile) (*BaseTargets, error)
}
