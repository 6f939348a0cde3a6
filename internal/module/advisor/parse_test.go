package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincoach/internal/shared"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "Here you go:\n```json\n{\"a\":1}\n```\nenjoy", `{"a":1}`},
		{"plain_fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose_around", `The plan is {"a":1} as requested.`, `{"a":1}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := extractJSON(c.in)
			require.NoError(t, err)
			assert.JSONEq(t, c.want, got)
		})
	}

	_, err := extractJSON("sorry, I cannot help with that")
	assert.Error(t, err)
}

func TestParseAllocationPlanClampsEnvelope(t *testing.T) {
	reply := "```json\n" + `{
		"emergency_fund_percent": 40,
		"goal_allocations": [
			{"goal_id": "g1", "percent": 90},
			{"goal_id": "g2", "percent": -5},
			{"goal_id": "", "percent": 10}
		],
		"reasoning": "front-load the laptop goal"
	}` + "\n```"

	plan, err := parseAllocationPlan(reply)
	require.NoError(t, err)

	assert.Equal(t, 15.0, plan.EmergencyPercent)
	require.Len(t, plan.GoalShares, 2, "nameless share is dropped")
	assert.Equal(t, 25.0, plan.GoalShares[0].Percent)
	assert.Equal(t, 0.0, plan.GoalShares[1].Percent)
	assert.Equal(t, PlanSourceLLM, plan.Source)
	assert.Equal(t, "front-load the laptop goal", plan.Reasoning)
}

func TestParseAllocationPlanDefaultReasoning(t *testing.T) {
	plan, err := parseAllocationPlan(`{"emergency_fund_percent": 10, "goal_allocations": []}`)
	require.NoError(t, err)
	assert.Equal(t, "LLM-determined allocation", plan.Reasoning)
}

func TestParseAllocationPlanGarbage(t *testing.T) {
	_, err := parseAllocationPlan("not json at all")
	assert.Error(t, err)
}

func TestParseRefinedTargetsBounds(t *testing.T) {
	base := BaseTargets{
		EmergencyFund: decimal.NewFromInt(94500),
		SavingsGoal1:  decimal.NewFromInt(60000),
		SavingsGoal2:  decimal.NewFromInt(45000),
	}
	profile := TargetProfile{
		AvgMonthlyIncome:   decimal.NewFromInt(30000),
		AvgMonthlyExpenses: decimal.NewFromInt(21000),
	}

	reply := `{"emergency_fund": 999999, "savings_goal_1": 100, "savings_goal_2": 50000, "reasoning": "adjusted for gig volatility"}`
	got, err := parseRefinedTargets(reply, base, profile)
	require.NoError(t, err)

	// ceiling: 12 months of expenses
	assert.True(t, got.EmergencyFund.Equal(decimal.NewFromInt(252000)), got.EmergencyFund.String())
	// floor: 5k
	assert.True(t, got.SavingsGoal1.Equal(decimal.NewFromInt(5000)), got.SavingsGoal1.String())
	// within [3k, 6 months income]
	assert.True(t, got.SavingsGoal2.Equal(decimal.NewFromInt(50000)), got.SavingsGoal2.String())
	assert.Equal(t, "adjusted for gig volatility", got.Reasoning)
}

func TestParseRefinedTargetsMissingFieldsFallBack(t *testing.T) {
	base := BaseTargets{
		EmergencyFund: decimal.NewFromInt(94500),
		SavingsGoal1:  decimal.NewFromInt(60000),
		SavingsGoal2:  decimal.NewFromInt(45000),
	}
	profile := TargetProfile{
		AvgMonthlyIncome:   decimal.NewFromInt(30000),
		AvgMonthlyExpenses: decimal.NewFromInt(21000),
	}

	got, err := parseRefinedTargets(`{"reasoning": "keep the formula"}`, base, profile)
	require.NoError(t, err)
	assert.True(t, got.EmergencyFund.Equal(base.EmergencyFund))
	assert.True(t, got.SavingsGoal1.Equal(base.SavingsGoal1))
	assert.True(t, got.SavingsGoal2.Equal(base.SavingsGoal2))
}

func TestMemoryCooldown(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, shared.IST)
	clock := &stepClock{t: now}
	cd := NewMemoryCooldown(clock)
	ctx := context.Background()

	assert.False(t, cd.Active(ctx))
	cd.Trip(ctx, 5*time.Minute)
	assert.True(t, cd.Active(ctx))

	clock.t = now.Add(6 * time.Minute)
	assert.False(t, cd.Active(ctx))
}

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }
