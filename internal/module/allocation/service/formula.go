package service

import (
	"fincoach/internal/module/advisor"
	goaldomain "fincoach/internal/module/goal/domain"
)

// formulaPlan is the deterministic stand-in when the advisor is unavailable:
// 10% to an incomplete emergency fund and 15% to each of the first two
// regular goals. It stays inside the same envelope the advisor is held to.
func formulaPlan(emergency *goaldomain.Goal, regular []*goaldomain.Goal) *advisor.AllocationPlan {
	plan := &advisor.AllocationPlan{
		Reasoning: "Default allocation (policy advisor unavailable)",
		Source:    advisor.PlanSourceFormula,
	}
	if emergency != nil && !emergency.IsCompleted {
		plan.EmergencyPercent = 10
	}
	for i, g := range regular {
		if i >= 2 {
			break
		}
		plan.GoalShares = append(plan.GoalShares, advisor.GoalShare{
			GoalID:  g.ID.String(),
			Percent: 15,
		})
	}
	return plan
}
