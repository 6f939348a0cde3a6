package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// extractJSON pulls the first JSON object out of an LLM reply, tolerating
// markdown code fences and surrounding prose.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if strings.Contains(text, "```") {
		for _, part := range strings.Split(text, "```") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
				text = part
				break
			}
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return text[start : end+1], nil
}

type rawAllocationPlan struct {
	EmergencyFundPercent float64 `json:"emergency_fund_percent"`
	GoalAllocations      []struct {
		GoalID  string  `json:"goal_id"`
		Percent float64 `json:"percent"`
	} `json:"goal_allocations"`
	Reasoning string `json:"reasoning"`
}

// parseAllocationPlan decodes and normalizes an allocation reply. The
// envelope is non-negotiable: whatever the model said, emergency lands in
// [0,15] and each goal share in [0,25].
func parseAllocationPlan(text string) (*AllocationPlan, error) {
	obj, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var raw rawAllocationPlan
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("decode allocation plan: %w", err)
	}

	plan := &AllocationPlan{
		EmergencyPercent: clampPercent(raw.EmergencyFundPercent, 15),
		Reasoning:        raw.Reasoning,
		Source:           PlanSourceLLM,
	}
	if plan.Reasoning == "" {
		plan.Reasoning = "LLM-determined allocation"
	}
	for _, ga := range raw.GoalAllocations {
		if ga.GoalID == "" {
			continue
		}
		plan.GoalShares = append(plan.GoalShares, GoalShare{
			GoalID:  ga.GoalID,
			Percent: clampPercent(ga.Percent, 25),
		})
	}
	return plan, nil
}

func clampPercent(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

type rawRefinedTargets struct {
	EmergencyFund json.Number `json:"emergency_fund"`
	SavingsGoal1  json.Number `json:"savings_goal_1"`
	SavingsGoal2  json.Number `json:"savings_goal_2"`
	Reasoning     string      `json:"reasoning"`
}

// parseRefinedTargets decodes a target-refinement reply and clamps it to the
// hard bounds: floors of 10k/5k/3k, ceilings of 12 months expenses for the
// emergency fund and 6 months income for savings goals.
func parseRefinedTargets(text string, base BaseTargets, profile TargetProfile) (*BaseTargets, error) {
	obj, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var raw rawRefinedTargets
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("decode refined targets: %w", err)
	}

	maxEmergency := profile.AvgMonthlyExpenses.Mul(decimal.NewFromInt(12))
	maxSavings := profile.AvgMonthlyIncome.Mul(decimal.NewFromInt(6))

	out := &BaseTargets{
		EmergencyFund: clampAmount(numberOr(raw.EmergencyFund, base.EmergencyFund), decimal.NewFromInt(10000), maxEmergency),
		SavingsGoal1:  clampAmount(numberOr(raw.SavingsGoal1, base.SavingsGoal1), decimal.NewFromInt(5000), maxSavings),
		SavingsGoal2:  clampAmount(numberOr(raw.SavingsGoal2, base.SavingsGoal2), decimal.NewFromInt(3000), maxSavings),
		Reasoning:     raw.Reasoning,
	}
	if out.Reasoning == "" {
		out.Reasoning = "LLM refinement applied"
	}
	return out, nil
}

func numberOr(n json.Number, fallback decimal.Decimal) decimal.Decimal {
	if n.String() == "" {
		return fallback
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return fallback
	}
	return d
}

func clampAmount(v, floor, ceil decimal.Decimal) decimal.Decimal {
	if ceil.IsPositive() && v.GreaterThan(ceil) {
		v = ceil
	}
	if v.LessThan(floor) {
		v = floor
	}
	return v.Round(2)
}
