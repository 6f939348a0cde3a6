package service

import (
	"github.com/shopspring/decimal"

	"fincoach/internal/module/advisor"
)

// Default goal names created at bootstrap. The resize pass and the
// missing-goal check match on these.
const (
	DefaultEmergencyName = "Emergency Fund"
	DefaultGoal1Name     = "Savings Goal 1"
	DefaultGoal2Name     = "Savings Goal 2"
)

var (
	expenseRatio   = decimal.NewFromFloat(0.7)
	efMonths       = decimal.NewFromFloat(4.5)
	goal1Months    = decimal.NewFromInt(2)
	goal2Months    = decimal.NewFromFloat(1.5)
	minEmergency   = decimal.NewFromInt(10000)
	minGoal1       = decimal.NewFromInt(5000)
	minGoal2       = decimal.NewFromInt(3000)
	fallbackIncome = decimal.NewFromInt(30000)
)

// BaseTargetsFor derives formula goal targets from average monthly income:
// the emergency fund covers 4.5 months of expenses (expenses taken as 70% of
// income), the savings goals two and one-and-a-half months of income, all
// with hard floors.
func BaseTargetsFor(avgMonthlyIncome decimal.Decimal) advisor.BaseTargets {
	expenses := avgMonthlyIncome.Mul(expenseRatio)
	return advisor.BaseTargets{
		EmergencyFund: decimal.Max(minEmergency, expenses.Mul(efMonths).Round(0)),
		SavingsGoal1:  decimal.Max(minGoal1, avgMonthlyIncome.Mul(goal1Months).Round(0)),
		SavingsGoal2:  decimal.Max(minGoal2, avgMonthlyIncome.Mul(goal2Months).Round(0)),
		Reasoning:     "formula targets from average monthly income",
	}
}

// needsResize reports whether an existing target deviates from the
// recommendation by more than 20% of the recommendation.
func needsResize(current, recommended decimal.Decimal) bool {
	if !recommended.IsPositive() {
		return false
	}
	diff := current.Sub(recommended).Abs()
	return diff.GreaterThan(recommended.Mul(decimal.NewFromFloat(0.2)))
}
