package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	connectionrepo "fincoach/internal/module/connection/repository"
	transactionrepo "fincoach/internal/module/transaction/repository"
	userdomain "fincoach/internal/module/user/domain"
	"fincoach/internal/shared"
)

var defaultBudget = decimal.NewFromInt(5000)

// BudgetContext is the month-to-date spending picture used for budget
// notifications.
type BudgetContext struct {
	MonthKey     string
	MonthIncome  decimal.Decimal
	MonthSpent   decimal.Decimal
	Budget       decimal.Decimal
	BudgetSource string
}

func (b *BudgetContext) WarningThreshold() decimal.Decimal {
	return b.Budget.Mul(decimal.NewFromFloat(0.9))
}

// budgetReader computes the monthly budget context from the manual ledger
// plus everything visible through connections.
type budgetReader struct {
	conns connectionrepo.ConnectionRepository
	txns  transactionrepo.TransactionRepository
}

// MonthlyBudgetContext aggregates the IST month containing at. The budget
// falls back from the user's configured budget to 40% of month income to a
// flat default.
func (r *budgetReader) MonthlyBudgetContext(ctx context.Context, user *userdomain.User, at time.Time) (*BudgetContext, error) {
	ist := at.In(shared.IST)
	monthStart := time.Date(ist.Year(), ist.Month(), 1, 0, 0, 0, 0, shared.IST)
	monthEnd := monthStart.AddDate(0, 1, 0)

	income := decimal.Zero
	spent := decimal.Zero

	manual, err := r.txns.ListMonth(ctx, user.ID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}
	for _, t := range manual {
		if t.IsIncome() {
			income = income.Add(t.Amount)
		} else if t.IsExpense() {
			spent = spent.Add(t.Amount)
		}
	}

	conns, err := r.conns.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range conns {
		if c.Payload == nil {
			continue
		}
		for _, t := range c.Payload.LiftedTransactions() {
			ts := t.Timestamp.Time
			if ts.Before(monthStart) || !ts.Before(monthEnd) {
				continue
			}
			switch {
			case t.IsCredit() && t.Amount.IsPositive():
				income = income.Add(t.Amount)
			case t.IsDebit() && t.Amount.IsPositive():
				spent = spent.Add(t.Amount)
			}
		}
	}

	bctx := &BudgetContext{
		MonthKey:    shared.MonthKeyIST(at),
		MonthIncome: income,
		MonthSpent:  spent,
	}
	switch {
	case user.MonthlyBudget != nil && user.MonthlyBudget.IsPositive():
		bctx.Budget = *user.MonthlyBudget
		bctx.BudgetSource = "user"
	case income.IsPositive():
		bctx.Budget = income.Mul(decimal.NewFromFloat(0.4)).Round(2)
		bctx.BudgetSource = "income"
	default:
		bctx.Budget = defaultBudget
		bctx.BudgetSource = "default"
	}
	return bctx, nil
}

// crossed reports whether the running spend crossed the threshold within
// this batch: it was below before and at-or-above after.
func crossed(before, after, threshold decimal.Decimal) bool {
	return before.LessThan(threshold) && after.GreaterThanOrEqual(threshold)
}

// inferCategory guesses a spending category from the description. Purely
// cosmetic, used in notification emails.
func inferCategory(description string) string {
	lower := strings.ToLower(description)
	containsAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	switch {
	case containsAny("swiggy", "zomato", "restaurant", "food", "cafe"):
		return "Food & Dining"
	case containsAny("uber", "ola", "metro", "fuel", "petrol"):
		return "Transport"
	case containsAny("amazon", "flipkart", "myntra", "shopping"):
		return "Shopping"
	case containsAny("rent", "electricity", "recharge", "bill", "dth"):
		return "Bills & Utilities"
	case containsAny("movie", "netflix", "spotify", "game"):
		return "Entertainment"
	default:
		return "Other"
	}
}
