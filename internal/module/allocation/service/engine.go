package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fincoach/internal/module/advisor"
	"fincoach/internal/module/allocation/dto"
	conndomain "fincoach/internal/module/connection/domain"
	connectionrepo "fincoach/internal/module/connection/repository"
	goaldomain "fincoach/internal/module/goal/domain"
	goalrepo "fincoach/internal/module/goal/repository"
	goalservice "fincoach/internal/module/goal/service"
	transactiondomain "fincoach/internal/module/transaction/domain"
	transactionrepo "fincoach/internal/module/transaction/repository"
	"fincoach/internal/shared"
)

// maxGoalsInPrompt bounds how many regular goals the advisor sees.
const maxGoalsInPrompt = 3

// Engine applies income to goals. All goal writes and ledger marking for one
// run happen in a single database transaction; the advisor call happens
// before it so no lock is held across a network round trip.
type Engine interface {
	AllocateFromConnection(ctx context.Context, userID, connID uuid.UUID, incomes []conndomain.SourceTransaction) (*dto.AllocationReport, error)
	AllocateManual(ctx context.Context, userID, txnID uuid.UUID, amount decimal.Decimal) (*dto.AllocationReport, error)
}

type engine struct {
	db      *gorm.DB
	goals   goalrepo.GoalRepository
	conns   connectionrepo.ConnectionRepository
	txns    transactionrepo.TransactionRepository
	goalSvc goalservice.GoalService
	advisor advisor.Advisor
	clock   shared.Clock
	logger  *zap.Logger
}

func NewEngine(
	db *gorm.DB,
	goals goalrepo.GoalRepository,
	conns connectionrepo.ConnectionRepository,
	txns transactionrepo.TransactionRepository,
	goalSvc goalservice.GoalService,
	adv advisor.Advisor,
	clock shared.Clock,
	logger *zap.Logger,
) Engine {
	return &engine{
		db:      db,
		goals:   goals,
		conns:   conns,
		txns:    txns,
		goalSvc: goalSvc,
		advisor: adv,
		clock:   clock,
		logger:  logger,
	}
}

// resolvedShare is a plan entry pinned to a stored goal id, ready to apply
// inside the transaction.
type resolvedShare struct {
	GoalID  uuid.UUID
	Percent float64
}

func (e *engine) AllocateFromConnection(ctx context.Context, userID, connID uuid.UUID, incomes []conndomain.SourceTransaction) (*dto.AllocationReport, error) {
	total := decimal.Zero
	ids := make([]string, 0, len(incomes))
	amounts := make(map[string]decimal.Decimal, len(incomes))
	for _, t := range incomes {
		if !t.Amount.IsPositive() {
			continue
		}
		total = total.Add(t.Amount)
		ids = append(ids, t.ID)
		amounts[t.ID] = t.Amount
	}
	if !total.IsPositive() {
		return e.noOpReport(userID, &connID), nil
	}
	return e.allocate(ctx, userID, &connID, nil, total, ids, amounts)
}

func (e *engine) AllocateManual(ctx context.Context, userID, txnID uuid.UUID, amount decimal.Decimal) (*dto.AllocationReport, error) {
	if !amount.IsPositive() {
		return e.noOpReport(userID, nil), nil
	}
	return e.allocate(ctx, userID, nil, &txnID, amount, []string{txnID.String()}, nil)
}

func (e *engine) allocate(ctx context.Context, userID uuid.UUID, connID, manualTxnID *uuid.UUID, total decimal.Decimal, incomeIDs []string, amounts map[string]decimal.Decimal) (*dto.AllocationReport, error) {
	// 1. Read the current goal picture and decide the plan. Goals may move
	// under us before the transaction; clamping inside the transaction
	// handles that.
	active, err := e.goals.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		e.logger.Info("no active goals, income left unallocated",
			zap.String("user_id", userID.String()))
		return e.noOpReport(userID, connID), nil
	}

	emergency, candidates := partitionGoals(active, e.clock)
	plan := e.decidePlan(ctx, userID, total, emergency, candidates, incomeIDs)
	resolved := e.resolvePlan(plan, emergency, candidates)

	// 2. Apply inside one transaction: goal saves, completion flips and the
	// connection ledger all commit or none do.
	report := &dto.AllocationReport{
		UserID:         userID,
		ConnectionID:   connID,
		TotalIncome:    total,
		PolicySource:   plan.Source,
		Reasoning:      plan.Reasoning,
		TransactionIDs: incomeIDs,
		RanAt:          e.clock.Now(),
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		var conn *conndomain.PaymentConnection
		var manual *transactiondomain.ManualTransaction
		applyTotal := total
		applyIDs := incomeIDs

		if manualTxnID != nil {
			manual, err = e.txns.GetByIDForUpdate(ctx, tx, userID, *manualTxnID)
			if err != nil {
				// a row deleted before the task ran has nothing to allocate
				if errors.Is(err, shared.ErrNotFound) {
					report.TotalIncome = decimal.Zero
					report.TransactionIDs = nil
					return nil
				}
				return err
			}
			if manual.AllocatedAt != nil {
				report.TotalIncome = decimal.Zero
				report.TransactionIDs = nil
				return nil
			}
		}

		if connID != nil {
			conn, err = e.conns.GetByIDForUpdate(ctx, tx, userID, *connID)
			if err != nil {
				return err
			}
			// Re-check the ledger under lock; a concurrent run may have
			// claimed some of these ids already.
			allocated := conn.AllocatedIDs()
			applyIDs = applyIDs[:0:0]
			applyTotal = decimal.Zero
			for _, id := range incomeIDs {
				if allocated.Contains(id) {
					continue
				}
				applyIDs = append(applyIDs, id)
				applyTotal = applyTotal.Add(amounts[id])
			}
			if len(applyIDs) == 0 || !applyTotal.IsPositive() {
				report.TotalIncome = decimal.Zero
				report.TransactionIDs = nil
				return nil
			}
			report.TotalIncome = applyTotal
		}

		goals, err := e.goals.ListActiveTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*goaldomain.Goal, len(goals))
		for i := range goals {
			byID[goals[i].ID] = &goals[i]
		}

		for _, share := range resolved {
			g, ok := byID[share.GoalID]
			if !ok || g.IsCompleted || !g.Target.IsPositive() {
				continue
			}
			raw := applyTotal.Mul(decimal.NewFromFloat(share.Percent)).Div(decimal.NewFromInt(100))
			amount := decimal.Min(raw, g.Remaining()).Round(2)
			if !amount.IsPositive() {
				continue
			}
			g.Saved = g.Saved.Add(amount)
			if g.Saved.GreaterThanOrEqual(g.Target) {
				g.IsCompleted = true
			}
			if err := e.goals.SaveTx(ctx, tx, g); err != nil {
				return err
			}
			report.Allocations = append(report.Allocations, dto.GoalAllocation{
				GoalID:    g.ID,
				GoalName:  g.Name,
				Percent:   share.Percent,
				Amount:    amount,
				Completed: g.IsCompleted,
			})
			report.TotalAllocated = report.TotalAllocated.Add(amount)
		}

		if conn != nil {
			conn.MarkAllocated(applyIDs...)
			if err := e.conns.SaveTx(ctx, tx, conn); err != nil {
				return err
			}
			report.TransactionIDs = applyIDs
		}
		if manual != nil {
			ranAt := e.clock.Now()
			manual.AllocatedAt = &ranAt
			if err := e.txns.SaveTx(ctx, tx, manual); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply allocation: %w", err)
	}

	e.logger.Info("allocation applied",
		zap.String("user_id", userID.String()),
		zap.String("total_income", report.TotalIncome.String()),
		zap.String("total_allocated", report.TotalAllocated.String()),
		zap.String("policy_source", report.PolicySource),
		zap.Int("goals_funded", len(report.Allocations)))
	return report, nil
}

// decidePlan asks the advisor, falling back to the formula split on any
// failure. The failure reason is logged, never surfaced to the user.
func (e *engine) decidePlan(ctx context.Context, userID uuid.UUID, total decimal.Decimal, emergency *goaldomain.Goal, candidates []*goaldomain.Goal, excludeIDs []string) *advisor.AllocationPlan {
	input := e.buildAdvisorInput(ctx, userID, total, emergency, candidates, excludeIDs)
	plan, err := e.advisor.ProposeAllocation(ctx, input)
	if err != nil {
		e.logger.Warn("policy advisor unavailable, using formula split",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return formulaPlan(emergency, candidates)
	}
	return plan
}

func (e *engine) buildAdvisorInput(ctx context.Context, userID uuid.UUID, total decimal.Decimal, emergency *goaldomain.Goal, candidates []*goaldomain.Goal, excludeIDs []string) advisor.AllocationInput {
	now := e.clock.Now()

	avgIncome, err := e.goalSvc.AverageMonthlyIncome(ctx, userID, excludeIDs)
	if err != nil || !avgIncome.IsPositive() {
		avgIncome = total.Mul(decimal.NewFromInt(30))
	}
	avgExpenses := avgIncome.Mul(decimal.NewFromFloat(0.7))

	savingsRate := 20.0
	if avgIncome.IsPositive() {
		r, _ := avgIncome.Sub(avgExpenses).Div(avgIncome).Mul(decimal.NewFromInt(100)).Float64()
		savingsRate = r
	}

	input := advisor.AllocationInput{
		IncomeAmount:       total,
		AvgMonthlyIncome:   avgIncome,
		AvgMonthlyExpenses: avgExpenses,
		SavingsRatePercent: savingsRate,
		EmergencyStatus:    "not_started",
	}

	if emergency != nil {
		input.EmergencyProgress = emergency.ProgressPercent()
		switch {
		case input.EmergencyProgress >= 100:
			input.EmergencyStatus = "completed"
		case input.EmergencyProgress >= 50:
			input.EmergencyStatus = "halfway"
		case input.EmergencyProgress > 0:
			input.EmergencyStatus = "in_progress"
		}
	}

	summarize := func(g *goaldomain.Goal) advisor.GoalSummary {
		s := advisor.GoalSummary{
			ID:              g.ID.String(),
			Name:            g.Name,
			Type:            g.Type,
			Target:          g.Target,
			Saved:           g.Saved,
			Remaining:       g.Remaining(),
			ProgressPercent: g.ProgressPercent(),
			Urgency:         g.UrgencyAt(now).String(),
		}
		if days, ok := g.DaysUntilDeadline(now); ok {
			s.DaysUntilDeadline = &days
		}
		return s
	}

	if emergency != nil {
		input.Goals = append(input.Goals, summarize(emergency))
	}
	for i, g := range candidates {
		if i >= maxGoalsInPrompt {
			break
		}
		input.Goals = append(input.Goals, summarize(g))
	}
	return input
}

// resolvePlan turns an advisor plan into concrete goal ids. The emergency
// percent binds to the canonical emergency goal; goal shares resolve through
// the matching ladder against the urgency-sorted candidates.
func (e *engine) resolvePlan(plan *advisor.AllocationPlan, emergency *goaldomain.Goal, candidates []*goaldomain.Goal) []resolvedShare {
	var resolved []resolvedShare
	if emergency != nil && plan.EmergencyPercent > 0 {
		resolved = append(resolved, resolvedShare{GoalID: emergency.ID, Percent: plan.EmergencyPercent})
	}
	for g, pct := range matchShares(plan.GoalShares, candidates, e.logger) {
		if pct <= 0 {
			continue
		}
		resolved = append(resolved, resolvedShare{GoalID: g.ID, Percent: pct})
	}
	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].GoalID.String() < resolved[j].GoalID.String()
	})
	return resolved
}

func (e *engine) noOpReport(userID uuid.UUID, connID *uuid.UUID) *dto.AllocationReport {
	return &dto.AllocationReport{
		UserID:       userID,
		ConnectionID: connID,
		PolicySource: advisor.PlanSourceFormula,
		Reasoning:    "nothing to allocate",
		RanAt:        e.clock.Now(),
	}
}

// partitionGoals picks the canonical emergency goal (oldest active emergency)
// and returns the remaining goals sorted most urgent first.
func partitionGoals(active []goaldomain.Goal, clock shared.Clock) (*goaldomain.Goal, []*goaldomain.Goal) {
	now := clock.Now()
	var emergency *goaldomain.Goal
	var rest []*goaldomain.Goal

	for i := range active {
		g := &active[i]
		if g.IsEmergency() && emergency == nil {
			// list is ordered by created_at, first hit is the oldest
			emergency = g
			continue
		}
		rest = append(rest, g)
	}

	sort.SliceStable(rest, func(i, j int) bool {
		ui, uj := rest[i].UrgencyAt(now), rest[j].UrgencyAt(now)
		if ui != uj {
			return ui < uj
		}
		di, iok := rest[i].DaysUntilDeadline(now)
		dj, jok := rest[j].DaysUntilDeadline(now)
		if !iok {
			di = 9999
		}
		if !jok {
			dj = 9999
		}
		if di != dj {
			return di < dj
		}
		return rest[i].ProgressPercent() < rest[j].ProgressPercent()
	})
	return emergency, rest
}
