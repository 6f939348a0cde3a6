package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fincoach/internal/dispatch"
	"fincoach/internal/mailer"
	"fincoach/internal/module/allocation/dto"
	conndomain "fincoach/internal/module/connection/domain"
	connectionrepo "fincoach/internal/module/connection/repository"
	connservice "fincoach/internal/module/connection/service"
	goalservice "fincoach/internal/module/goal/service"
	streakdomain "fincoach/internal/module/streak/domain"
	streakservice "fincoach/internal/module/streak/service"
	transactiondomain "fincoach/internal/module/transaction/domain"
	transactionrepo "fincoach/internal/module/transaction/repository"
	userrepo "fincoach/internal/module/user/repository"
	"fincoach/internal/shared"
)

// Orchestrator turns sync outcomes and manual ledger entries into background
// work: goal bootstrap, allocation, streaks and notification emails. All of
// it runs on the per-user dispatcher queue so runs for one user are strictly
// ordered.
type Orchestrator interface {
	OnConnectionEvent(userID uuid.UUID, outcome *connservice.SyncOutcome)
	OnManualTransaction(userID uuid.UUID, txn transactiondomain.ManualTransaction)
}

type orchestrator struct {
	dispatcher *dispatch.Dispatcher
	engine     Engine
	goals      goalservice.GoalService
	streaks    streakservice.StreakService
	users      userrepo.UserRepository
	budget     *budgetReader
	mail       mailer.Mailer
	clock      shared.Clock
	logger     *zap.Logger
}

func NewOrchestrator(
	dispatcher *dispatch.Dispatcher,
	engine Engine,
	goals goalservice.GoalService,
	streaks streakservice.StreakService,
	users userrepo.UserRepository,
	conns connectionrepo.ConnectionRepository,
	txns transactionrepo.TransactionRepository,
	mail mailer.Mailer,
	clock shared.Clock,
	logger *zap.Logger,
) Orchestrator {
	return &orchestrator{
		dispatcher: dispatcher,
		engine:     engine,
		goals:      goals,
		streaks:    streaks,
		users:      users,
		budget:     &budgetReader{conns: conns, txns: txns},
		mail:       mail,
		clock:      clock,
		logger:     logger,
	}
}

func (o *orchestrator) OnConnectionEvent(userID uuid.UUID, outcome *connservice.SyncOutcome) {
	connID := outcome.Connection.ID

	if len(outcome.NewIncome) > 0 {
		incomes := append([]conndomain.SourceTransaction(nil), outcome.NewIncome...)
		o.dispatcher.Enqueue(userID, "allocate_connection_income", func(ctx context.Context) error {
			return o.allocateConnectionIncome(ctx, userID, connID, incomes)
		})
	}

	if len(outcome.NewExpenses) > 0 {
		expenses := append([]conndomain.SourceTransaction(nil), outcome.NewExpenses...)
		o.dispatcher.Enqueue(userID, "notify_connection_spending", func(ctx context.Context) error {
			return o.notifySpending(ctx, userID, expenses)
		})
	}
}

func (o *orchestrator) OnManualTransaction(userID uuid.UUID, txn transactiondomain.ManualTransaction) {
	switch {
	case txn.IsIncome():
		o.dispatcher.Enqueue(userID, "allocate_manual_income", func(ctx context.Context) error {
			return o.allocateManualIncome(ctx, userID, txn.ID, txn.Amount)
		})
	case txn.IsExpense():
		item := conndomain.SourceTransaction{
			ID:          txn.ID.String(),
			Type:        conndomain.TxnTypeDebit,
			Amount:      txn.Amount,
			Description: txn.Description,
			Category:    txn.Category,
			Timestamp:   conndomain.FlexTime{Time: txn.OccurredAt},
		}
		o.dispatcher.Enqueue(userID, "notify_manual_spending", func(ctx context.Context) error {
			return o.notifySpending(ctx, userID, []conndomain.SourceTransaction{item})
		})
	}
}

// ==================== INCOME ====================

func (o *orchestrator) allocateConnectionIncome(ctx context.Context, userID, connID uuid.UUID, incomes []conndomain.SourceTransaction) error {
	total := decimal.Zero
	ids := make([]string, 0, len(incomes))
	for _, t := range incomes {
		total = total.Add(t.Amount)
		ids = append(ids, t.ID)
	}

	// 1. Make sure the user has goals to allocate into; first income
	// bootstraps the default set.
	if err := o.goals.EnsureGoals(ctx, userID, total, ids); err != nil {
		return err
	}

	// 2. Allocate.
	report, err := o.engine.AllocateFromConnection(ctx, userID, connID, incomes)
	if err != nil {
		return err
	}

	// 3. Side effects, all best-effort.
	o.afterAllocation(ctx, userID, report)
	return nil
}

func (o *orchestrator) allocateManualIncome(ctx context.Context, userID, txnID uuid.UUID, amount decimal.Decimal) error {
	if err := o.goals.EnsureGoals(ctx, userID, amount, nil); err != nil {
		return err
	}
	report, err := o.engine.AllocateManual(ctx, userID, txnID, amount)
	if err != nil {
		return err
	}
	o.afterAllocation(ctx, userID, report)
	return nil
}

// afterAllocation runs the reactions to a successful allocation: completed
// goal handling, the savings streak and the notification email. None of them
// may fail the task; the allocation is already committed.
func (o *orchestrator) afterAllocation(ctx context.Context, userID uuid.UUID, report *dto.AllocationReport) {
	if report.IsNoOp() {
		return
	}

	if err := o.goals.HandleCompletedGoals(ctx, userID, report.TotalIncome); err != nil {
		o.logger.Warn("completed goal handling failed",
			zap.String("user_id", userID.String()), zap.Error(err))
	}

	if _, err := o.streaks.RecordActivity(ctx, userID, streakdomain.TypeSavings); err != nil {
		o.logger.Warn("savings streak update failed",
			zap.String("user_id", userID.String()), zap.Error(err))
	}

	user, err := o.users.GetByID(ctx, userID)
	if err != nil {
		o.logger.Warn("user lookup for email failed",
			zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	lines := make([]mailer.AllocationLine, 0, len(report.Allocations))
	for _, a := range report.Allocations {
		lines = append(lines, mailer.AllocationLine{
			GoalName: a.GoalName,
			Amount:   a.Amount,
			Percent:  a.Percent,
		})
	}
	if err := o.mail.SendIncomeAllocated(user.Email, user.Name, report.TotalIncome, lines); err != nil {
		o.logger.Warn("income allocation email failed",
			zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// ==================== SPENDING ====================

// notifySpending sends the spending-activity email and, when this batch
// pushes the month across the 90% or 100% budget line, the corresponding
// warning. Crossing detection compares the month total before and after the
// batch so repeated syncs don't re-fire the same warning.
func (o *orchestrator) notifySpending(ctx context.Context, userID uuid.UUID, expenses []conndomain.SourceTransaction) error {
	if _, err := o.streaks.RecordActivity(ctx, userID, streakdomain.TypeTransaction); err != nil {
		o.logger.Warn("transaction streak update failed",
			zap.String("user_id", userID.String()), zap.Error(err))
	}

	user, err := o.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	now := o.clock.Now()
	bctx, err := o.budget.MonthlyBudgetContext(ctx, user, now)
	if err != nil {
		return err
	}

	items := make([]mailer.SpendingItem, 0, len(expenses))
	batchThisMonth := decimal.Zero
	for _, t := range expenses {
		category := t.Category
		if category == "" {
			category = inferCategory(t.Description)
		}
		items = append(items, mailer.SpendingItem{
			Description: t.Description,
			Amount:      t.Amount,
			Category:    category,
		})
		if shared.MonthKeyIST(t.Timestamp.Time) == bctx.MonthKey {
			batchThisMonth = batchThisMonth.Add(t.Amount)
		}
	}

	if err := o.mail.SendSpendingActivity(user.Email, user.Name, items, bctx.MonthSpent, bctx.Budget); err != nil {
		o.logger.Warn("spending activity email failed",
			zap.String("user_id", userID.String()), zap.Error(err))
	}

	// The persisted month total already includes this batch.
	before := bctx.MonthSpent.Sub(batchThisMonth)
	if before.IsNegative() {
		before = decimal.Zero
	}
	after := bctx.MonthSpent

	switch {
	case crossed(before, after, bctx.Budget):
		if err := o.mail.SendBudgetExceeded(user.Email, user.Name, after, bctx.Budget); err != nil {
			o.logger.Warn("budget exceeded email failed",
				zap.String("user_id", userID.String()), zap.Error(err))
		}
	case crossed(before, after, bctx.WarningThreshold()):
		if err := o.mail.SendBudgetWarning(user.Email, user.Name, after, bctx.Budget); err != nil {
			o.logger.Warn("budget warning email failed",
				zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return nil
}
