package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fincoach/internal/database"
	"fincoach/internal/module/advisor"
	conndomain "fincoach/internal/module/connection/domain"
	connectionrepo "fincoach/internal/module/connection/repository"
	goaldomain "fincoach/internal/module/goal/domain"
	goalrepo "fincoach/internal/module/goal/repository"
	goalservice "fincoach/internal/module/goal/service"
	transactiondomain "fincoach/internal/module/transaction/domain"
	transactionrepo "fincoach/internal/module/transaction/repository"
	"fincoach/internal/shared"
)

// stubAdvisor returns a canned plan, or fails so callers fall back to the
// formula split.
type stubAdvisor struct {
	plan *advisor.AllocationPlan
	err  error
}

func (s *stubAdvisor) ProposeAllocation(ctx context.Context, input advisor.AllocationInput) (*advisor.AllocationPlan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.plan, nil
}

func (s *stubAdvisor) RefineTargets(ctx context.Context, base advisor.BaseTargets, profile advisor.TargetProfile) (*advisor.BaseTargets, error) {
	return nil, shared.ErrPolicyUnavailable
}

type engineFixture struct {
	engine Engine
	goals  goalrepo.GoalRepository
	conns  connectionrepo.ConnectionRepository
	txns   transactionrepo.TransactionRepository
	userID uuid.UUID
	now    time.Time
}

func newEngineFixture(t *testing.T, adv advisor.Advisor) *engineFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, shared.IST)
	clock := shared.FixedClock{T: now}
	goals := goalrepo.NewGoalRepository(db)
	conns := connectionrepo.NewConnectionRepository(db)
	txns := transactionrepo.NewTransactionRepository(db)
	goalSvc := goalservice.NewGoalService(goals, conns, txns, adv, clock, zap.NewNop())

	return &engineFixture{
		engine: NewEngine(db, goals, conns, txns, goalSvc, adv, clock, zap.NewNop()),
		goals:  goals,
		conns:  conns,
		txns:   txns,
		userID: uuid.Must(uuid.NewV7()),
		now:    now,
	}
}

func (f *engineFixture) addManualIncome(t *testing.T, amount int64) *transactiondomain.ManualTransaction {
	t.Helper()
	txn := &transactiondomain.ManualTransaction{
		UserID:     f.userID,
		Type:       transactiondomain.TypeIncome,
		Amount:     decimal.NewFromInt(amount),
		OccurredAt: f.now,
	}
	require.NoError(t, f.txns.Create(context.Background(), txn))
	return txn
}

func (f *engineFixture) addGoal(t *testing.T, name, goalType string, target, saved int64, deadlineDays int) *goaldomain.Goal {
	t.Helper()
	g := &goaldomain.Goal{
		UserID: f.userID,
		Name:   name,
		Type:   goalType,
		Target: decimal.NewFromInt(target),
		Saved:  decimal.NewFromInt(saved),
	}
	if deadlineDays > 0 {
		d := f.now.AddDate(0, 0, deadlineDays)
		g.Deadline = &d
	}
	require.NoError(t, f.goals.Create(context.Background(), g))
	return g
}

func (f *engineFixture) addConnection(t *testing.T, incomes ...conndomain.SourceTransaction) *conndomain.PaymentConnection {
	t.Helper()
	conn := &conndomain.PaymentConnection{
		UserID: f.userID,
		Name:   "PhonePe",
		Type:   "upi",
		Status: conndomain.StatusConnected,
		Payload: &conndomain.Payload{
			Transactions:            incomes,
			AllocatedTransactionIDs: conndomain.NewStringSet(),
		},
	}
	require.NoError(t, f.conns.Create(context.Background(), conn))
	return conn
}

func payout(id string, amount int64, ts time.Time) conndomain.SourceTransaction {
	return conndomain.SourceTransaction{
		ID:        id,
		Type:      conndomain.TxnTypeCredit,
		Amount:    decimal.NewFromInt(amount),
		Timestamp: conndomain.FlexTime{Time: ts},
	}
}

func TestAllocateFromConnectionFormulaSplit(t *testing.T) {
	f := newEngineFixture(t, &stubAdvisor{err: shared.ErrPolicyUnavailable})
	ctx := context.Background()

	ef := f.addGoal(t, "Emergency Fund", goaldomain.TypeEmergency, 945000, 0, 0)
	g1 := f.addGoal(t, "Savings Goal 1", goaldomain.TypeSavings, 600000, 0, 180)
	g2 := f.addGoal(t, "Savings Goal 2", goaldomain.TypeSavings, 450000, 0, 120)

	income := payout("txn_pay_1", 10000, f.now.Add(-time.Hour))
	conn := f.addConnection(t, income)

	report, err := f.engine.AllocateFromConnection(ctx, f.userID, conn.ID, []conndomain.SourceTransaction{income})
	require.NoError(t, err)

	assert.Equal(t, advisor.PlanSourceFormula, report.PolicySource)
	assert.True(t, report.TotalIncome.Equal(decimal.NewFromInt(10000)))
	assert.True(t, report.TotalAllocated.Equal(decimal.NewFromInt(4000)), report.TotalAllocated.String())
	require.Len(t, report.Allocations, 3)

	gotEF, err := f.goals.GetByID(ctx, f.userID, ef.ID)
	require.NoError(t, err)
	assert.True(t, gotEF.Saved.Equal(decimal.NewFromInt(1000)), "10%% to emergency: %s", gotEF.Saved.String())

	gotG1, err := f.goals.GetByID(ctx, f.userID, g1.ID)
	require.NoError(t, err)
	assert.True(t, gotG1.Saved.Equal(decimal.NewFromInt(1500)))

	gotG2, err := f.goals.GetByID(ctx, f.userID, g2.ID)
	require.NoError(t, err)
	assert.True(t, gotG2.Saved.Equal(decimal.NewFromInt(1500)))

	gotConn, err := f.conns.GetByID(ctx, f.userID, conn.ID)
	require.NoError(t, err)
	assert.True(t, gotConn.AllocatedIDs().Contains("txn_pay_1"))
}

func TestAllocateClampsAtRemainingAndCompletes(t *testing.T) {
	f := newEngineFixture(t, &stubAdvisor{err: shared.ErrPolicyUnavailable})
	ctx := context.Background()

	// 15% of 10000 would be 1500 but only 100 is left to save
	g := f.addGoal(t, "Almost There", goaldomain.TypeSavings, 1000, 900, 60)

	income := payout("txn_pay_1", 10000, f.now.Add(-time.Hour))
	conn := f.addConnection(t, income)

	report, err := f.engine.AllocateFromConnection(ctx, f.userID, conn.ID, []conndomain.SourceTransaction{income})
	require.NoError(t, err)

	require.Len(t, report.Allocations, 1)
	assert.True(t, report.Allocations[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, report.Allocations[0].Completed)

	got, err := f.goals.GetByID(ctx, f.userID, g.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.True(t, got.Saved.Equal(got.Target))
}

func TestAllocateReplayIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, &stubAdvisor{err: shared.ErrPolicyUnavailable})
	ctx := context.Background()

	g := f.addGoal(t, "Savings Goal 1", goaldomain.TypeSavings, 600000, 0, 180)

	income := payout("txn_pay_1", 10000, f.now.Add(-time.Hour))
	conn := f.addConnection(t, income)

	first, err := f.engine.AllocateFromConnection(ctx, f.userID, conn.ID, []conndomain.SourceTransaction{income})
	require.NoError(t, err)
	assert.True(t, first.TotalAllocated.IsPositive())

	// same income delivered again, e.g. a duplicate task
	second, err := f.engine.AllocateFromConnection(ctx, f.userID, conn.ID, []conndomain.SourceTransaction{income})
	require.NoError(t, err)
	assert.True(t, second.TotalIncome.IsZero(), "replay must not re-count income")
	assert.Empty(t, second.Allocations)

	got, err := f.goals.GetByID(ctx, f.userID, g.ID)
	require.NoError(t, err)
	assert.True(t, got.Saved.Equal(decimal.NewFromInt(1500)), "saved only once: %s", got.Saved.String())
}

func TestAllocateNoActiveGoalsIsNoOp(t *testing.T) {
	f := newEngineFixture(t, &stubAdvisor{err: shared.ErrPolicyUnavailable})
	ctx := context.Background()

	income := payout("txn_pay_1", 10000, f.now.Add(-time.Hour))
	conn := f.addConnection(t, income)

	report, err := f.engine.AllocateFromConnection(ctx, f.userID, conn.ID, []conndomain.SourceTransaction{income})
	require.NoError(t, err)
	assert.True(t, report.IsNoOp())

	gotConn, err := f.conns.GetByID(ctx, f.userID, conn.ID)
	require.NoError(t, err)
	assert.False(t, gotConn.AllocatedIDs().Contains("txn_pay_1"),
		"unallocated income stays claimable for the next run")
}

func TestAllocateManualUsesPlainAmount(t *testing.T) {
	f := newEngineFixture(t, &stubAdvisor{err: shared.ErrPolicyUnavailable})
	ctx := context.Background()

	ef := f.addGoal(t, "Emergency Fund", goaldomain.TypeEmergency, 50000, 0, 0)

	txn := f.addManualIncome(t, 2000)
	report, err := f.engine.AllocateManual(ctx, f.userID, txn.ID, txn.Amount)
	require.NoError(t, err)

	assert.Equal(t, []string{txn.ID.String()}, report.TransactionIDs)
	require.Len(t, report.Allocations, 1)
	assert.True(t, report.Allocations[0].Amount.Equal(decimal.NewFromInt(200)))

	got, err := f.goals.GetByID(ctx, f.userID, ef.ID)
	require.NoError(t, err)
	assert.True(t, got.Saved.Equal(decimal.NewFromInt(200)))

	gotTxn, err := f.txns.GetByID(ctx, f.userID, txn.ID)
	require.NoError(t, err)
	assert.NotNil(t, gotTxn.AllocatedAt, "applied income is marked on the row")
}

func TestAllocateManualReplayIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, &stubAdvisor{err: shared.ErrPolicyUnavailable})
	ctx := context.Background()

	ef := f.addGoal(t, "Emergency Fund", goaldomain.TypeEmergency, 50000, 0, 0)
	txn := f.addManualIncome(t, 2000)

	first, err := f.engine.AllocateManual(ctx, f.userID, txn.ID, txn.Amount)
	require.NoError(t, err)
	assert.True(t, first.TotalAllocated.IsPositive())

	// same task delivered again
	second, err := f.engine.AllocateManual(ctx, f.userID, txn.ID, txn.Amount)
	require.NoError(t, err)
	assert.True(t, second.TotalIncome.IsZero(), "replay must not re-count income")
	assert.Empty(t, second.Allocations)

	got, err := f.goals.GetByID(ctx, f.userID, ef.ID)
	require.NoError(t, err)
	assert.True(t, got.Saved.Equal(decimal.NewFromInt(200)), "saved only once: %s", got.Saved.String())
}

func TestAllocateManualDeletedRowIsNoOp(t *testing.T) {
	f := newEngineFixture(t, &stubAdvisor{err: shared.ErrPolicyUnavailable})
	ctx := context.Background()

	ef := f.addGoal(t, "Emergency Fund", goaldomain.TypeEmergency, 50000, 0, 0)

	report, err := f.engine.AllocateManual(ctx, f.userID, uuid.Must(uuid.NewV7()), decimal.NewFromInt(2000))
	require.NoError(t, err)
	assert.True(t, report.IsNoOp())

	got, err := f.goals.GetByID(ctx, f.userID, ef.ID)
	require.NoError(t, err)
	assert.True(t, got.Saved.IsZero())
}

func TestAllocateAdvisorPlanApplied(t *testing.T) {
	stub := &stubAdvisor{}
	f := newEngineFixture(t, stub)
	ctx := context.Background()

	ef := f.addGoal(t, "Emergency Fund", goaldomain.TypeEmergency, 945000, 0, 0)
	g1 := f.addGoal(t, "Savings Goal 1", goaldomain.TypeSavings, 600000, 0, 180)

	stub.plan = &advisor.AllocationPlan{
		EmergencyPercent: 15,
		GoalShares: []advisor.GoalShare{
			{GoalID: g1.ID.String(), Percent: 25},
		},
		Reasoning: "deadline pressure on goal 1",
		Source:    advisor.PlanSourceLLM,
	}

	income := payout("txn_pay_1", 10000, f.now.Add(-time.Hour))
	conn := f.addConnection(t, income)

	report, err := f.engine.AllocateFromConnection(ctx, f.userID, conn.ID, []conndomain.SourceTransaction{income})
	require.NoError(t, err)

	assert.Equal(t, advisor.PlanSourceLLM, report.PolicySource)
	assert.Equal(t, "deadline pressure on goal 1", report.Reasoning)
	assert.True(t, report.TotalAllocated.Equal(decimal.NewFromInt(4000)), report.TotalAllocated.String())

	gotEF, err := f.goals.GetByID(ctx, f.userID, ef.ID)
	require.NoError(t, err)
	assert.True(t, gotEF.Saved.Equal(decimal.NewFromInt(1500)))

	gotG1, err := f.goals.GetByID(ctx, f.userID, g1.ID)
	require.NoError(t, err)
	assert.True(t, gotG1.Saved.Equal(decimal.NewFromInt(2500)))
}

func TestPartitionGoalsOrdersByUrgency(t *testing.T) {
	f := newEngineFixture(t, &stubAdvisor{err: shared.ErrPolicyUnavailable})

	ef := f.addGoal(t, "Emergency Fund", goaldomain.TypeEmergency, 10000, 0, 0)
	far := f.addGoal(t, "Someday", goaldomain.TypeSavings, 1000, 900, 300)
	soon := f.addGoal(t, "Rent Buffer", goaldomain.TypeSavings, 1000, 0, 20)
	mid := f.addGoal(t, "Festival", goaldomain.TypeSavings, 1000, 800, 80)

	active, err := f.goals.ListActive(context.Background(), f.userID)
	require.NoError(t, err)

	emergency, rest := partitionGoals(active, shared.FixedClock{T: f.now})
	require.NotNil(t, emergency)
	assert.Equal(t, ef.ID, emergency.ID)
	require.Len(t, rest, 3)
	assert.Equal(t, soon.ID, rest[0].ID)
	assert.Equal(t, mid.ID, rest[1].ID)
	assert.Equal(t, far.ID, rest[2].ID)
}
