package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fincoach/internal/module/advisor"
	connectionrepo "fincoach/internal/module/connection/repository"
	"fincoach/internal/module/goal/domain"
	"fincoach/internal/module/goal/dto"
	"fincoach/internal/module/goal/repository"
	transactiondomain "fincoach/internal/module/transaction/domain"
	transactionrepo "fincoach/internal/module/transaction/repository"
	"fincoach/internal/shared"
)

// incomeWindow is how far back average-monthly-income scans reach.
const incomeWindow = 90 * 24 * time.Hour

type GoalService interface {
	Create(ctx context.Context, userID uuid.UUID, req dto.CreateGoalRequest) (*domain.Goal, error)
	Update(ctx context.Context, userID, id uuid.UUID, req dto.UpdateGoalRequest) (*domain.Goal, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Goal, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error)

	// EnsureGoals bootstraps the default goal set for users who have none
	// and resizes default goals whose targets drifted from what current
	// income justifies. excludeIDs are provider transaction ids of the
	// triggering income, kept out of the income average.
	EnsureGoals(ctx context.Context, userID uuid.UUID, triggerAmount decimal.Decimal, excludeIDs []string) error

	// HandleCompletedGoals reacts to goals that hit their target: recurring
	// goals grow, finished one-time goals spawn successors.
	HandleCompletedGoals(ctx context.Context, userID uuid.UUID, recentIncome decimal.Decimal) error

	AverageMonthlyIncome(ctx context.Context, userID uuid.UUID, excludeIDs []string) (decimal.Decimal, error)
}

type goalService struct {
	repo    repository.GoalRepository
	conns   connectionrepo.ConnectionRepository
	txns    transactionrepo.TransactionRepository
	advisor advisor.Advisor
	clock   shared.Clock
	logger  *zap.Logger
}

func NewGoalService(
	repo repository.GoalRepository,
	conns connectionrepo.ConnectionRepository,
	txns transactionrepo.TransactionRepository,
	adv advisor.Advisor,
	clock shared.Clock,
	logger *zap.Logger,
) GoalService {
	return &goalService{
		repo:    repo,
		conns:   conns,
		txns:    txns,
		advisor: adv,
		clock:   clock,
		logger:  logger,
	}
}

// ==================== CRUD ====================

func (s *goalService) Create(ctx context.Context, userID uuid.UUID, req dto.CreateGoalRequest) (*domain.Goal, error) {
	if !req.Target.IsPositive() && !req.Target.IsZero() {
		return nil, shared.ErrValidation.WithDetails("target must not be negative")
	}
	goalType := req.Type
	if goalType == "" {
		goalType = domain.TypeSavings
	}

	goal := &domain.Goal{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Type:        goalType,
		Target:      req.Target.Round(2),
		Saved:       decimal.Zero,
		Deadline:    s.deadlineOrSentinel(req.Deadline),
	}
	if err := s.repo.Create(ctx, goal); err != nil {
		return nil, err
	}
	s.logger.Info("goal created",
		zap.String("user_id", userID.String()),
		zap.String("goal_id", goal.ID.String()),
		zap.String("name", goal.Name))
	return goal, nil
}

func (s *goalService) Update(ctx context.Context, userID, id uuid.UUID, req dto.UpdateGoalRequest) (*domain.Goal, error) {
	goal, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		goal.Name = *req.Name
	}
	if req.Description != nil {
		goal.Description = *req.Description
	}
	if req.Target != nil {
		goal.Target = req.Target.Round(2)
	}
	if req.Saved != nil {
		goal.Saved = req.Saved.Round(2)
	}
	if req.Deadline != nil {
		goal.Deadline = s.deadlineOrSentinel(req.Deadline)
	}
	// completion follows from the numbers, never from the request
	goal.IsCompleted = goal.Target.IsPositive() && goal.Saved.GreaterThanOrEqual(goal.Target)

	if err := s.repo.Save(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

func (s *goalService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *goalService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Goal, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *goalService) List(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *goalService) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error) {
	return s.repo.ListActive(ctx, userID)
}

// deadlineOrSentinel encodes a missing deadline as a far-future date so
// deadline ordering stays total.
func (s *goalService) deadlineOrSentinel(deadline *time.Time) *time.Time {
	if deadline != nil {
		d := *deadline
		return &d
	}
	far := s.clock.Now().AddDate(0, 0, domain.FarFutureDays)
	return &far
}

// ==================== INCOME STATS ====================

// AverageMonthlyIncome averages income over the trailing 90 days, combining
// the manual ledger with credits observed through connections. The triggering
// income's ids are excluded so a user's very first payout doesn't count as
// three months of history.
func (s *goalService) AverageMonthlyIncome(ctx context.Context, userID uuid.UUID, excludeIDs []string) (decimal.Decimal, error) {
	now := s.clock.Now()
	since := now.Add(-incomeWindow)
	exclude := map[string]struct{}{}
	for _, id := range excludeIDs {
		exclude[id] = struct{}{}
	}

	total := decimal.Zero

	manual, err := s.txns.ListSince(ctx, userID, transactiondomain.TypeIncome, since)
	if err != nil {
		return decimal.Zero, err
	}
	for _, t := range manual {
		total = total.Add(t.Amount)
	}

	conns, err := s.conns.ListByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, c := range conns {
		if c.Payload == nil {
			continue
		}
		for _, t := range c.Payload.LiftedTransactions() {
			if !t.IsCredit() || !t.Amount.IsPositive() {
				continue
			}
			if _, skip := exclude[t.ID]; skip {
				continue
			}
			if t.Timestamp.Time.Before(since) || t.Timestamp.Time.After(now) {
				continue
			}
			total = total.Add(t.Amount)
		}
	}

	return total.Div(decimal.NewFromInt(3)).Round(2), nil
}

// resolveMonthlyIncome applies the fallback chain: computed average, then
// thirty times the triggering amount, then a flat default.
func (s *goalService) resolveMonthlyIncome(ctx context.Context, userID uuid.UUID, trigger decimal.Decimal, excludeIDs []string) decimal.Decimal {
	avg, err := s.AverageMonthlyIncome(ctx, userID, excludeIDs)
	if err != nil {
		s.logger.Warn("income average failed, using fallback",
			zap.String("user_id", userID.String()), zap.Error(err))
		avg = decimal.Zero
	}
	if avg.IsPositive() {
		return avg
	}
	if trigger.IsPositive() {
		return trigger.Mul(decimal.NewFromInt(30))
	}
	return fallbackIncome
}

// ==================== LIFECYCLE ====================

func (s *goalService) EnsureGoals(ctx context.Context, userID uuid.UUID, triggerAmount decimal.Decimal, excludeIDs []string) error {
	goals, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	// 1. Establish the income picture.
	avgIncome := s.resolveMonthlyIncome(ctx, userID, triggerAmount, excludeIDs)
	base := BaseTargetsFor(avgIncome)

	// 2. Let the advisor tune the targets; formulas stand on any failure.
	targets := base
	profile := advisor.TargetProfile{
		AvgMonthlyIncome:   avgIncome,
		AvgMonthlyExpenses: avgIncome.Mul(expenseRatio),
		SavingsRatePercent: 30,
		JobType:            "gig_worker",
		Location:           "India",
	}
	if refined, err := s.advisor.RefineTargets(ctx, base, profile); err == nil {
		targets = *refined
		s.logger.Info("goal targets refined",
			zap.String("user_id", userID.String()),
			zap.String("reasoning", refined.Reasoning))
	} else {
		s.logger.Warn("target refinement unavailable, using formula targets",
			zap.String("user_id", userID.String()), zap.Error(err))
	}

	// 3. Create whichever defaults are missing.
	now := s.clock.Now()
	var hasEmergency, hasGoal1, hasGoal2 bool
	for i := range goals {
		g := &goals[i]
		switch {
		case g.IsEmergency():
			hasEmergency = true
		case strings.Contains(g.Name, "Goal 1"):
			hasGoal1 = true
		case strings.Contains(g.Name, "Goal 2"):
			hasGoal2 = true
		}
	}

	if !hasEmergency {
		if err := s.createDefault(ctx, userID, DefaultEmergencyName, domain.TypeEmergency, targets.EmergencyFund, nil); err != nil {
			return err
		}
	}
	if !hasGoal1 {
		d := now.AddDate(0, 0, 180)
		if err := s.createDefault(ctx, userID, DefaultGoal1Name, domain.TypeSavings, targets.SavingsGoal1, &d); err != nil {
			return err
		}
	}
	if !hasGoal2 {
		d := now.AddDate(0, 0, 120)
		if err := s.createDefault(ctx, userID, DefaultGoal2Name, domain.TypeSavings, targets.SavingsGoal2, &d); err != nil {
			return err
		}
	}

	// 4. Resize existing defaults that drifted over 20% from the
	// recommendation. A zero-target goal can never be funded, so any active
	// goal without a target gets one here regardless of name.
	for i := range goals {
		g := &goals[i]
		if g.IsCompleted {
			continue
		}
		var recommended decimal.Decimal
		switch {
		case g.IsEmergency():
			recommended = targets.EmergencyFund
		case strings.Contains(g.Name, "Goal 1"):
			recommended = targets.SavingsGoal1
		case strings.Contains(g.Name, "Goal 2"):
			recommended = targets.SavingsGoal2
		case g.Target.IsZero():
			recommended = targets.SavingsGoal2
		default:
			continue
		}
		if !needsResize(g.Target, recommended) {
			continue
		}
		old := g.Target
		g.Target = recommended
		g.IsCompleted = g.Target.IsPositive() && g.Saved.GreaterThanOrEqual(g.Target)
		if err := s.repo.Save(ctx, g); err != nil {
			return err
		}
		s.logger.Info("goal target resized",
			zap.String("user_id", userID.String()),
			zap.String("goal_id", g.ID.String()),
			zap.String("name", g.Name),
			zap.String("old_target", old.String()),
			zap.String("new_target", recommended.String()))
	}
	return nil
}

func (s *goalService) createDefault(ctx context.Context, userID uuid.UUID, name, goalType string, target decimal.Decimal, deadline *time.Time) error {
	goal := &domain.Goal{
		UserID:   userID,
		Name:     name,
		Type:     goalType,
		Target:   target.Round(2),
		Saved:    decimal.Zero,
		Deadline: s.deadlineOrSentinel(deadline),
	}
	if err := s.repo.Create(ctx, goal); err != nil {
		return err
	}
	s.logger.Info("default goal created",
		zap.String("user_id", userID.String()),
		zap.String("goal_id", goal.ID.String()),
		zap.String("name", name),
		zap.String("target", goal.Target.String()))
	return nil
}

var (
	recurringKeywords = []string{"vacation", "monthly", "savings", "emergency", "buffer", "reserve", "fund"}
	oneTimeKeywords   = []string{"buy", "purchase", "phone", "laptop", "wedding", "car", "house", "gift"}
)

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func (s *goalService) HandleCompletedGoals(ctx context.Context, userID uuid.UUID, recentIncome decimal.Decimal) error {
	goals, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	activeCount := 0
	for i := range goals {
		if !goals[i].IsCompleted {
			activeCount++
		}
	}

	for i := range goals {
		g := &goals[i]
		if !g.IsCompleted {
			continue
		}
		name := strings.ToLower(g.Name)
		isRecurring := containsAny(name, recurringKeywords) || g.IsEmergency()
		isOneTime := containsAny(name, oneTimeKeywords)

		switch {
		case isRecurring && !isOneTime && recentIncome.IsPositive():
			// Raise the bar and keep saving toward it.
			old := g.Target
			g.Target = g.Target.Mul(decimal.NewFromFloat(1.25)).Round(0)
			g.IsCompleted = g.Saved.GreaterThanOrEqual(g.Target)
			if err := s.repo.Save(ctx, g); err != nil {
				return err
			}
			if !g.IsCompleted {
				activeCount++
			}
			s.logger.Info("recurring goal target raised after completion",
				zap.String("goal_id", g.ID.String()),
				zap.String("name", g.Name),
				zap.String("old_target", old.String()),
				zap.String("new_target", g.Target.String()))

		case isOneTime && recentIncome.GreaterThan(g.Target.Mul(decimal.NewFromFloat(0.5))):
			successor := successorName(name)
			target := recentIncome.Mul(decimal.NewFromFloat(0.3)).Round(0)
			created := &domain.Goal{
				UserID:   userID,
				Name:     successor,
				Type:     domain.TypeSavings,
				Target:   target,
				Saved:    decimal.Zero,
				Deadline: s.deadlineOrSentinel(nil),
			}
			if err := s.repo.Create(ctx, created); err != nil {
				return err
			}
			activeCount++
			s.logger.Info("successor goal created after one-time completion",
				zap.String("completed_goal", g.Name),
				zap.String("new_goal", successor),
				zap.String("target", target.String()))
		}
	}

	// Nothing left to save toward: seed a general goal from recent income.
	if activeCount == 0 && recentIncome.IsPositive() {
		target := recentIncome.Mul(decimal.NewFromFloat(0.4)).Round(0)
		created := &domain.Goal{
			UserID:   userID,
			Name:     "General Savings Goal",
			Type:     domain.TypeSavings,
			Target:   target,
			Saved:    decimal.Zero,
			Deadline: s.deadlineOrSentinel(nil),
		}
		if err := s.repo.Create(ctx, created); err != nil {
			return err
		}
		s.logger.Info("general savings goal created, all goals were complete",
			zap.String("user_id", userID.String()),
			zap.String("target", target.String()))
	}
	return nil
}

func successorName(completedName string) string {
	switch {
	case strings.Contains(completedName, "phone"):
		return "Next Phone Upgrade"
	case strings.Contains(completedName, "laptop"):
		return "Next Laptop"
	case strings.Contains(completedName, "car"):
		return "Car Maintenance Fund"
	case strings.Contains(completedName, "wedding"):
		return "Future Savings"
	default:
		return "New Savings Goal"
	}
}
