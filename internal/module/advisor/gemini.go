package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"fincoach/internal/config"
	"fincoach/internal/shared"
)

type geminiAdvisor struct {
	client      *genai.Client
	models      []string
	limiter     *rate.Limiter
	cooldown    Cooldown
	timeout     time.Duration
	cooldownTTL time.Duration
	logger      *zap.Logger
}

// NewGeminiAdvisor builds the Gemini-backed advisor. Without an API key it
// returns a stub that always reports the policy unavailable, which keeps the
// formula fallback path in charge.
func NewGeminiAdvisor(cfg *config.Config, cooldown Cooldown, logger *zap.Logger) (Advisor, error) {
	if cfg.Gemini.APIKey == "" {
		logger.Warn("gemini api key not configured, advisor disabled")
		return &disabledAdvisor{}, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.Gemini.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	rpm := cfg.Gemini.RequestsPerMinute
	if rpm <= 0 {
		rpm = 12
	}
	return &geminiAdvisor{
		client:      client,
		models:      cfg.Gemini.Models,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		cooldown:    cooldown,
		timeout:     cfg.Gemini.RequestTimeout,
		cooldownTTL: cfg.Gemini.CooldownTTL,
		logger:      logger,
	}, nil
}

func (a *geminiAdvisor) ProposeAllocation(ctx context.Context, input AllocationInput) (*AllocationPlan, error) {
	text, err := a.generate(ctx, buildAllocationPrompt(input))
	if err != nil {
		return nil, err
	}
	plan, err := parseAllocationPlan(text)
	if err != nil {
		a.logger.Warn("allocation plan unparseable", zap.Error(err))
		return nil, shared.ErrPolicyUnavailable.WithDetails("unparseable plan: %v", err)
	}
	return plan, nil
}

func (a *geminiAdvisor) RefineTargets(ctx context.Context, base BaseTargets, profile TargetProfile) (*BaseTargets, error) {
	text, err := a.generate(ctx, buildRefineTargetsPrompt(base, profile))
	if err != nil {
		return nil, err
	}
	refined, err := parseRefinedTargets(text, base, profile)
	if err != nil {
		a.logger.Warn("refined targets unparseable", zap.Error(err))
		return nil, shared.ErrPolicyUnavailable.WithDetails("unparseable targets: %v", err)
	}
	return refined, nil
}

// generate runs the model fallback chain. Quota-style failures trip the
// cooldown and abort; transient failures try the next model.
func (a *geminiAdvisor) generate(ctx context.Context, prompt string) (string, error) {
	if a.cooldown.Active(ctx) {
		return "", shared.ErrQuotaExhausted.WithDetails("advisor in cooldown")
	}
	if !a.limiter.Allow() {
		return "", shared.ErrPolicyUnavailable.WithDetails("advisor rate limit reached")
	}

	var lastErr error
	for _, name := range a.models {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		model := a.client.GenerativeModel(name)
		model.SetTemperature(0.3)
		resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
		cancel()

		if err != nil {
			if isQuotaError(err) {
				a.cooldown.Trip(ctx, a.cooldownTTL)
				a.logger.Warn("advisor quota exhausted, cooldown tripped",
					zap.String("model", name),
					zap.Duration("ttl", a.cooldownTTL))
				return "", shared.ErrQuotaExhausted.WithDetails("model %s: %v", name, err)
			}
			a.logger.Warn("model call failed, trying next",
				zap.String("model", name), zap.Error(err))
			lastErr = err
			continue
		}

		text := responseText(resp)
		if text == "" {
			lastErr = fmt.Errorf("model %s returned empty response", name)
			continue
		}
		a.logger.Debug("advisor responded",
			zap.String("model", name),
			zap.Int("chars", len(text)))
		return text, nil
	}
	return "", shared.ErrPolicyUnavailable.WithDetails("all models failed: %v", lastErr)
}

func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "permission") ||
		strings.Contains(msg, "403")
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func buildAllocationPrompt(input AllocationInput) string {
	goalsJSON, _ := json.MarshalIndent(input.Goals, "", "  ")
	return fmt.Sprintf(`You are a smart financial coach for users in India. Determine the optimal allocation percentages for a new income of %s.

User's Financial Context:
- Average Monthly Income: %s
- Average Monthly Expenses: %s
- Savings Rate: %.1f%%
- Emergency Fund Status: %s (%.1f%% complete)

Active Goals (%d goals) - SORTED BY URGENCY (most urgent first):
%s

Each goal shows "urgency" (overdue/urgent/moderate/normal/low), "days_until_deadline" and "progress_percent". Goals with fewer days until deadline and lower progress must receive higher percentages.

Rules:
1. Total allocation to goals MUST be exactly 40%% of income (40%% stays for spending, 20%% for investment).
2. Emergency Fund: allocate 10%% if not completed, 0%% if completed.
3. Distribute the remaining 30%% across regular goals by urgency: urgent 20-25%% each, moderate 15-20%%, normal 10-15%%, low 5-10%%.
4. No single goal above 25%%, emergency fund at most 15%%.

Return ONLY a JSON object in this exact format:
{
  "emergency_fund_percent": 10.0,
  "goal_allocations": [
    {"goal_id": "goal-id-1", "percent": 15.0},
    {"goal_id": "goal-id-2", "percent": 15.0}
  ],
  "total_allocation_percent": 40.0,
  "reasoning": "Brief explanation of allocation strategy"
}`,
		shared.FormatINR(input.IncomeAmount),
		shared.FormatINR(input.AvgMonthlyIncome),
		shared.FormatINR(input.AvgMonthlyExpenses),
		input.SavingsRatePercent,
		input.EmergencyStatus,
		input.EmergencyProgress,
		len(input.Goals),
		string(goalsJSON))
}

func buildRefineTargetsPrompt(base BaseTargets, profile TargetProfile) string {
	return fmt.Sprintf(`You are a financial planner for gig-economy workers in India. Refine these formula-based goal targets for the user's situation.

Base targets:
- Emergency Fund: %s (4.5 months of expenses)
- Savings Goal 1: %s (2 months of income)
- Savings Goal 2: %s (1.5 months of income)

User profile:
- Average Monthly Income: %s
- Average Monthly Expenses: %s
- Savings Rate: %.1f%%
- Job Type: %s
- Location: %s

Constraints:
- Never go below: emergency fund 10000, goal 1 5000, goal 2 3000.
- Emergency fund at most 12 months of expenses; savings goals at most 6 months of income.
- Gig workers need larger emergency buffers than salaried workers.

Return ONLY a JSON object:
{"emergency_fund": 56700, "savings_goal_1": 36000, "savings_goal_2": 27000, "reasoning": "Brief explanation"}`,
		shared.FormatINR(base.EmergencyFund),
		shared.FormatINR(base.SavingsGoal1),
		shared.FormatINR(base.SavingsGoal2),
		shared.FormatINR(profile.AvgMonthlyIncome),
		shared.FormatINR(profile.AvgMonthlyExpenses),
		profile.SavingsRatePercent,
		profile.JobType,
		profile.Location)
}

// disabledAdvisor is used when no API key is configured.
type disabledAdvisor struct{}

func (disabledAdvisor) ProposeAllocation(ctx context.Context, input AllocationInput) (*AllocationPlan, error) {
	return nil, shared.ErrPolicyUnavailable.WithDetails("advisor not configured")
}

func (disabledAdvisor) RefineTargets(ctx context.Context, base BaseTargets, profile TargetProfile) (*BaseTargets, error) {
	return nil, shared.ErrPolicyUnavailable.WithDetails("advisor not configured")
}
