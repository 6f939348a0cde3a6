package service

import (
	"strings"

	"go.uber.org/zap"

	"fincoach/internal/module/advisor"
	goaldomain "fincoach/internal/module/goal/domain"
)

// matchShares resolves advisor goal ids to stored goals. LLMs abbreviate and
// occasionally invent ids, so resolution degrades in steps: exact match,
// 8-character prefix match, then position in the summary ordering. Each
// fallback logs a warning; an unresolvable share is dropped rather than
// guessed twice.
func matchShares(shares []advisor.GoalShare, goals []*goaldomain.Goal, logger *zap.Logger) map[*goaldomain.Goal]float64 {
	matched := make(map[*goaldomain.Goal]float64, len(shares))
	used := make(map[*goaldomain.Goal]bool, len(goals))

	for idx, share := range shares {
		goal := matchOne(share.GoalID, idx, goals, used, logger)
		if goal == nil {
			logger.Warn("advisor share unmatchable, dropped",
				zap.String("advisor_goal_id", share.GoalID),
				zap.Int("position", idx))
			continue
		}
		used[goal] = true
		matched[goal] = share.Percent
	}
	return matched
}

func matchOne(id string, position int, goals []*goaldomain.Goal, used map[*goaldomain.Goal]bool, logger *zap.Logger) *goaldomain.Goal {
	// 1. exact id
	for _, g := range goals {
		if !used[g] && g.ID.String() == id {
			return g
		}
	}

	// 2. 8-char prefix, the form LLMs most often echo back. Only a unique
	// hit counts; an ambiguous prefix falls through to position.
	if len(id) >= 8 {
		prefix := strings.ToLower(id[:8])
		var hit *goaldomain.Goal
		for _, g := range goals {
			if used[g] || !strings.HasPrefix(g.ID.String(), prefix) {
				continue
			}
			if hit != nil {
				logger.Warn("advisor goal id prefix ambiguous",
					zap.String("advisor_goal_id", id))
				hit = nil
				break
			}
			hit = g
		}
		if hit != nil {
			logger.Warn("advisor goal id matched by prefix",
				zap.String("advisor_goal_id", id),
				zap.String("goal_id", hit.ID.String()))
			return hit
		}
	}

	// 3. positional
	if position < len(goals) && !used[goals[position]] {
		g := goals[position]
		logger.Warn("advisor goal id matched by position",
			zap.String("advisor_goal_id", id),
			zap.Int("position", position),
			zap.String("goal_id", g.ID.String()))
		return g
	}
	return nil
}
