package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fincoach/internal/module/streak/domain"
	"fincoach/internal/module/streak/repository"
	"fincoach/internal/shared"
)

// StreakInfo is the read-side view. An expired streak reports zero here
// without being rewritten in storage; the next RecordActivity resets it.
type StreakInfo struct {
	Type           string `json:"type"`
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	TotalDays      int    `json:"total_days"`
	ActiveToday    bool   `json:"active_today"`
	LastActiveDate string `json:"last_active_date,omitempty"`
}

type StreakService interface {
	// RecordActivity counts one activity day. Same-day repeats are no-ops;
	// a gap of exactly one IST day extends the streak, anything longer
	// restarts it at one.
	RecordActivity(ctx context.Context, userID uuid.UUID, streakType string) (*domain.UserStreak, error)
	Info(ctx context.Context, userID uuid.UUID) ([]StreakInfo, error)
}

type streakService struct {
	repo   repository.StreakRepository
	clock  shared.Clock
	logger *zap.Logger
}

func NewStreakService(repo repository.StreakRepository, clock shared.Clock, logger *zap.Logger) StreakService {
	return &streakService{repo: repo, clock: clock, logger: logger}
}

func (s *streakService) RecordActivity(ctx context.Context, userID uuid.UUID, streakType string) (*domain.UserStreak, error) {
	today := shared.StartOfDayIST(s.clock.Now())

	streak, err := s.repo.Get(ctx, userID, streakType)
	if errors.Is(err, shared.ErrNotFound) {
		streak = &domain.UserStreak{
			UserID:         userID,
			Type:           streakType,
			CurrentStreak:  1,
			LongestStreak:  1,
			TotalDays:      1,
			LastActiveDate: &today,
		}
		if err := s.repo.Create(ctx, streak); err != nil {
			return nil, err
		}
		return streak, nil
	}
	if err != nil {
		return nil, err
	}

	if streak.LastActiveDate != nil && shared.SameISTDay(*streak.LastActiveDate, today) {
		return streak, nil
	}

	yesterday := today.AddDate(0, 0, -1)
	if streak.LastActiveDate != nil && shared.SameISTDay(*streak.LastActiveDate, yesterday) {
		streak.CurrentStreak++
	} else {
		streak.CurrentStreak = 1
	}
	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.TotalDays++
	streak.LastActiveDate = &today

	if err := s.repo.Save(ctx, streak); err != nil {
		return nil, err
	}
	s.logger.Debug("streak recorded",
		zap.String("user_id", userID.String()),
		zap.String("type", streakType),
		zap.Int("current", streak.CurrentStreak))
	return streak, nil
}

func (s *streakService) Info(ctx context.Context, userID uuid.UUID) ([]StreakInfo, error) {
	streaks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	today := shared.StartOfDayIST(now)
	yesterday := today.AddDate(0, 0, -1)

	out := make([]StreakInfo, 0, len(streaks))
	for _, st := range streaks {
		info := StreakInfo{
			Type:          st.Type,
			LongestStreak: st.LongestStreak,
			TotalDays:     st.TotalDays,
		}
		if st.LastActiveDate != nil {
			info.LastActiveDate = st.LastActiveDate.In(shared.IST).Format("2006-01-02")
			switch {
			case shared.SameISTDay(*st.LastActiveDate, today):
				info.CurrentStreak = st.CurrentStreak
				info.ActiveToday = true
			case shared.SameISTDay(*st.LastActiveDate, yesterday):
				// still continuable today
				info.CurrentStreak = st.CurrentStreak
			default:
				// lapsed; storage is corrected on the next activity
				info.CurrentStreak = 0
			}
		}
		out = append(out, info)
	}
	return out, nil
}
