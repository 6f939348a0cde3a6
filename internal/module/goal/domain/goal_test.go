package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fincoach/internal/shared"
)

func deadlineIn(now time.Time, days int) *time.Time {
	d := now.AddDate(0, 0, days)
	return &d
}

func TestUrgencyBuckets(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, shared.IST)

	cases := []struct {
		name     string
		days     int
		progress int64 // percent of a 100-target goal
		want     Urgency
	}{
		{"overdue", -5, 80, UrgencyOverdue},
		{"urgent", 20, 80, UrgencyUrgent},
		{"moderate", 75, 80, UrgencyModerate},
		{"normal", 150, 80, UrgencyNormal},
		{"low", 300, 80, UrgencyLow},
		{"promoted_to_urgent", 45, 20, UrgencyUrgent},
		{"not_promoted_enough_progress", 45, 80, UrgencyModerate},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g := Goal{
				Target:   decimal.NewFromInt(100),
				Saved:    decimal.NewFromInt(c.progress),
				Deadline: deadlineIn(now, c.days),
			}
			assert.Equal(t, c.want, g.UrgencyAt(now))
		})
	}
}

func TestUrgencySentinelDeadlineIsLow(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, shared.IST)

	g := Goal{Target: decimal.NewFromInt(100), Deadline: deadlineIn(now, FarFutureDays)}
	_, ok := g.DaysUntilDeadline(now)
	assert.False(t, ok)
	assert.Equal(t, UrgencyLow, g.UrgencyAt(now))

	g.Deadline = nil
	assert.Equal(t, UrgencyLow, g.UrgencyAt(now))
}

func TestRemainingFloorsAtZero(t *testing.T) {
	g := Goal{Target: decimal.NewFromInt(100), Saved: decimal.NewFromInt(130)}
	assert.True(t, g.Remaining().IsZero())

	g.Saved = decimal.NewFromInt(40)
	assert.True(t, g.Remaining().Equal(decimal.NewFromInt(60)))
}

func TestProgressPercentZeroTarget(t *testing.T) {
	g := Goal{Target: decimal.Zero, Saved: decimal.NewFromInt(10)}
	assert.Equal(t, 0.0, g.ProgressPercent())
}
