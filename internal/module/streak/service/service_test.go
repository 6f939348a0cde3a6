package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fincoach/internal/database"
	"fincoach/internal/module/streak/domain"
	"fincoach/internal/module/streak/repository"
	"fincoach/internal/shared"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t.In(shared.IST) }

func newStreakFixture(t *testing.T, start time.Time) (StreakService, *testClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	clock := &testClock{t: start}
	return NewStreakService(repository.NewStreakRepository(db), clock, zap.NewNop()), clock
}

func TestRecordActivityLifecycle(t *testing.T) {
	day1 := time.Date(2026, 8, 20, 10, 0, 0, 0, shared.IST)
	svc, clock := newStreakFixture(t, day1)
	userID := uuid.Must(uuid.NewV7())
	ctx := context.Background()

	// first ever activity
	st, err := svc.RecordActivity(ctx, userID, domain.TypeSavings)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 1, st.TotalDays)

	// same day again: no-op
	clock.t = day1.Add(5 * time.Hour)
	st, err = svc.RecordActivity(ctx, userID, domain.TypeSavings)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 1, st.TotalDays)

	// next day: extends
	clock.t = day1.AddDate(0, 0, 1)
	st, err = svc.RecordActivity(ctx, userID, domain.TypeSavings)
	require.NoError(t, err)
	assert.Equal(t, 2, st.CurrentStreak)
	assert.Equal(t, 2, st.LongestStreak)
	assert.Equal(t, 2, st.TotalDays)

	// three-day gap: restarts at one, longest survives
	clock.t = day1.AddDate(0, 0, 4)
	st, err = svc.RecordActivity(ctx, userID, domain.TypeSavings)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 2, st.LongestStreak)
	assert.Equal(t, 3, st.TotalDays)
}

func TestStreakTypesAreIndependent(t *testing.T) {
	day := time.Date(2026, 8, 20, 10, 0, 0, 0, shared.IST)
	svc, _ := newStreakFixture(t, day)
	userID := uuid.Must(uuid.NewV7())
	ctx := context.Background()

	_, err := svc.RecordActivity(ctx, userID, domain.TypeSavings)
	require.NoError(t, err)
	_, err = svc.RecordActivity(ctx, userID, domain.TypeTransaction)
	require.NoError(t, err)

	infos, err := svc.Info(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestInfoLapsedStreakReadsZeroWithoutRewrite(t *testing.T) {
	day1 := time.Date(2026, 8, 20, 10, 0, 0, 0, shared.IST)
	svc, clock := newStreakFixture(t, day1)
	userID := uuid.Must(uuid.NewV7())
	ctx := context.Background()

	_, err := svc.RecordActivity(ctx, userID, domain.TypeSavings)
	require.NoError(t, err)

	// yesterday's streak still shows, and is continuable
	clock.t = day1.AddDate(0, 0, 1)
	infos, err := svc.Info(ctx, userID)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].CurrentStreak)
	assert.False(t, infos[0].ActiveToday)

	// after a longer gap the read side reports zero
	clock.t = day1.AddDate(0, 0, 5)
	infos, err = svc.Info(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, infos[0].CurrentStreak)
	assert.Equal(t, 1, infos[0].LongestStreak, "history is untouched")
	assert.Equal(t, 1, infos[0].TotalDays)

	// and the stored row was not rewritten: resuming starts a fresh streak
	st, err := svc.RecordActivity(ctx, userID, domain.TypeSavings)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 2, st.TotalDays)
}

func TestInfoActiveToday(t *testing.T) {
	day := time.Date(2026, 8, 20, 10, 0, 0, 0, shared.IST)
	svc, _ := newStreakFixture(t, day)
	userID := uuid.Must(uuid.NewV7())
	ctx := context.Background()

	_, err := svc.RecordActivity(ctx, userID, domain.TypeSavings)
	require.NoError(t, err)

	infos, err := svc.Info(ctx, userID)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].ActiveToday)
	assert.Equal(t, "2026-08-20", infos[0].LastActiveDate)
}
