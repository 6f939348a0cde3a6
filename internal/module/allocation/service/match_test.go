package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fincoach/internal/module/advisor"
	goaldomain "fincoach/internal/module/goal/domain"
)

func testGoals(n int) []*goaldomain.Goal {
	out := make([]*goaldomain.Goal, n)
	for i := range out {
		out[i] = &goaldomain.Goal{ID: uuid.Must(uuid.NewV7())}
	}
	return out
}

func TestMatchSharesExact(t *testing.T) {
	goals := testGoals(2)
	shares := []advisor.GoalShare{
		{GoalID: goals[1].ID.String(), Percent: 20},
	}

	matched := matchShares(shares, goals, zap.NewNop())
	require.Len(t, matched, 1)
	assert.Equal(t, 20.0, matched[goals[1]])
}

func TestMatchSharesPrefix(t *testing.T) {
	goals := testGoals(2)
	shares := []advisor.GoalShare{
		{GoalID: goals[0].ID.String()[:8], Percent: 10},
	}

	matched := matchShares(shares, goals, zap.NewNop())
	require.Len(t, matched, 1)
	assert.Equal(t, 10.0, matched[goals[0]])
}

func TestMatchSharesPositional(t *testing.T) {
	goals := testGoals(3)
	shares := []advisor.GoalShare{
		{GoalID: "goal_1", Percent: 15},
		{GoalID: "goal_2", Percent: 10},
	}

	matched := matchShares(shares, goals, zap.NewNop())
	require.Len(t, matched, 2)
	assert.Equal(t, 15.0, matched[goals[0]])
	assert.Equal(t, 10.0, matched[goals[1]])
}

func TestMatchSharesUnresolvableDropped(t *testing.T) {
	goals := testGoals(1)
	shares := []advisor.GoalShare{
		{GoalID: goals[0].ID.String(), Percent: 15},
		// position 1 does not exist and the id matches nothing
		{GoalID: "invented-by-the-model", Percent: 10},
	}

	matched := matchShares(shares, goals, zap.NewNop())
	require.Len(t, matched, 1)
	assert.Equal(t, 15.0, matched[goals[0]])
}

func TestMatchSharesAmbiguousPrefixFallsToPosition(t *testing.T) {
	goals := []*goaldomain.Goal{
		{ID: uuid.MustParse("aaaaaaaa-1111-4000-8000-000000000001")},
		{ID: uuid.MustParse("aaaaaaaa-2222-4000-8000-000000000002")},
		{ID: uuid.MustParse("bbbbbbbb-3333-4000-8000-000000000003")},
	}
	shares := []advisor.GoalShare{
		{GoalID: goals[2].ID.String(), Percent: 15},
		// prefix matches the first two goals, so position decides
		{GoalID: "aaaaaaaa-zzzz", Percent: 10},
	}

	matched := matchShares(shares, goals, zap.NewNop())
	require.Len(t, matched, 2)
	assert.Equal(t, 15.0, matched[goals[2]])
	assert.Equal(t, 10.0, matched[goals[1]])
}

func TestMatchSharesNeverDoubleAssigns(t *testing.T) {
	goals := testGoals(2)
	shares := []advisor.GoalShare{
		{GoalID: goals[0].ID.String(), Percent: 15},
		{GoalID: goals[0].ID.String()[:8], Percent: 10},
	}

	matched := matchShares(shares, goals, zap.NewNop())
	// the second share cannot reclaim goal 0; it lands positionally on goal 1
	require.Len(t, matched, 2)
	assert.Equal(t, 15.0, matched[goals[0]])
	assert.Equal(t, 10.0, matched[goals[1]])
}
