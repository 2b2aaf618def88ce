package brackets

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volley-tournament/models"
)

func kingParams(kind models.TournamentKind, entries []int, teamSize int) GenerateBracketParams {
	return GenerateBracketParams{
		Tournament: &models.Tournament{Kind: kind},
		Entries:    entries,
		Label:      "P1-",
		TeamSize:   teamSize,
	}
}

func TestKingRotation_FourPlayersPartnerEveryoneOnce(t *testing.T) {
	matches, err := NewKingRotationGenerator().GenerateBracket(context.Background(), kingParams(models.KindKing, []int{1, 2, 3, 4}, 2))
	require.NoError(t, err)
	require.Len(t, matches, 3)

	teammates := make(map[[2]int]int)
	for _, m := range matches {
		require.Len(t, m.SideA, 2)
		require.Len(t, m.SideB, 2)
		teammates[pairKey(m.SideA[0], m.SideA[1])]++
		teammates[pairKey(m.SideB[0], m.SideB[1])]++
	}
	assert.Len(t, teammates, 6)
	for pair, c := range teammates {
		assert.Equal(t, 1, c, "pair %v", pair)
	}
}

func TestKingRotation_FullRoundsWithoutSitOut(t *testing.T) {
	players := []int{11, 12, 13, 14, 15, 16, 17, 18}
	matches, err := NewKingRotationGenerator().GenerateBracket(context.Background(), kingParams(models.KindKing, players, 4))
	require.NoError(t, err)
	require.Len(t, matches, 7)

	for _, m := range matches {
		assert.Len(t, m.SideA, 4)
		assert.Len(t, m.SideB, 4)
		seen := make(map[int]bool)
		for _, id := range append(append([]int{}, m.SideA...), m.SideB...) {
			assert.False(t, seen[id], "player %d on both sides in %s", id, m.UID)
			seen[id] = true
		}
		assert.Len(t, seen, 8)
	}
}

func TestKingRotation_SitOutsAreBalanced(t *testing.T) {
	players := []int{1, 2, 3, 4, 5}
	matches, err := NewKingRotationGenerator().GenerateBracket(context.Background(), kingParams(models.KindKing, players, 2))
	require.NoError(t, err)
	require.Len(t, matches, 4)

	played := make(map[int]int)
	for _, m := range matches {
		require.Len(t, m.SideA, 2)
		require.Len(t, m.SideB, 2)
		for _, id := range append(append([]int{}, m.SideA...), m.SideB...) {
			played[id]++
		}
	}
	minPlayed, maxPlayed := 100, 0
	for _, id := range players {
		minPlayed = min(minPlayed, played[id])
		maxPlayed = max(maxPlayed, played[id])
	}
	assert.LessOrEqual(t, maxPlayed-minPlayed, 1)
}

func TestKingRotation_Deterministic(t *testing.T) {
	players := []int{7, 3, 9, 1, 5, 8, 2}
	gen := NewKingRotationGenerator()
	first, err := gen.GenerateBracket(context.Background(), kingParams(models.KindKing, players, 3))
	require.NoError(t, err)
	second, err := gen.GenerateBracket(context.Background(), kingParams(models.KindKing, players, 3))
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("rotation is not deterministic (-first +second):\n%s", diff)
	}
}

func TestKingRotation_RoundsOverride(t *testing.T) {
	params := kingParams(models.KindKing, []int{1, 2, 3, 4, 5, 6}, 2)
	params.Rounds = 2
	matches, err := NewKingRotationGenerator().GenerateBracket(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "P1-K1", matches[0].UID)
	assert.Equal(t, "P1-K2", matches[1].UID)
}

func TestKingRotation_FlexibleSides(t *testing.T) {
	players := []int{1, 2, 3, 4, 5}

	_, err := NewKingRotationGenerator().GenerateBracket(context.Background(), kingParams(models.KindKing, players, 3))
	assert.ErrorIs(t, err, ErrPoolTooSmallForKing)

	matches, err := NewKingRotationGenerator().GenerateBracket(context.Background(), kingParams(models.KindFlexibleKing, players, 3))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Len(t, m.SideA, 2)
		assert.Len(t, m.SideB, 3)
	}
}

func TestKingRotation_Validation(t *testing.T) {
	gen := NewKingRotationGenerator()

	_, err := gen.GenerateBracket(context.Background(), kingParams(models.KindKing, []int{1, 2, 3, 4}, 1))
	assert.ErrorIs(t, err, ErrInvalidTeamSize)

	_, err = gen.GenerateBracket(context.Background(), kingParams(models.KindFlexibleKing, []int{1, 2, 3}, 2))
	assert.ErrorIs(t, err, ErrNotEnoughEntries)
}

func TestKingRotation_LargePoolSitsOutTheRest(t *testing.T) {
	players := make([]int, 20)
	for i := range players {
		players[i] = i + 1
	}
	matches, err := NewKingRotationGenerator().GenerateBracket(context.Background(), kingParams(models.KindKing, players, 4))
	require.NoError(t, err)
	require.Len(t, matches, 19)

	played := make(map[int]int)
	for _, m := range matches {
		require.Len(t, m.SideA, 4)
		require.Len(t, m.SideB, 4)
		for _, id := range append(append([]int{}, m.SideA...), m.SideB...) {
			played[id]++
		}
	}
	require.Len(t, played, 20, "every player gets on court")
	minPlayed, maxPlayed := 100, 0
	for _, id := range players {
		minPlayed = min(minPlayed, played[id])
		maxPlayed = max(maxPlayed, played[id])
	}
	assert.LessOrEqual(t, maxPlayed-minPlayed, 1)
}

func TestSnakeDistribute(t *testing.T) {
	got := SnakeDistribute([]int{1, 2, 3, 4, 5, 6, 7, 8}, 3)
	want := [][]int{{1, 6, 7}, {2, 5, 8}, {3, 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SnakeDistribute mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, SnakeDistribute([]int{1}, 0))
}

func TestSelectQualifiers(t *testing.T) {
	poolA := []models.Standing{
		{EntryID: 10, Played: 2, Wins: 1, PointsFor: 50, PointsAgainst: 45},
		{EntryID: 11, Played: 2, Wins: 1, PointsFor: 48, PointsAgainst: 40},
		{EntryID: 12, Played: 2, Wins: 0, PointsFor: 30, PointsAgainst: 50},
	}
	poolB := []models.Standing{
		{EntryID: 20, Played: 2, Wins: 2, PointsFor: 50, PointsAgainst: 30},
		{EntryID: 21, Played: 2, Wins: 1, PointsFor: 44, PointsAgainst: 44},
		{EntryID: 22, Played: 2, Wins: 0, PointsFor: 20, PointsAgainst: 50},
	}

	got, err := SelectQualifiers([][]models.Standing{poolA, poolB}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{20, 10, 11}, got)

	got, err = SelectQualifiers([][]models.Standing{poolA, poolB}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{20, 10, 11, 21}, got)
}

func TestSelectQualifiers_NotEnough(t *testing.T) {
	pool := []models.Standing{{EntryID: 1}, {EntryID: 2}}
	_, err := SelectQualifiers([][]models.Standing{pool}, 3, 0)
	assert.ErrorIs(t, err, ErrNotEnoughQualifiers)

	_, err = SelectQualifiers([][]models.Standing{pool}, 1, 2)
	assert.ErrorIs(t, err, ErrNotEnoughQualifiers)
}

func TestValidatePhasePlan(t *testing.T) {
	plan := []models.Phase{
		{Number: 1, TeamSize: 4, PoolCount: 4, QualifiersPerPool: 4},
		{Number: 2, TeamSize: 3, PoolCount: 2, QualifiersPerPool: 4},
		{Number: 3, TeamSize: 2, PoolCount: 1, QualifiersPerPool: 1},
	}
	assert.NoError(t, ValidatePhasePlan(models.KindKing, plan, 32))
	assert.NoError(t, ValidatePhasePlan(models.KindKing, plan, 0))

	assert.ErrorIs(t, ValidatePhasePlan(models.KindKing, nil, 0), ErrPhasePlanEmpty)

	badNumbers := []models.Phase{{Number: 2, TeamSize: 2, PoolCount: 1, QualifiersPerPool: 1}}
	assert.ErrorIs(t, ValidatePhasePlan(models.KindKing, badNumbers, 0), ErrPhaseNumbering)

	badTeam := []models.Phase{{Number: 1, TeamSize: 7, PoolCount: 1, QualifiersPerPool: 1}}
	assert.ErrorIs(t, ValidatePhasePlan(models.KindKing, badTeam, 0), ErrInvalidTeamSize)

	tooManyPools := []models.Phase{
		{Number: 1, TeamSize: 4, PoolCount: 4, QualifiersPerPool: 4},
		{Number: 2, TeamSize: 3, PoolCount: 3, QualifiersPerPool: 2},
	}
	assert.ErrorIs(t, ValidatePhasePlan(models.KindKing, tooManyPools, 32), ErrPhaseQuotaMismatch)

	tooFewEntries := []models.Phase{{Number: 1, TeamSize: 4, PoolCount: 2, QualifiersPerPool: 2}}
	assert.ErrorIs(t, ValidatePhasePlan(models.KindKing, tooFewEntries, 12), ErrPhaseQuotaMismatch)

	// Team King ranks fixed teams, team size is not checked.
	teamPlan := []models.Phase{{Number: 1, PoolCount: 2, QualifiersPerPool: 2}}
	assert.NoError(t, ValidatePhasePlan(models.KindTeamKing, teamPlan, 8))
}
