package brackets

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volley-tournament/models"
)

func seeds(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 100 + i + 1
	}
	return out
}

func byUIDMap(matches []*BracketMatch) map[string]*BracketMatch {
	out := make(map[string]*BracketMatch, len(matches))
	for _, m := range matches {
		out[m.UID] = m
	}
	return out
}

func TestSeedOrder(t *testing.T) {
	if diff := cmp.Diff([]int{1, 8, 4, 5, 2, 7, 3, 6}, SeedOrder(8)); diff != "" {
		t.Errorf("SeedOrder(8) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 4, 2, 3}, SeedOrder(4)); diff != "" {
		t.Errorf("SeedOrder(4) mismatch (-want +got):\n%s", diff)
	}
}

func TestSingleElimination_FullBracket(t *testing.T) {
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Entries: seeds(8)})
	require.NoError(t, err)
	require.Len(t, matches, 7)

	m := byUIDMap(matches)
	firstRound := [][2]int{{101, 108}, {104, 105}, {102, 107}, {103, 106}}
	for i, pair := range firstRound {
		uid := []string{"R1M1", "R1M2", "R1M3", "R1M4"}[i]
		require.Contains(t, m, uid)
		assert.Equal(t, []int{pair[0]}, m[uid].SideA)
		assert.Equal(t, []int{pair[1]}, m[uid].SideB)
	}

	require.NotNil(t, m["R1M1"].NextMatchUID)
	assert.Equal(t, "R2M1", *m["R1M1"].NextMatchUID)
	assert.Equal(t, 1, *m["R1M1"].WinnerToSlot)
	assert.Equal(t, "R2M1", *m["R1M2"].NextMatchUID)
	assert.Equal(t, 2, *m["R1M2"].WinnerToSlot)
	assert.Equal(t, "R3M1", *m["R2M2"].NextMatchUID)
	assert.Nil(t, m["R3M1"].NextMatchUID)
	assert.True(t, m["R3M1"].IsPlaceholder())
}

func TestSingleElimination_ByesGoToTopSeeds(t *testing.T) {
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Entries: seeds(6)})
	require.NoError(t, err)
	require.Len(t, matches, 5)

	m := byUIDMap(matches)
	assert.NotContains(t, m, "R1M1")
	assert.NotContains(t, m, "R1M3")
	require.Contains(t, m, "R1M2")
	require.Contains(t, m, "R1M4")

	// Seeds 1 and 2 wait in round 2 for the winners of 4-5 and 3-6.
	assert.Equal(t, []int{101}, m["R2M1"].SideA)
	assert.Nil(t, m["R2M1"].SideB)
	assert.Equal(t, "R1M2", *m["R2M1"].SourceBUID)
	assert.Equal(t, []int{102}, m["R2M2"].SideA)
	assert.Equal(t, "R1M4", *m["R2M2"].SourceBUID)
}

func TestSingleElimination_ThirdPlaceMatch(t *testing.T) {
	tournament := &models.Tournament{Settings: models.TournamentSettings{ThirdPlaceMatch: true}}
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Tournament: tournament,
		Entries:    seeds(6),
		Label:      "B-",
	})
	require.NoError(t, err)
	require.Len(t, matches, 6)

	m := byUIDMap(matches)
	third, ok := m["B-"+ThirdPlaceUID]
	require.True(t, ok)
	assert.Equal(t, 3, third.Round)
	assert.Equal(t, 2, third.OrderInRound)

	require.NotNil(t, m["B-R2M1"].LoserNextMatchUID)
	assert.Equal(t, third.UID, *m["B-R2M1"].LoserNextMatchUID)
	assert.Equal(t, 1, *m["B-R2M1"].LoserToSlot)
	assert.Equal(t, third.UID, *m["B-R2M2"].LoserNextMatchUID)
	assert.Equal(t, 2, *m["B-R2M2"].LoserToSlot)
	assert.Equal(t, matches[len(matches)-1].UID, third.UID)
}

func TestSingleElimination_NoThirdPlaceWithoutTwoSemis(t *testing.T) {
	tournament := &models.Tournament{Settings: models.TournamentSettings{ThirdPlaceMatch: true}}
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Tournament: tournament,
		Entries:    seeds(3),
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.NotContains(t, byUIDMap(matches), ThirdPlaceUID)
}

func TestSingleElimination_Errors(t *testing.T) {
	gen := NewSingleEliminationGenerator()
	_, err := gen.GenerateBracket(context.Background(), GenerateBracketParams{})
	assert.Error(t, err)
	_, err = gen.GenerateBracket(context.Background(), GenerateBracketParams{Entries: []int{1}})
	assert.ErrorIs(t, err, ErrNotEnoughEntries)
}

func TestSingleElimination_MatchCountIsEntriesMinusOne(t *testing.T) {
	for n := 2; n <= 17; n++ {
		matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Entries: seeds(n)})
		require.NoError(t, err)
		assert.Len(t, matches, n-1, "n=%d", n)
	}
}
