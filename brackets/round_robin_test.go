package brackets

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volley-tournament/models"
)

func uniqueIDs(n int) []int {
	seen := make(map[int]bool, n)
	ids := make([]int, 0, n)
	for len(ids) < n {
		id := gofakeit.Number(1, 100000)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func TestRoundRobin_EveryPairMeetsOnce(t *testing.T) {
	gen := NewRoundRobinGenerator()

	for n := 2; n <= 9; n++ {
		entries := uniqueIDs(n)
		matches, err := gen.GenerateBracket(context.Background(), GenerateBracketParams{Entries: entries, Label: "P1-"})
		require.NoError(t, err)
		require.Len(t, matches, n*(n-1)/2, "n=%d", n)

		pairs := make(map[[2]int]int)
		perRound := make(map[int]map[int]bool)
		maxRound := 0
		for _, m := range matches {
			require.Len(t, m.SideA, 1)
			require.Len(t, m.SideB, 1)
			a, b := m.SideA[0], m.SideB[0]
			pairs[pairKey(a, b)]++

			if perRound[m.Round] == nil {
				perRound[m.Round] = make(map[int]bool)
			}
			assert.False(t, perRound[m.Round][a], "entry %d plays twice in round %d", a, m.Round)
			assert.False(t, perRound[m.Round][b], "entry %d plays twice in round %d", b, m.Round)
			perRound[m.Round][a] = true
			perRound[m.Round][b] = true
			if m.Round > maxRound {
				maxRound = m.Round
			}
		}
		for _, c := range pairs {
			assert.Equal(t, 1, c)
		}

		expectedRounds := n - 1
		if n%2 == 1 {
			expectedRounds = n
		}
		assert.Equal(t, expectedRounds, maxRound, "n=%d", n)
	}
}

func TestRoundRobin_OddCountRotatesBye(t *testing.T) {
	entries := []int{1, 2, 3, 4, 5}
	matches, err := NewRoundRobinGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Entries: entries})
	require.NoError(t, err)

	sitting := make(map[int]int)
	for round := 1; round <= 5; round++ {
		playing := make(map[int]bool)
		for _, m := range matches {
			if m.Round == round {
				playing[m.SideA[0]] = true
				playing[m.SideB[0]] = true
			}
		}
		require.Len(t, playing, 4, "round %d", round)
		for _, id := range entries {
			if !playing[id] {
				sitting[id]++
			}
		}
	}
	for _, id := range entries {
		assert.Equal(t, 1, sitting[id], "entry %d", id)
	}
}

func TestRoundRobin_DoubleSwapsSides(t *testing.T) {
	tournament := &models.Tournament{Settings: models.TournamentSettings{DoubleRoundRobin: true}}
	matches, err := NewRoundRobinGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Tournament: tournament,
		Entries:    []int{1, 2, 3, 4},
	})
	require.NoError(t, err)
	require.Len(t, matches, 12)

	ordered := make(map[[2]int]int)
	for _, m := range matches {
		ordered[[2]int{m.SideA[0], m.SideB[0]}]++
	}
	assert.Len(t, ordered, 12)
	for pair, c := range ordered {
		assert.Equal(t, 1, c, "pair %v", pair)
	}
	assert.Equal(t, 6, matches[len(matches)-1].Round)
}

func TestRoundRobin_UniqueUIDs(t *testing.T) {
	matches, err := NewRoundRobinGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Entries: []int{1, 2, 3, 4, 5, 6},
		Label:   "A-",
	})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, m := range matches {
		assert.False(t, seen[m.UID], "duplicate uid %s", m.UID)
		seen[m.UID] = true
		assert.Contains(t, m.UID, "A-RR")
	}
}

func TestRoundRobin_NotEnoughEntries(t *testing.T) {
	_, err := NewRoundRobinGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Entries: []int{1}})
	assert.ErrorIs(t, err, ErrNotEnoughEntries)
}
