package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/volley-tournament/models"
)

var (
	ErrNoSets        = errors.New("match result must contain at least one set")
	ErrSetTied       = errors.New("a set cannot end in a tie")
	ErrNegativeScore = errors.New("set scores cannot be negative")
	ErrMatchTied     = errors.New("match result cannot be a tie on sets")
	ErrTooManySets   = errors.New("match result contains sets played after the match was decided")
)

// WinnerSide validates volleyball sets and returns the side (models.SideA or
// models.SideB) that won more sets. When setsToWin > 0 the winner must reach
// exactly that number of sets and no set may follow the deciding one.
func WinnerSide(sets models.Sets, setsToWin int) (int, error) {
	if len(sets) == 0 {
		return 0, ErrNoSets
	}
	wonA, wonB := 0, 0
	for i, set := range sets {
		if set.A < 0 || set.B < 0 {
			return 0, ErrNegativeScore
		}
		if set.A == set.B {
			return 0, fmt.Errorf("%w (set %d: %d-%d)", ErrSetTied, i+1, set.A, set.B)
		}
		if setsToWin > 0 && (wonA == setsToWin || wonB == setsToWin) {
			return 0, ErrTooManySets
		}
		if set.A > set.B {
			wonA++
		} else {
			wonB++
		}
	}
	if wonA == wonB {
		return 0, ErrMatchTied
	}
	if setsToWin > 0 && wonA != setsToWin && wonB != setsToWin {
		return 0, fmt.Errorf("%w: winner needs %d sets", ErrMatchTied, setsToWin)
	}
	if wonA > wonB {
		return models.SideA, nil
	}
	return models.SideB, nil
}

// RankingInput - всё, что нужно для построения таблицы.
type RankingInput struct {
	Entries []int
	Matches []*models.Match
	Order   []models.TieBreak
	// Seeds maps an entry to its seed; lower is better. Entries without a seed
	// are ordered after seeded ones.
	Seeds map[int]int
}

// ComputeStandings builds a ranked table from completed matches. Every entry on a
// side is credited with that side's result, so the same function ranks fixed
// teams and King players who rotate partners. Entries not listed in Entries are
// ignored.
func ComputeStandings(in RankingInput) []models.Standing {
	index := make(map[int]*models.Standing, len(in.Entries))
	table := make([]*models.Standing, 0, len(in.Entries))
	for _, id := range in.Entries {
		if _, dup := index[id]; dup {
			continue
		}
		st := &models.Standing{EntryID: id}
		index[id] = st
		table = append(table, st)
	}

	for _, m := range in.Matches {
		if m == nil || !m.IsCompleted() {
			continue
		}
		setsA, setsB, pointsA, pointsB := 0, 0, 0, 0
		for _, set := range m.Sets {
			pointsA += set.A
			pointsB += set.B
			if set.A > set.B {
				setsA++
			} else if set.B > set.A {
				setsB++
			}
		}
		credit := func(ids []int, won bool, sw, sl, pf, pa int) {
			for _, id := range ids {
				st, ok := index[id]
				if !ok {
					continue
				}
				st.Played++
				if won {
					st.Wins++
				} else {
					st.Losses++
				}
				st.SetsWon += sw
				st.SetsLost += sl
				st.PointsFor += pf
				st.PointsAgainst += pa
			}
		}
		aWon := *m.WinnerSide == models.SideA
		credit(m.SideA, aWon, setsA, setsB, pointsA, pointsB)
		credit(m.SideB, !aWon, setsB, setsA, pointsB, pointsA)
	}

	order := in.Order
	if len(order) == 0 {
		order = models.DefaultTieBreakOrder
	}
	r := &ranker{matches: in.Matches, seeds: in.Seeds}
	r.rank(table, order)

	out := make([]models.Standing, len(table))
	for i, st := range table {
		st.Rank = i + 1
		out[i] = *st
	}
	return out
}

type ranker struct {
	matches []*models.Match
	seeds   map[int]int
}

// rank sorts group in place, criterion by criterion. Head-to-head only separates
// a group of exactly two entries; larger groups fall through to the next criterion.
func (r *ranker) rank(group []*models.Standing, criteria []models.TieBreak) {
	if len(group) < 2 {
		return
	}
	if len(criteria) == 0 {
		sort.SliceStable(group, func(i, j int) bool { return r.finalLess(group[i], group[j]) })
		return
	}

	c := criteria[0]
	if c == models.TieBreakHeadToHead {
		if len(group) == 2 {
			switch r.headToHead(group[0].EntryID, group[1].EntryID) {
			case 1:
				return
			case -1:
				group[0], group[1] = group[1], group[0]
				return
			}
		}
		r.rank(group, criteria[1:])
		return
	}

	sort.SliceStable(group, func(i, j int) bool {
		return criterionValue(group[i], c) > criterionValue(group[j], c)
	})
	start := 0
	for i := 1; i <= len(group); i++ {
		if i == len(group) || criterionValue(group[i], c) != criterionValue(group[start], c) {
			r.rank(group[start:i], criteria[1:])
			start = i
		}
	}
}

func (r *ranker) finalLess(a, b *models.Standing) bool {
	sa, okA := r.seeds[a.EntryID]
	sb, okB := r.seeds[b.EntryID]
	switch {
	case okA && okB && sa != sb:
		return sa < sb
	case okA != okB:
		return okA
	}
	return a.EntryID < b.EntryID
}

// headToHead returns 1 when a won more direct meetings than b, -1 for the
// opposite and 0 when they never met or split their meetings.
func (r *ranker) headToHead(a, b int) int {
	winsA, winsB := 0, 0
	for _, m := range r.matches {
		if m == nil || !m.IsCompleted() {
			continue
		}
		var sideOfA, sideOfB int
		if contains(m.SideA, a) {
			sideOfA = models.SideA
		} else if contains(m.SideB, a) {
			sideOfA = models.SideB
		}
		if contains(m.SideA, b) {
			sideOfB = models.SideA
		} else if contains(m.SideB, b) {
			sideOfB = models.SideB
		}
		if sideOfA == 0 || sideOfB == 0 || sideOfA == sideOfB {
			continue
		}
		if *m.WinnerSide == sideOfA {
			winsA++
		} else {
			winsB++
		}
	}
	switch {
	case winsA > winsB:
		return 1
	case winsB > winsA:
		return -1
	}
	return 0
}

func criterionValue(s *models.Standing, c models.TieBreak) float64 {
	switch c {
	case models.TieBreakWins:
		return float64(s.Wins)
	case models.TieBreakSetDiff:
		return float64(s.SetDiff())
	case models.TieBreakPointDiff:
		return float64(s.PointDiff())
	case models.TieBreakPointsFor:
		return float64(s.PointsFor)
	case models.TieBreakWinRate:
		return s.WinRate()
	}
	return 0
}

// CompareAcrossPools orders entries that finished in different pools, where
// match counts may differ: win rate, then point difference per match, then
// points scored, then entry id.
func CompareAcrossPools(a, b models.Standing) bool {
	if a.WinRate() != b.WinRate() {
		return a.WinRate() > b.WinRate()
	}
	if a.PointDiffPerMatch() != b.PointDiffPerMatch() {
		return a.PointDiffPerMatch() > b.PointDiffPerMatch()
	}
	if a.PointsFor != b.PointsFor {
		return a.PointsFor > b.PointsFor
	}
	return a.EntryID < b.EntryID
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
