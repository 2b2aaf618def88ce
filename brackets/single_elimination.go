package brackets

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sort"
)

const ThirdPlaceUID = "3RD"

// node - слот следующего раунда: либо известный участник, либо победитель матча.
type node struct {
	entryID        *int
	sourceMatchUID *string
}

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket builds a single elimination bracket from entries ordered by seed.
// Byes go to the top seeds and are not emitted as matches: a seed with a bye
// appears directly in its second round match.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	entries := params.Entries
	n := len(entries)
	if n == 0 {
		return nil, errors.New("cannot generate bracket with zero participants")
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: single elimination needs at least 2 entries", ErrNotEnoughEntries)
	}

	size := bracketSize(n)
	numRounds := bits.TrailingZeros(uint(size))
	order := SeedOrder(size)

	all := make([]*BracketMatch, 0, size)
	current := make([]*node, size)
	for i, seed := range order {
		if seed <= n {
			id := entries[seed-1]
			current[i] = &node{entryID: &id}
		} else {
			current[i] = nil // bye
		}
	}

	byUID := make(map[string]*BracketMatch)
	for r := 1; r <= numRounds; r++ {
		next := make([]*node, 0, len(current)/2)
		for i := 0; i < len(current); i += 2 {
			n1, n2 := current[i], current[i+1]
			position := i/2 + 1

			if n1 == nil || n2 == nil {
				// Bye: участник проходит дальше без матча. Два bye не встречаются,
				// так как n > size/2.
				if n1 == nil && n2 == nil {
					return nil, fmt.Errorf("internal error: two byes met in round %d, position %d", r, position)
				}
				if n1 != nil {
					next = append(next, n1)
				} else {
					next = append(next, n2)
				}
				continue
			}

			uid := fmt.Sprintf("%sR%dM%d", params.Label, r, position)
			bm := &BracketMatch{UID: uid, Round: r, OrderInRound: position}
			attach(bm, n1, 1, byUID)
			attach(bm, n2, 2, byUID)
			byUID[uid] = bm
			all = append(all, bm)
			next = append(next, &node{sourceMatchUID: strPtr(uid)})
		}
		current = next
	}
	if len(current) != 1 {
		return nil, fmt.Errorf("internal error: expected a single final slot, got %d", len(current))
	}

	if params.Tournament != nil && params.Tournament.Settings.ThirdPlaceMatch && numRounds >= 2 {
		semis := make([]*BracketMatch, 0, 2)
		for _, m := range all {
			if m.Round == numRounds-1 {
				semis = append(semis, m)
			}
		}
		// Третье место разыгрывается только если оба полуфинала - настоящие матчи.
		if len(semis) == 2 {
			third := &BracketMatch{
				UID:          params.Label + ThirdPlaceUID,
				Round:        numRounds,
				OrderInRound: 2,
				SourceAUID:   strPtr(semis[0].UID),
				SourceBUID:   strPtr(semis[1].UID),
			}
			semis[0].LoserNextMatchUID = strPtr(third.UID)
			semis[0].LoserToSlot = intPtr(1)
			semis[1].LoserNextMatchUID = strPtr(third.UID)
			semis[1].LoserToSlot = intPtr(2)
			all = append(all, third)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Round != all[j].Round {
			return all[i].Round < all[j].Round
		}
		return all[i].OrderInRound < all[j].OrderInRound
	})
	return all, nil
}

// attach fills slot (1 or 2) of bm from a node and links the source match forward.
func attach(bm *BracketMatch, nd *node, slot int, byUID map[string]*BracketMatch) {
	if nd.entryID != nil {
		if slot == 1 {
			bm.SideA = []int{*nd.entryID}
		} else {
			bm.SideB = []int{*nd.entryID}
		}
		return
	}
	if slot == 1 {
		bm.SourceAUID = nd.sourceMatchUID
	} else {
		bm.SourceBUID = nd.sourceMatchUID
	}
	if src, ok := byUID[*nd.sourceMatchUID]; ok {
		src.NextMatchUID = strPtr(bm.UID)
		src.WinnerToSlot = intPtr(slot)
	}
}

func bracketSize(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// SeedOrder returns the standard bracket positions for a power-of-two size:
// position i holds the seed returned at index i (1 vs size, size/2 vs size/2+1, ...).
func SeedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		total := len(order)*2 + 1
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, total-s)
		}
		order = next
	}
	return order
}
