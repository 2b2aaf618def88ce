package brackets

import (
	"context"
	"fmt"
	"sort"
)

const byeSlot = -1

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket creates the matches of one pool using the circle method.
// Every pair meets once per leg, nobody plays twice in a round and with an odd
// number of entries the bye rotates. A double round robin repeats the schedule
// with sides swapped.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	entries := params.Entries
	if len(entries) < 2 {
		return nil, fmt.Errorf("%w: round robin needs at least 2 entries, got %d", ErrNotEnoughEntries, len(entries))
	}

	legs := 1
	if params.Tournament != nil && params.Tournament.Settings.DoubleRoundRobin {
		legs = 2
	}

	slots := make([]int, len(entries))
	copy(slots, entries)
	if len(slots)%2 == 1 {
		slots = append(slots, byeSlot)
	}
	n := len(slots)
	roundsPerLeg := n - 1

	matches := make([]*BracketMatch, 0, legs*len(entries)*(len(entries)-1)/2)
	for leg := 0; leg < legs; leg++ {
		rotation := make([]int, n)
		copy(rotation, slots)

		for r := 0; r < roundsPerLeg; r++ {
			round := leg*roundsPerLeg + r + 1
			order := 0
			for i := 0; i < n/2; i++ {
				a, b := rotation[i], rotation[n-1-i]
				if a == byeSlot || b == byeSlot {
					continue
				}
				// Фиксированный первый слот чередует стороны, иначе он всегда был бы стороной A.
				if i == 0 && r%2 == 1 {
					a, b = b, a
				}
				if leg == 1 {
					a, b = b, a
				}
				order++
				matches = append(matches, &BracketMatch{
					UID:          fmt.Sprintf("%sRR%d-M%d", params.Label, round, order),
					Round:        round,
					OrderInRound: order,
					SideA:        []int{a},
					SideB:        []int{b},
				})
			}
			rotateCircle(rotation)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Round != matches[j].Round {
			return matches[i].Round < matches[j].Round
		}
		return matches[i].OrderInRound < matches[j].OrderInRound
	})
	return matches, nil
}

// rotateCircle keeps slot 0 fixed and moves every other slot one step clockwise.
func rotateCircle(slots []int) {
	if len(slots) < 3 {
		return
	}
	last := slots[len(slots)-1]
	copy(slots[2:], slots[1:len(slots)-1])
	slots[1] = last
}
