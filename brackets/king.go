package brackets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/volley-tournament/models"
)

const (
	MinKingTeamSize = 2
	MaxKingTeamSize = 6

	teammateWeight = 1000
)

var (
	ErrPhasePlanEmpty      = errors.New("phase plan must contain at least one phase")
	ErrPhaseNumbering      = errors.New("phase numbers must be consecutive starting at 1")
	ErrPhaseInvalidConfig  = errors.New("invalid phase configuration")
	ErrPhaseQuotaMismatch  = errors.New("qualifiers of a phase do not fit the next phase")
	ErrNotEnoughQualifiers = errors.New("not enough entries to fill the qualification quota")
)

// KingRotationGenerator генерирует раунды King of the Beach: игроки пула каждый
// раунд делятся на две стороны, партнёры меняются.
type KingRotationGenerator struct{}

func NewKingRotationGenerator() BracketGenerator {
	return &KingRotationGenerator{}
}

func (g *KingRotationGenerator) GetName() string {
	return "KingRotation"
}

// GenerateBracket plans the rounds of one King pool. With n >= 2*TeamSize each
// round plays 2*TeamSize players and the rest sit out, fewest rounds played
// first. A flexible_king tournament accepts smaller pools and then splits all
// players into sides of n/2 and n-n/2. Splits are picked greedily: fewest repeated
// teammates, then fewest repeated opponents, first candidate on ties, so the
// result is deterministic.
func (g *KingRotationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	players := params.Entries
	k := params.TeamSize
	n := len(players)
	flexible := params.Tournament != nil && params.Tournament.Kind == models.KindFlexibleKing

	if k < MinKingTeamSize || k > MaxKingTeamSize {
		return nil, fmt.Errorf("%w: %d (allowed %d..%d)", ErrInvalidTeamSize, k, MinKingTeamSize, MaxKingTeamSize)
	}
	if n < 2*MinKingTeamSize {
		return nil, fmt.Errorf("%w: king pool needs at least %d players, got %d", ErrNotEnoughEntries, 2*MinKingTeamSize, n)
	}
	if n < 2*k && !flexible {
		return nil, fmt.Errorf("%w: %d players for %dv%d", ErrPoolTooSmallForKing, n, k, k)
	}

	rounds := params.Rounds
	if rounds <= 0 {
		rounds = n - 1
	}

	sizeA, sizeB := k, k
	if n < 2*k {
		sizeA, sizeB = n/2, n-n/2
	}

	st := newRotationState(players)
	matches := make([]*BracketMatch, 0, rounds)
	for r := 1; r <= rounds; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		active := st.pickActive(sizeA+sizeB, r)
		sideA, sideB := st.bestSplit(active, sizeA)
		st.record(sideA, sideB)

		matches = append(matches, &BracketMatch{
			UID:          fmt.Sprintf("%sK%d", params.Label, r),
			Round:        r,
			OrderInRound: 1,
			SideA:        sideA,
			SideB:        sideB,
		})
	}
	return matches, nil
}

type rotationState struct {
	players   []int
	position  map[int]int
	played    map[int]int
	teammates map[[2]int]int
	opponents map[[2]int]int
}

func newRotationState(players []int) *rotationState {
	st := &rotationState{
		players:   players,
		position:  make(map[int]int, len(players)),
		played:    make(map[int]int, len(players)),
		teammates: make(map[[2]int]int),
		opponents: make(map[[2]int]int),
	}
	for i, p := range players {
		st.position[p] = i
	}
	return st
}

// pickActive returns the players of round r: fewest rounds played first, ties
// broken by a position that rotates each round so sit-outs are spread evenly.
func (st *rotationState) pickActive(count, round int) []int {
	n := len(st.players)
	if count >= n {
		out := make([]int, n)
		copy(out, st.players)
		return out
	}
	candidates := make([]int, n)
	copy(candidates, st.players)
	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := st.played[candidates[i]], st.played[candidates[j]]
		if pi != pj {
			return pi < pj
		}
		ri := (st.position[candidates[i]] - round + n*round) % n
		rj := (st.position[candidates[j]] - round + n*round) % n
		return ri < rj
	})
	active := candidates[:count]
	// Восстанавливаем порядок посева, чтобы перебор сплитов был стабильным.
	sort.Slice(active, func(i, j int) bool { return st.position[active[i]] < st.position[active[j]] })
	return active
}

// bestSplit enumerates every way to put sizeA of the active players on side A.
// At most 2*MaxKingTeamSize players are active, whatever the pool size.
// When both sides have equal size the first active player is pinned to side A so
// mirrored splits are not evaluated twice.
func (st *rotationState) bestSplit(active []int, sizeA int) ([]int, []int) {
	m := len(active)
	pinFirst := sizeA*2 == m

	var bestA []int
	bestCost := -1
	chosen := make([]int, 0, sizeA)

	var walk func(start int)
	walk = func(start int) {
		if len(chosen) == sizeA {
			sideA, sideB := splitByMask(active, chosen)
			cost := st.cost(sideA, sideB)
			if bestCost < 0 || cost < bestCost {
				bestCost = cost
				bestA = append(bestA[:0], chosen...)
			}
			return
		}
		for i := start; i < m; i++ {
			if m-i < sizeA-len(chosen) {
				return
			}
			chosen = append(chosen, i)
			walk(i + 1)
			chosen = chosen[:len(chosen)-1]
		}
	}
	if pinFirst {
		chosen = append(chosen, 0)
		walk(1)
	} else {
		walk(0)
	}
	return splitByMask(active, bestA)
}

func splitByMask(active []int, idxA []int) ([]int, []int) {
	inA := make(map[int]bool, len(idxA))
	for _, i := range idxA {
		inA[i] = true
	}
	sideA := make([]int, 0, len(idxA))
	sideB := make([]int, 0, len(active)-len(idxA))
	for i, p := range active {
		if inA[i] {
			sideA = append(sideA, p)
		} else {
			sideB = append(sideB, p)
		}
	}
	return sideA, sideB
}

func (st *rotationState) cost(sideA, sideB []int) int {
	cost := 0
	for _, side := range [][]int{sideA, sideB} {
		for i := 0; i < len(side); i++ {
			for j := i + 1; j < len(side); j++ {
				cost += teammateWeight * st.teammates[pairKey(side[i], side[j])]
			}
		}
	}
	for _, a := range sideA {
		for _, b := range sideB {
			cost += st.opponents[pairKey(a, b)]
		}
	}
	return cost
}

func (st *rotationState) record(sideA, sideB []int) {
	for _, side := range [][]int{sideA, sideB} {
		for i := 0; i < len(side); i++ {
			st.played[side[i]]++
			for j := i + 1; j < len(side); j++ {
				st.teammates[pairKey(side[i], side[j])]++
			}
		}
	}
	for _, a := range sideA {
		for _, b := range sideB {
			st.opponents[pairKey(a, b)]++
		}
	}
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// SnakeDistribute deals entries (best first) into poolCount pools in serpentine
// order: 1..P, then P..1, and so on.
func SnakeDistribute(entries []int, poolCount int) [][]int {
	if poolCount <= 0 {
		return nil
	}
	pools := make([][]int, poolCount)
	for i, id := range entries {
		lap := i / poolCount
		pos := i % poolCount
		if lap%2 == 1 {
			pos = poolCount - 1 - pos
		}
		pools[pos] = append(pools[pos], id)
	}
	return pools
}

// SelectQualifiers picks perPool entries from each ranked pool and then
// repechage more from the best remaining entries across all pools. The result is
// ordered by place in pool, then across pools by CompareAcrossPools, and the
// repechage entries come last.
func SelectQualifiers(pools [][]models.Standing, perPool, repechage int) ([]int, error) {
	if perPool < 0 || repechage < 0 {
		return nil, fmt.Errorf("%w: negative quota", ErrPhaseInvalidConfig)
	}
	qualified := make([]int, 0, len(pools)*perPool+repechage)
	for place := 0; place < perPool; place++ {
		tier := make([]models.Standing, 0, len(pools))
		for i, pool := range pools {
			if place >= len(pool) {
				return nil, fmt.Errorf("%w: pool %d has %d entries, quota is %d", ErrNotEnoughQualifiers, i+1, len(pool), perPool)
			}
			tier = append(tier, pool[place])
		}
		sort.SliceStable(tier, func(i, j int) bool { return CompareAcrossPools(tier[i], tier[j]) })
		for _, st := range tier {
			qualified = append(qualified, st.EntryID)
		}
	}

	if repechage > 0 {
		rest := make([]models.Standing, 0)
		for _, pool := range pools {
			if len(pool) > perPool {
				rest = append(rest, pool[perPool:]...)
			}
		}
		if len(rest) < repechage {
			return nil, fmt.Errorf("%w: %d repechage slots, %d candidates", ErrNotEnoughQualifiers, repechage, len(rest))
		}
		sort.SliceStable(rest, func(i, j int) bool { return CompareAcrossPools(rest[i], rest[j]) })
		for _, st := range rest[:repechage] {
			qualified = append(qualified, st.EntryID)
		}
	}
	return qualified, nil
}

// MinPoolSize is the smallest pool a phase of this kind can be played with.
func MinPoolSize(kind models.TournamentKind, teamSize int) int {
	switch kind {
	case models.KindKing:
		return 2 * teamSize
	case models.KindFlexibleKing:
		return 2 * MinKingTeamSize
	default:
		return 2
	}
}

// ValidatePhasePlan checks a phase plan without knowing how many entries will
// confirm. entries is the number of confirmed registrations, or 0 when unknown.
func ValidatePhasePlan(kind models.TournamentKind, phases []models.Phase, entries int) error {
	if len(phases) == 0 {
		return ErrPhasePlanEmpty
	}
	for i, p := range phases {
		if p.Number != i+1 {
			return fmt.Errorf("%w: phase at position %d has number %d", ErrPhaseNumbering, i+1, p.Number)
		}
		if p.PoolCount < 1 || p.QualifiersPerPool < 1 || p.RepechageSlots < 0 || p.RoundsPerPool < 0 {
			return fmt.Errorf("%w: phase %d needs pools >= 1, qualifiers >= 1, repechage >= 0", ErrPhaseInvalidConfig, p.Number)
		}
		if kind.IsIndividual() && (p.TeamSize < MinKingTeamSize || p.TeamSize > MaxKingTeamSize) {
			return fmt.Errorf("%w: phase %d team size %d", ErrInvalidTeamSize, p.Number, p.TeamSize)
		}

		incoming := entries
		if i > 0 {
			incoming = phases[i-1].QualifierCount()
		}
		if incoming == 0 {
			continue
		}
		minSize := MinPoolSize(kind, p.TeamSize)
		if incoming < p.PoolCount*minSize {
			return fmt.Errorf("%w: phase %d gets %d entries, needs at least %d for %d pools",
				ErrPhaseQuotaMismatch, p.Number, incoming, p.PoolCount*minSize, p.PoolCount)
		}
		smallestPool := incoming / p.PoolCount
		if p.QualifiersPerPool > smallestPool {
			return fmt.Errorf("%w: phase %d qualifies %d per pool but pools may hold only %d",
				ErrPhaseQuotaMismatch, p.Number, p.QualifiersPerPool, smallestPool)
		}
		if p.QualifierCount() > incoming {
			return fmt.Errorf("%w: phase %d qualifies %d of %d entries", ErrPhaseQuotaMismatch, p.Number, p.QualifierCount(), incoming)
		}
	}
	return nil
}
