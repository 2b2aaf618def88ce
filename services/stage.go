package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/volley-tournament/brackets"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
)

// PoolStandings - таблица одного пула.
type PoolStandings struct {
	Pool      models.Pool       `json:"pool"`
	Standings []models.Standing `json:"standings"`
	Complete  bool              `json:"complete"`
}

// persistMatches сохраняет сгенерированные матчи и связывает их по UID.
// Первый проход создаёт строки, второй проставляет next/loser ссылки.
func persistMatches(ctx context.Context, exec repositories.SQLExecutor, repo repositories.MatchRepository, base models.Match, generated []*brackets.BracketMatch) ([]*models.Match, error) {
	created := make([]*models.Match, 0, len(generated))
	byUID := make(map[string]*models.Match, len(generated))

	for _, bm := range generated {
		uid := bm.UID
		m := base
		m.ID = 0
		m.BracketUID = &uid
		m.Round = bm.Round
		m.OrderInRound = bm.OrderInRound
		m.SideA = bm.SideA
		m.SideB = bm.SideB
		m.Status = models.MatchStatusScheduled
		if err := repo.Create(ctx, exec, &m); err != nil {
			return nil, fmt.Errorf("failed to create match %s: %w", uid, err)
		}
		byUID[uid] = &m
		created = append(created, &m)
	}

	for _, bm := range generated {
		if bm.NextMatchUID == nil && bm.LoserNextMatchUID == nil {
			continue
		}
		m := byUID[bm.UID]
		if bm.NextMatchUID != nil {
			next, ok := byUID[*bm.NextMatchUID]
			if !ok {
				return nil, fmt.Errorf("match %s links to unknown match %s", bm.UID, *bm.NextMatchUID)
			}
			m.NextMatchID = &next.ID
			m.WinnerToSlot = bm.WinnerToSlot
		}
		if bm.LoserNextMatchUID != nil {
			next, ok := byUID[*bm.LoserNextMatchUID]
			if !ok {
				return nil, fmt.Errorf("match %s links to unknown match %s", bm.UID, *bm.LoserNextMatchUID)
			}
			m.LoserNextMatchID = &next.ID
			m.LoserToSlot = bm.LoserToSlot
		}
		if err := repo.UpdateLinks(ctx, exec, m.ID, m.NextMatchID, m.WinnerToSlot, m.LoserNextMatchID, m.LoserToSlot); err != nil {
			return nil, fmt.Errorf("failed to link match %s: %w", bm.UID, err)
		}
	}
	return created, nil
}

// poolSeeds ranks pool entries by their position in the pool (snake order).
func poolSeeds(pool models.Pool) map[int]int {
	seeds := make(map[int]int, len(pool.EntryIDs))
	for i, id := range pool.EntryIDs {
		seeds[id] = i + 1
	}
	return seeds
}

func matchesOfPool(matches []*models.Match, poolID int) []*models.Match {
	out := make([]*models.Match, 0)
	for _, m := range matches {
		if m.PoolID != nil && *m.PoolID == poolID {
			out = append(out, m)
		}
	}
	return out
}

func allCompleted(matches []*models.Match) bool {
	for _, m := range matches {
		if m.Status != models.MatchStatusCanceled && !m.IsCompleted() {
			return false
		}
	}
	return true
}

func anyCompleted(matches []*models.Match) bool {
	for _, m := range matches {
		if m.IsCompleted() {
			return true
		}
	}
	return false
}

// rankPool builds the table of one pool from its matches.
func rankPool(t *models.Tournament, pool models.Pool, matches []*models.Match, names map[int]string) PoolStandings {
	own := matchesOfPool(matches, pool.ID)
	table := brackets.ComputeStandings(brackets.RankingInput{
		Entries: pool.EntryIDs,
		Matches: own,
		Order:   t.Settings.TieBreaks(t.Kind),
		Seeds:   poolSeeds(pool),
	})
	for i := range table {
		table[i].Name = names[table[i].EntryID]
	}
	return PoolStandings{Pool: pool, Standings: table, Complete: len(own) > 0 && allCompleted(own)}
}

// mapEngineError translates engine and repository errors into service sentinels.
func mapEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, brackets.ErrNotEnoughEntries),
		errors.Is(err, brackets.ErrNotEnoughQualifiers),
		errors.Is(err, brackets.ErrPoolTooSmallForKing):
		return fmt.Errorf("%w: %v", ErrNotEnoughEntries, err)
	case errors.Is(err, brackets.ErrInvalidTeamSize),
		errors.Is(err, brackets.ErrPhasePlanEmpty),
		errors.Is(err, brackets.ErrPhaseNumbering),
		errors.Is(err, brackets.ErrPhaseInvalidConfig),
		errors.Is(err, brackets.ErrPhaseQuotaMismatch):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrPoolNotFound):
		return ErrPoolNotFound
	case errors.Is(err, repositories.ErrPhaseNotFound):
		return ErrPhaseNotFound
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	}
	return err
}
