package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volley-tournament/brackets"
	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
)

var twoPhasePlan = []PhaseInput{
	{Name: "2x2 qualification", TeamSize: 2, PoolCount: 2, QualifiersPerPool: 2, RoundsPerPool: 3},
	{Name: "2x2 final", TeamSize: 2, PoolCount: 1, QualifiersPerPool: 1, RoundsPerPool: 3},
}

func TestKingFlow_TwoPhases(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	tour, ids := e.seedTournament(models.KindKing, 0, 8, models.TournamentSettings{})

	phases, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, twoPhasePlan)
	require.NoError(t, err)
	require.Len(t, phases, 2)
	assert.Equal(t, models.PhaseConfigured, phases[0].Status)

	_, err = e.king.StartPhase(ctx, organizer, phases[1].ID)
	assert.ErrorIs(t, err, ErrPhaseNotStartable, "second phase waits for the first")

	view, err := e.king.StartPhase(ctx, organizer, phases[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseInProgress, view.Phase.Status)
	require.Len(t, view.Pools, 2)
	assert.Equal(t, []int{ids[0], ids[3], ids[4], ids[7]}, view.Pools[0].Pool.EntryIDs)

	_, err = e.king.ConfigurePhases(ctx, organizer, tour.ID, twoPhasePlan)
	assert.ErrorIs(t, err, ErrPhasePlanLocked)

	_, err = e.king.CompletePhase(ctx, organizer, phases[0].ID)
	assert.ErrorIs(t, err, ErrPhaseNotCompletable)

	phaseID := phases[0].ID
	kingMatches, err := e.matches.ListMatches(ctx, repositories.ListMatchesFilter{PhaseID: &phaseID})
	require.NoError(t, err)
	require.Len(t, kingMatches, 6, "three rotation rounds per pool")
	for _, m := range kingMatches {
		assert.Len(t, m.SideA, 2)
		assert.Len(t, m.SideB, 2)
		assert.Equal(t, models.StageKing, m.Stage)
	}
	e.playAll(t, repositories.ListMatchesFilter{PhaseID: &phaseID})

	view, err = e.king.CompletePhase(ctx, organizer, phases[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, view.Phase.Status)
	require.Len(t, view.Phase.Promoted, 4)
	assert.Contains(t, view.Phase.Promoted, ids[0])
	assert.Contains(t, view.Phase.Promoted, ids[1])
	assert.Len(t, view.Promoted, 4)

	_, err = e.matches.RecordResult(ctx, organizer, kingMatches[0].ID, straightSets(models.SideB))
	assert.ErrorIs(t, err, ErrPhaseClosed)

	view, err = e.king.StartPhase(ctx, organizer, phases[1].ID)
	require.NoError(t, err)
	require.Len(t, view.Pools, 1)
	assert.ElementsMatch(t, view.Pools[0].Pool.EntryIDs, e.phase(t, phases[0].ID).Promoted)

	finalID := phases[1].ID
	e.playAll(t, repositories.ListMatchesFilter{PhaseID: &finalID})
	view, err = e.king.CompletePhase(ctx, organizer, finalID)
	require.NoError(t, err)
	assert.Equal(t, []int{ids[0]}, view.Phase.Promoted)

	done := e.tournament(t, tour.ID)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.WinnerRegistrationID)
	assert.Equal(t, ids[0], *done.WinnerRegistrationID)
	assert.Contains(t, e.events.topics(), events.TopicTournamentCompleted)
}

func (e *engine) phase(t *testing.T, id int) *models.Phase {
	t.Helper()
	p, err := fakePhaseRepo{e.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestConfigurePhases_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("classic tournament", func(t *testing.T) {
		e := newEngine()
		tour, _ := e.seedTournament(models.KindClassic, 2, 8, models.TournamentSettings{})
		_, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, twoPhasePlan)
		assert.ErrorIs(t, err, ErrWrongTournamentKind)
	})
	t.Run("empty plan", func(t *testing.T) {
		e := newEngine()
		tour, _ := e.seedTournament(models.KindKing, 0, 8, models.TournamentSettings{})
		_, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, nil)
		assert.ErrorIs(t, err, ErrValidationFailed)
	})
	t.Run("team size out of range", func(t *testing.T) {
		e := newEngine()
		tour, _ := e.seedTournament(models.KindKing, 0, 8, models.TournamentSettings{})
		_, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, []PhaseInput{{TeamSize: 7, PoolCount: 1, QualifiersPerPool: 1}})
		assert.ErrorIs(t, err, ErrValidationFailed)
	})
	t.Run("too few players for the pools", func(t *testing.T) {
		e := newEngine()
		tour, _ := e.seedTournament(models.KindKing, 0, 6, models.TournamentSettings{})
		_, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, twoPhasePlan)
		assert.ErrorIs(t, err, ErrValidationFailed)
	})
	t.Run("only the organizer", func(t *testing.T) {
		e := newEngine()
		tour, _ := e.seedTournament(models.KindKing, 0, 8, models.TournamentSettings{})
		_, err := e.king.ConfigurePhases(ctx, Actor{UserID: 1, Role: models.RoleOrganizer}, tour.ID, twoPhasePlan)
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})
}

func TestTeamKing_UsesRoundRobinPools(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	tour, _ := e.seedTournament(models.KindTeamKing, 2, 6, models.TournamentSettings{})

	phases, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, []PhaseInput{
		{Name: "Groups", PoolCount: 2, QualifiersPerPool: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, phases[0].TeamSize, "team king phases take the tournament team size")

	view, err := e.king.StartPhase(ctx, organizer, phases[0].ID)
	require.NoError(t, err)
	require.Len(t, view.Pools, 2)

	phaseID := phases[0].ID
	matches, err := e.matches.ListMatches(ctx, repositories.ListMatchesFilter{PhaseID: &phaseID})
	require.NoError(t, err)
	assert.Len(t, matches, 6, "two round robins of three")
	for _, m := range matches {
		assert.Len(t, m.SideA, 1)
		assert.Len(t, m.SideB, 1)
	}
}

func TestCompletePhase_Repechage(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	tour, _ := e.seedTournament(models.KindKing, 0, 12, models.TournamentSettings{})

	phases, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, []PhaseInput{
		{Name: "Groups", TeamSize: 2, PoolCount: 3, QualifiersPerPool: 1, RepechageSlots: 1, RoundsPerPool: 3},
		{Name: "Final", TeamSize: 2, PoolCount: 1, QualifiersPerPool: 1, RoundsPerPool: 3},
	})
	require.NoError(t, err)

	_, err = e.king.StartPhase(ctx, organizer, phases[0].ID)
	require.NoError(t, err)
	phaseID := phases[0].ID
	e.playAll(t, repositories.ListMatchesFilter{PhaseID: &phaseID})

	view, err := e.king.CompletePhase(ctx, organizer, phaseID)
	require.NoError(t, err)
	require.Len(t, view.Pools, 3)
	require.Len(t, view.Phase.Promoted, 4, "three pool winners and one repechage place")

	winners := make([]int, 0, 3)
	var rest []models.Standing
	for _, table := range view.Pools {
		winners = append(winners, table.Standings[0].EntryID)
		rest = append(rest, table.Standings[1:]...)
	}
	assert.ElementsMatch(t, winners, view.Phase.Promoted[:3])

	best := rest[0]
	for _, st := range rest[1:] {
		if brackets.CompareAcrossPools(st, best) {
			best = st
		}
	}
	assert.Equal(t, best.EntryID, view.Phase.Promoted[3])
	assert.NotContains(t, winners, view.Phase.Promoted[3])

	view, err = e.king.StartPhase(ctx, organizer, phases[1].ID)
	require.NoError(t, err)
	require.Len(t, view.Pools, 1)
	assert.Empty(t, view.Phase.Promoted)
	assert.ElementsMatch(t, e.phase(t, phaseID).Promoted, view.Pools[0].Pool.EntryIDs)
}

func TestFlexibleKing_SmallPoolSplitsEveryone(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	tour, ids := e.seedTournament(models.KindFlexibleKing, 0, 5, models.TournamentSettings{})

	phases, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, []PhaseInput{
		{Name: "3x3", TeamSize: 3, PoolCount: 1, QualifiersPerPool: 1},
	})
	require.NoError(t, err)

	view, err := e.king.StartPhase(ctx, organizer, phases[0].ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, view.Pools[0].Pool.EntryIDs)

	phaseID := phases[0].ID
	matches, err := e.matches.ListMatches(ctx, repositories.ListMatchesFilter{PhaseID: &phaseID})
	require.NoError(t, err)
	require.Len(t, matches, 4, "n-1 rounds by default")
	for _, m := range matches {
		assert.Len(t, m.SideA, 2)
		assert.Len(t, m.SideB, 3)
		assert.ElementsMatch(t, ids, append(append([]int(nil), m.SideA...), m.SideB...))
	}

	e.playAll(t, repositories.ListMatchesFilter{PhaseID: &phaseID})
	view, err = e.king.CompletePhase(ctx, organizer, phaseID)
	require.NoError(t, err)
	require.Len(t, view.Phase.Promoted, 1)
	assert.Equal(t, models.StatusCompleted, e.tournament(t, tour.ID).Status)
}

func TestKing_LargePoolStarts(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	tour, ids := e.seedTournament(models.KindKing, 0, 20, models.TournamentSettings{})

	phases, err := e.king.ConfigurePhases(ctx, organizer, tour.ID, []PhaseInput{
		{Name: "4x4", TeamSize: 4, PoolCount: 1, QualifiersPerPool: 4},
	})
	require.NoError(t, err)

	view, err := e.king.StartPhase(ctx, organizer, phases[0].ID)
	require.NoError(t, err)
	require.Len(t, view.Pools, 1)
	assert.Len(t, view.Pools[0].Pool.EntryIDs, 20)

	phaseID := phases[0].ID
	matches, err := e.matches.ListMatches(ctx, repositories.ListMatchesFilter{PhaseID: &phaseID})
	require.NoError(t, err)
	require.Len(t, matches, len(ids)-1)
	for _, m := range matches {
		assert.Len(t, m.SideA, 4)
		assert.Len(t, m.SideB, 4)
	}
}
