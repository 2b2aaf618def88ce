package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/services"
)

type memoryStore struct {
	mu   sync.Mutex
	docs map[int]Snapshot
}

func (m *memoryStore) Save(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[int]Snapshot{}
	}
	m.docs[s.TournamentID] = s
	return nil
}

func (m *memoryStore) Get(_ context.Context, id int) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.docs[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return &s, nil
}

type stubLoader struct {
	t      *models.Tournament
	tables []services.PoolStandings
	err    error
}

func (s stubLoader) GetOverview(context.Context, int) (*models.Tournament, error) {
	return s.t, s.err
}

func (s stubLoader) TournamentStandings(context.Context, int) ([]services.PoolStandings, error) {
	return s.tables, nil
}

func completedTournament() (*models.Tournament, []services.PoolStandings) {
	winner := 11
	side := models.SideA
	seed := 1
	phaseID := 4
	t := &models.Tournament{
		ID:                   3,
		Name:                 "King of Varna",
		Kind:                 models.KindKing,
		Status:               models.StatusCompleted,
		WinnerRegistrationID: &winner,
		Registrations: []models.Registration{
			{ID: 11, Status: models.RegistrationConfirmed, Seed: &seed, Player: &models.Player{FirstName: "Ivan", LastName: "Petrov"}},
			{ID: 12, Status: models.RegistrationConfirmed, Player: &models.Player{FirstName: "Oleg"}},
			{ID: 13, Status: models.RegistrationWithdrawn},
		},
		Phases: []models.Phase{{ID: phaseID, Number: 1, Name: "Final", TeamSize: 2, Promoted: []int{11}}},
		Matches: []models.Match{
			{ID: 1, Stage: models.StageKing, Round: 1, SideA: []int{11}, SideB: []int{12},
				Sets: models.Sets{{A: 21, B: 18}}, Status: models.MatchStatusCompleted, WinnerSide: &side},
			{ID: 2, Stage: models.StageKing, Round: 2, SideA: []int{11}, SideB: []int{12}, Status: models.MatchStatusScheduled},
		},
	}
	tables := []services.PoolStandings{{
		Pool: models.Pool{ID: 9, PhaseID: &phaseID, Name: "A"},
		Standings: []models.Standing{
			{EntryID: 11, Name: "Ivan Petrov", Rank: 1, Wins: 1, SetsWon: 1, PointsFor: 21, PointsAgainst: 18},
			{EntryID: 12, Name: "Oleg", Rank: 2, Losses: 1, SetsLost: 1, PointsFor: 18, PointsAgainst: 21},
		},
	}}
	return t, tables
}

func TestBuildSnapshot(t *testing.T) {
	tour, tables := completedTournament()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	snap := BuildSnapshot(tour, tables, now)

	require.NotNil(t, snap.Winner)
	assert.Equal(t, Entry{RegistrationID: 11, Name: "Ivan Petrov", Seed: 1}, *snap.Winner)
	assert.Len(t, snap.Entries, 2, "withdrawn entries are not archived")
	assert.Equal(t, []Match{{ID: 1, Stage: "king", Round: 1, SideA: []int{11}, SideB: []int{12}, Score: "21-18", Winner: models.SideA}}, snap.Matches)

	wantTables := []Table{{
		Title: "Final, pool A",
		Rows: []Row{
			{Rank: 1, RegistrationID: 11, Name: "Ivan Petrov", Wins: 1, SetDiff: 1, PointDiff: 3},
			{Rank: 2, RegistrationID: 12, Name: "Oleg", Losses: 1, SetDiff: -1, PointDiff: -3},
		},
	}}
	if diff := cmp.Diff(wantTables, snap.Tables); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, now, snap.ArchivedAt)
}

func TestArchiver_ArchiveTournament(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("completed tournament is saved", func(t *testing.T) {
		tour, tables := completedTournament()
		store := &memoryStore{}
		loader := stubLoader{t: tour, tables: tables}
		a := NewArchiver(loader, loader, store, logger)

		require.NoError(t, a.ArchiveTournament(ctx, tour.ID))
		got, err := a.Get(ctx, tour.ID)
		require.NoError(t, err)
		assert.Equal(t, "King of Varna", got.Name)
	})

	t.Run("unfinished tournament is skipped", func(t *testing.T) {
		tour, tables := completedTournament()
		tour.Status = models.StatusActive
		store := &memoryStore{}
		loader := stubLoader{t: tour, tables: tables}
		a := NewArchiver(loader, loader, store, logger)

		require.NoError(t, a.ArchiveTournament(ctx, tour.ID))
		_, err := a.Get(ctx, tour.ID)
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("load error", func(t *testing.T) {
		boom := errors.New("db down")
		a := NewArchiver(stubLoader{err: boom}, stubLoader{}, &memoryStore{}, logger)
		assert.ErrorIs(t, a.ArchiveTournament(ctx, 1), boom)
	})
}
