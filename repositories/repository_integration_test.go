//go:build integration

package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Dosada05/volley-tournament/db"
	"github.com/Dosada05/volley-tournament/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("volley"),
		postgres.WithUsername("volley"),
		postgres.WithPassword("volley"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Connect(dsn, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.Migrate(ctx, conn))
	// повторное применение схемы не должно падать
	require.NoError(t, db.Migrate(ctx, conn))
	return conn
}

func createOrganizer(t *testing.T, conn *sql.DB) *models.User {
	t.Helper()
	u := &models.User{
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		Email:        gofakeit.Email(),
		PasswordHash: "hash",
		Role:         models.RoleOrganizer,
	}
	require.NoError(t, NewPostgresUserRepository(conn).Create(context.Background(), u))
	return u
}

func createTournament(t *testing.T, conn *sql.DB, organizerID int, kind models.TournamentKind) *models.Tournament {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	tr := &models.Tournament{
		Name:        gofakeit.Company() + " Open",
		Kind:        kind,
		OrganizerID: organizerID,
		RegDate:     now.Add(-time.Hour),
		StartDate:   now.Add(24 * time.Hour),
		EndDate:     now.Add(48 * time.Hour),
		MaxEntries:  16,
		TeamSize:    2,
		Status:      models.StatusRegistration,
		Settings:    models.TournamentSettings{PoolCount: 2, QualifiersPerPool: 2, SetsToWin: 2, ThirdPlaceMatch: true},
	}
	require.NoError(t, NewPostgresTournamentRepository(conn).Create(context.Background(), tr))
	return tr
}

func TestRepositoriesIntegration(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()

	users := NewPostgresUserRepository(conn)
	players := NewPostgresPlayerRepository(conn)
	teams := NewPostgresTeamRepository(conn)
	tournaments := NewPostgresTournamentRepository(conn)
	registrations := NewPostgresRegistrationRepository(conn)
	phases := NewPostgresPhaseRepository(conn)
	pools := NewPostgresPoolRepository(conn)
	matches := NewPostgresMatchRepository(conn)

	organizer := createOrganizer(t, conn)

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		dup := &models.User{FirstName: "A", Email: organizer.Email, PasswordHash: "x", Role: models.RolePlayer}
		assert.ErrorIs(t, users.Create(ctx, dup), ErrUserEmailConflict)
	})

	t.Run("tournament settings round trip", func(t *testing.T) {
		tr := createTournament(t, conn, organizer.ID, models.KindClassic)
		got, err := tournaments.GetByID(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, tr.Settings, got.Settings)
		assert.Equal(t, models.StatusRegistration, got.Status)

		_, err = tournaments.GetByID(ctx, tr.ID+1000)
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("team registration and duplicate conflict", func(t *testing.T) {
		tr := createTournament(t, conn, organizer.ID, models.KindClassic)

		p1 := &models.Player{FirstName: gofakeit.FirstName(), LastName: gofakeit.LastName()}
		p2 := &models.Player{FirstName: gofakeit.FirstName(), LastName: gofakeit.LastName()}
		require.NoError(t, players.Create(ctx, nil, p1))
		require.NoError(t, players.Create(ctx, nil, p2))

		team := &models.Team{Name: gofakeit.Animal() + " " + gofakeit.Color(), PlayerIDs: []int{p1.ID, p2.ID}}
		require.NoError(t, teams.Create(ctx, team))

		gotTeam, err := teams.GetByID(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{p1.ID, p2.ID}, gotTeam.PlayerIDs)

		reg := &models.Registration{TournamentID: tr.ID, TeamID: &team.ID, Status: models.RegistrationPending}
		require.NoError(t, registrations.Create(ctx, nil, reg))

		dup := &models.Registration{TournamentID: tr.ID, TeamID: &team.ID, Status: models.RegistrationPending}
		assert.ErrorIs(t, registrations.Create(ctx, nil, dup), ErrRegistrationConflict)

		require.NoError(t, registrations.UpdateStatus(ctx, reg.ID, models.RegistrationConfirmed))
		confirmed := models.RegistrationConfirmed
		list, err := registrations.ListByTournament(ctx, tr.ID, &confirmed, true)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.NotNil(t, list[0].Team)
		assert.Equal(t, team.Name, list[0].Team.Name)

		assert.ErrorIs(t, teams.Delete(ctx, team.ID), ErrTeamInUse)

		require.NoError(t, players.Delete(ctx, p2.ID))
		gotTeam, err = teams.GetByID(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{p1.ID}, gotTeam.PlayerIDs)
	})

	t.Run("phase plan, pools and matches", func(t *testing.T) {
		tr := createTournament(t, conn, organizer.ID, models.KindKing)

		plan := []models.Phase{
			{Number: 1, Name: "4x4", TeamSize: 4, PoolCount: 2, QualifiersPerPool: 3, RepechageSlots: 2},
			{Number: 2, Name: "2x2", TeamSize: 2, PoolCount: 1, QualifiersPerPool: 1},
		}
		tx, err := conn.BeginTx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, phases.ReplacePlan(ctx, tx, tr.ID, plan))
		require.NoError(t, tx.Commit())

		stored, err := phases.ListByTournament(ctx, nil, tr.ID)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, models.PhaseConfigured, stored[0].Status)

		pool := &models.Pool{TournamentID: tr.ID, PhaseID: &stored[0].ID, Name: "A", Position: 1, EntryIDs: []int{3, 1, 2}}
		require.NoError(t, pools.Create(ctx, nil, pool))

		uid := "F1P1-K1"
		m := &models.Match{
			TournamentID: tr.ID, Stage: models.StageKing, PoolID: &pool.ID, PhaseID: &stored[0].ID,
			Round: 1, OrderInRound: 1, BracketUID: &uid, SideA: []int{1, 2}, SideB: []int{3},
		}
		require.NoError(t, matches.Create(ctx, nil, m))

		dupUID := *m
		assert.ErrorIs(t, matches.Create(ctx, nil, &dupUID), ErrMatchUIDConflict)

		winner := models.SideA
		sets := models.Sets{{A: 21, B: 15}}
		require.NoError(t, matches.UpdateResult(ctx, nil, m.ID, sets, models.MatchStatusCompleted, &winner))

		got, err := matches.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, sets, got.Sets)
		assert.True(t, got.IsCompleted())
		assert.Equal(t, []int{1, 2}, got.Winners())

		now := time.Now().UTC()
		require.NoError(t, phases.MarkCompleted(ctx, nil, stored[0].ID, []int{1, 2}, now))
		phase, err := phases.GetByID(ctx, stored[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseCompleted, phase.Status)
		assert.Equal(t, []int{1, 2}, phase.Promoted)

		require.NoError(t, pools.DeleteByPhase(ctx, nil, stored[0].ID))
		_, err = matches.GetByID(ctx, m.ID)
		assert.ErrorIs(t, err, ErrMatchNotFound)
	})
}
