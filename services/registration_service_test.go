package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
)

// Незадействованные методы паникуют через встроенный nil-интерфейс.
type stubTeamRepo struct {
	repositories.TeamRepository
	teams map[int]*models.Team
}

func (r stubTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	cp := *team
	cp.PlayerIDs = cloneInts(team.PlayerIDs)
	return &cp, nil
}

type stubPlayerRepo struct {
	repositories.PlayerRepository
	players map[int]*models.Player
}

func (r stubPlayerRepo) GetByID(_ context.Context, id int) (*models.Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

type stubUserRepo struct {
	repositories.UserRepository
}

func (stubUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	return &models.User{ID: id, Email: "org@example.com", Role: models.RoleOrganizer}, nil
}

type registrationFixture struct {
	store *memStore
	svc   RegistrationService
	teams map[int]*models.Team
}

func newRegistrationFixture() *registrationFixture {
	store := newMemStore()
	teams := map[int]*models.Team{}
	players := map[int]*models.Player{}
	for id := 1; id <= 6; id++ {
		players[id] = &models.Player{ID: id, FirstName: "Player", LastName: string(rune('A' + id - 1))}
	}
	svc := NewRegistrationService(RegistrationServiceDeps{
		TournamentRepo:   fakeTournamentRepo{store},
		RegistrationRepo: fakeRegistrationRepo{store},
		TeamRepo:         stubTeamRepo{teams: teams},
		PlayerRepo:       stubPlayerRepo{players: players},
		UserRepo:         stubUserRepo{},
		Tx:               fakeTx{},
		Events:           &recordingPublisher{},
		Logger:           discardLogger(),
		Now:              func() time.Time { return testNow },
	})
	return &registrationFixture{store: store, svc: svc, teams: teams}
}

func (f *registrationFixture) openTournament(t *testing.T, kind models.TournamentKind, teamSize, maxEntries int) *models.Tournament {
	t.Helper()
	tour := &models.Tournament{
		Name:        "Beach Open",
		Kind:        kind,
		OrganizerID: organizerID,
		RegDate:     testNow.Add(-time.Hour),
		StartDate:   testNow.Add(48 * time.Hour),
		EndDate:     testNow.Add(72 * time.Hour),
		TeamSize:    teamSize,
		MaxEntries:  maxEntries,
		Status:      models.StatusRegistration,
	}
	require.NoError(t, fakeTournamentRepo{f.store}.Create(context.Background(), tour))
	return tour
}

func (f *registrationFixture) team(id int, name string, players ...int) {
	f.teams[id] = &models.Team{ID: id, Name: name, PlayerIDs: players}
}

func intPtr(v int) *int { return &v }

func TestRegister_Rules(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		kind     models.TournamentKind
		teamSize int
		status   models.TournamentStatus
		prepare  func(t *testing.T, f *registrationFixture, tournamentID int)
		input    RegisterEntryInput
		wantErr  error
	}{
		{
			name: "team entry", kind: models.KindClassic, teamSize: 2,
			input: RegisterEntryInput{TeamID: intPtr(10)},
		},
		{
			name: "player entry", kind: models.KindKing,
			input: RegisterEntryInput{PlayerID: intPtr(1)},
		},
		{
			name: "team into individual format", kind: models.KindKing,
			input: RegisterEntryInput{TeamID: intPtr(10)}, wantErr: ErrWrongEntryType,
		},
		{
			name: "player into team format", kind: models.KindClassic, teamSize: 2,
			input: RegisterEntryInput{PlayerID: intPtr(1)}, wantErr: ErrWrongEntryType,
		},
		{
			name: "roster size differs", kind: models.KindTeamKing, teamSize: 3,
			input: RegisterEntryInput{TeamID: intPtr(10)}, wantErr: ErrTeamSizeMismatch,
		},
		{
			name: "tournament full", kind: models.KindClassic, teamSize: 2, status: models.StatusFull,
			input: RegisterEntryInput{TeamID: intPtr(10)}, wantErr: ErrTournamentFull,
		},
		{
			name: "registration not open", kind: models.KindClassic, teamSize: 2, status: models.StatusActive,
			input: RegisterEntryInput{TeamID: intPtr(10)}, wantErr: ErrRegistrationNotOpen,
		},
		{
			name: "same team twice", kind: models.KindClassic, teamSize: 2,
			prepare: func(t *testing.T, f *registrationFixture, tournamentID int) {
				_, err := f.svc.Register(ctx, organizer, tournamentID, RegisterEntryInput{TeamID: intPtr(10)})
				require.NoError(t, err)
			},
			input: RegisterEntryInput{TeamID: intPtr(10)}, wantErr: ErrRegistrationConflict,
		},
		{
			name: "player already in another team", kind: models.KindClassic, teamSize: 2,
			prepare: func(t *testing.T, f *registrationFixture, tournamentID int) {
				_, err := f.svc.Register(ctx, organizer, tournamentID, RegisterEntryInput{TeamID: intPtr(10)})
				require.NoError(t, err)
			},
			input: RegisterEntryInput{TeamID: intPtr(11)}, wantErr: ErrPlayerInOtherEntry,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationFixture()
			f.team(10, "Sand Sharks", 1, 2)
			f.team(11, "Net Ninjas", 2, 3)
			tour := f.openTournament(t, tt.kind, tt.teamSize, 0)
			if tt.status != "" {
				require.NoError(t, fakeTournamentRepo{f.store}.UpdateStatus(ctx, nil, tour.ID, tt.status))
			}
			if tt.prepare != nil {
				tt.prepare(t, f, tour.ID)
			}

			reg, err := f.svc.Register(ctx, organizer, tour.ID, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.RegistrationPending, reg.Status)
			assert.Equal(t, tt.input.TeamID, reg.TeamID)
			assert.Equal(t, tt.input.PlayerID, reg.PlayerID)
		})
	}
}

func TestRegister_WithdrawnEntryComesBack(t *testing.T) {
	ctx := context.Background()
	f := newRegistrationFixture()
	f.team(10, "Sand Sharks", 1, 2)
	tour := f.openTournament(t, models.KindClassic, 2, 0)

	first, err := f.svc.Register(ctx, organizer, tour.ID, RegisterEntryInput{TeamID: intPtr(10)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Withdraw(ctx, organizer, first.ID))

	again, err := f.svc.Register(ctx, organizer, tour.ID, RegisterEntryInput{TeamID: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.RegistrationPending, again.Status)

	all, err := fakeRegistrationRepo{f.store}.ListByTournament(ctx, tour.ID, nil, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegister_WithdrawnEntryBlockedBySharedPlayer(t *testing.T) {
	ctx := context.Background()
	f := newRegistrationFixture()
	f.team(10, "Sand Sharks", 1, 2)
	f.team(11, "Net Ninjas", 2, 3)
	tour := f.openTournament(t, models.KindClassic, 2, 0)

	sharks, err := f.svc.Register(ctx, organizer, tour.ID, RegisterEntryInput{TeamID: intPtr(10)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Withdraw(ctx, organizer, sharks.ID))

	// игрок 2 успел заявиться за другую команду
	_, err = f.svc.Register(ctx, organizer, tour.ID, RegisterEntryInput{TeamID: intPtr(11)})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, organizer, tour.ID, RegisterEntryInput{TeamID: intPtr(10)})
	assert.ErrorIs(t, err, ErrPlayerInOtherEntry)

	reg, err := fakeRegistrationRepo{f.store}.GetByID(ctx, sharks.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationWithdrawn, reg.Status)
}
