package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/models"
)

func datedTournament(status models.TournamentStatus, maxEntries int) *models.Tournament {
	return &models.Tournament{
		Name:        "Beach Open",
		Kind:        models.KindClassic,
		OrganizerID: organizerID,
		RegDate:     testNow.Add(24 * time.Hour),
		StartDate:   testNow.Add(72 * time.Hour),
		EndDate:     testNow.Add(96 * time.Hour),
		MaxEntries:  maxEntries,
		Status:      status,
	}
}

func TestComputeStatus(t *testing.T) {
	winner := 3
	tests := []struct {
		name      string
		status    models.TournamentStatus
		max       int
		confirmed int
		winner    *int
		now       time.Time
		want      models.TournamentStatus
	}{
		{name: "before registration", status: models.StatusSoon, now: testNow, want: models.StatusSoon},
		{name: "registration open", status: models.StatusSoon, max: 8, confirmed: 7, now: testNow.Add(25 * time.Hour), want: models.StatusRegistration},
		{name: "full at max entries", status: models.StatusRegistration, max: 8, confirmed: 8, now: testNow.Add(25 * time.Hour), want: models.StatusFull},
		{name: "no limit never full", status: models.StatusRegistration, confirmed: 100, now: testNow.Add(25 * time.Hour), want: models.StatusRegistration},
		{name: "started", status: models.StatusFull, max: 8, confirmed: 8, now: testNow.Add(72 * time.Hour), want: models.StatusActive},
		{name: "end date passed", status: models.StatusActive, now: testNow.Add(96 * time.Hour), want: models.StatusCompleted},
		{name: "winner set", status: models.StatusActive, winner: &winner, now: testNow.Add(73 * time.Hour), want: models.StatusCompleted},
		{name: "canceled stays canceled", status: models.StatusCanceled, now: testNow.Add(96 * time.Hour), want: models.StatusCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tour := datedTournament(tt.status, tt.max)
			tour.WinnerRegistrationID = tt.winner
			assert.Equal(t, tt.want, ComputeStatus(tour, tt.confirmed, tt.now))
		})
	}
}

func TestIsValidStatusTransition(t *testing.T) {
	tests := []struct {
		from, to models.TournamentStatus
		want     bool
	}{
		{models.StatusSoon, models.StatusRegistration, true},
		{models.StatusSoon, models.StatusActive, false},
		{models.StatusRegistration, models.StatusFull, true},
		{models.StatusFull, models.StatusRegistration, true},
		{models.StatusFull, models.StatusActive, true},
		{models.StatusRegistration, models.StatusSoon, false},
		{models.StatusActive, models.StatusCompleted, true},
		{models.StatusActive, models.StatusRegistration, false},
		{models.StatusActive, models.StatusCanceled, true},
		{models.StatusCompleted, models.StatusActive, false},
		{models.StatusCanceled, models.StatusRegistration, false},
		{models.StatusCompleted, models.StatusCompleted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, isValidStatusTransition(tt.from, tt.to))
		})
	}
}

func TestShouldAutoApply(t *testing.T) {
	tests := []struct {
		current, computed models.TournamentStatus
		want              bool
	}{
		{models.StatusSoon, models.StatusRegistration, true},
		{models.StatusRegistration, models.StatusFull, true},
		{models.StatusFull, models.StatusRegistration, true},
		{models.StatusRegistration, models.StatusActive, true},
		{models.StatusActive, models.StatusCompleted, true},
		{models.StatusActive, models.StatusActive, false},
		// ручной перевод вперёд не откатывается по датам
		{models.StatusActive, models.StatusRegistration, false},
		{models.StatusRegistration, models.StatusSoon, false},
		{models.StatusCompleted, models.StatusActive, false},
		{models.StatusCanceled, models.StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.current)+"->"+string(tt.computed), func(t *testing.T) {
			assert.Equal(t, tt.want, shouldAutoApply(tt.current, tt.computed))
		})
	}
}

func TestAutoUpdateTournamentStatusesByDates(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	tournaments := fakeTournamentRepo{store}
	registrations := fakeRegistrationRepo{store}
	svc := NewTournamentService(TournamentServiceDeps{
		TournamentRepo:   tournaments,
		RegistrationRepo: registrations,
		PoolRepo:         fakePoolRepo{store},
		MatchRepo:        fakeMatchRepo{store},
		PhaseRepo:        fakePhaseRepo{store},
		Tx:               fakeTx{},
		Events:           pub,
		Logger:           discardLogger(),
		Now:              func() time.Time { return testNow },
	})
	ctx := context.Background()

	create := func(status models.TournamentStatus, shift time.Duration, maxEntries, confirmed int) int {
		tour := datedTournament(status, maxEntries)
		tour.RegDate = tour.RegDate.Add(shift)
		tour.StartDate = tour.StartDate.Add(shift)
		tour.EndDate = tour.EndDate.Add(shift)
		require.NoError(t, tournaments.Create(ctx, tour))
		for i := 0; i < confirmed; i++ {
			require.NoError(t, registrations.Create(ctx, nil, &models.Registration{TournamentID: tour.ID, Status: models.RegistrationConfirmed}))
		}
		return tour.ID
	}

	stillSoon := create(models.StatusSoon, 0, 0, 0)
	opened := create(models.StatusSoon, -30*time.Hour, 0, 0)
	filled := create(models.StatusRegistration, -30*time.Hour, 2, 2)
	reopened := create(models.StatusFull, -30*time.Hour, 4, 2)
	started := create(models.StatusRegistration, -80*time.Hour, 0, 0)
	finished := create(models.StatusActive, -100*time.Hour, 0, 0)
	manual := create(models.StatusActive, -30*time.Hour, 0, 0)
	canceled := create(models.StatusCanceled, -100*time.Hour, 0, 0)

	changed, err := svc.AutoUpdateTournamentStatusesByDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, changed)

	want := map[int]models.TournamentStatus{
		stillSoon: models.StatusSoon,
		opened:    models.StatusRegistration,
		filled:    models.StatusFull,
		reopened:  models.StatusRegistration,
		started:   models.StatusActive,
		finished:  models.StatusCompleted,
		manual:    models.StatusActive,
		canceled:  models.StatusCanceled,
	}
	for id, status := range want {
		tour, err := tournaments.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, tour.Status, "tournament %d", id)
	}
	assert.Len(t, pub.events, 5)
	for _, topic := range pub.topics() {
		assert.Equal(t, events.TopicTournamentUpdated, topic)
	}

	changed, err = svc.AutoUpdateTournamentStatusesByDates(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
