package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
)

var testNow = time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore - общее in-memory хранилище для фейковых репозиториев.
type memStore struct {
	mu            sync.Mutex
	nextID        int
	tournaments   map[int]*models.Tournament
	registrations map[int]*models.Registration
	pools         map[int]*models.Pool
	phases        map[int]*models.Phase
	matches       map[int]*models.Match
}

func newMemStore() *memStore {
	return &memStore{
		tournaments:   map[int]*models.Tournament{},
		registrations: map[int]*models.Registration{},
		pools:         map[int]*models.Pool{},
		phases:        map[int]*models.Phase{},
		matches:       map[int]*models.Match{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func cloneInts(v []int) []int {
	if v == nil {
		return nil
	}
	return append([]int(nil), v...)
}

// --- tournaments ---

type fakeTournamentRepo struct{ s *memStore }

func (r fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	cp := *t
	r.s.tournaments[t.ID] = &cp
	return nil
}

func (r fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r fakeTournamentRepo) GetByIDForUpdate(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, id)
}

func (r fakeTournamentRepo) List(_ context.Context, _ repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Tournament, 0, len(r.s.tournaments))
	for _, t := range r.s.tournaments {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	cp := *t
	r.s.tournaments[t.ID] = &cp
	return nil
}

func (r fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r fakeTournamentRepo) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.tournaments, id)
	return nil
}

func (r fakeTournamentRepo) UpdateLogoKey(_ context.Context, id int, key *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tournaments[id].LogoKey = key
	return nil
}

func (r fakeTournamentRepo) UpdateWinner(_ context.Context, _ repositories.SQLExecutor, id int, winner *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tournaments[id].WinnerRegistrationID = winner
	return nil
}

func (r fakeTournamentRepo) ListNonTerminal(_ context.Context, _ repositories.SQLExecutor) ([]*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.s.tournaments {
		if !t.Status.IsTerminal() {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r fakeTournamentRepo) Count(_ context.Context, status *models.TournamentStatus) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.tournaments {
		if status == nil || t.Status == *status {
			n++
		}
	}
	return n, nil
}

// --- registrations ---

type fakeRegistrationRepo struct{ s *memStore }

func (r fakeRegistrationRepo) Create(_ context.Context, _ repositories.SQLExecutor, reg *models.Registration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reg.ID = r.s.id()
	cp := *reg
	r.s.registrations[reg.ID] = &cp
	return nil
}

func (r fakeRegistrationRepo) GetByID(_ context.Context, id int) (*models.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reg, ok := r.s.registrations[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r fakeRegistrationRepo) ListByTournament(_ context.Context, tournamentID int, status *models.RegistrationStatus, _ bool) ([]*models.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Registration, 0)
	for _, reg := range r.s.registrations {
		if reg.TournamentID == tournamentID && (status == nil || reg.Status == *status) {
			cp := *reg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeRegistrationRepo) UpdateStatus(_ context.Context, id int, status models.RegistrationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reg, ok := r.s.registrations[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = status
	return nil
}

func (r fakeRegistrationRepo) UpdateSeed(_ context.Context, id int, seed *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reg, ok := r.s.registrations[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Seed = seed
	return nil
}

func (r fakeRegistrationRepo) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.registrations, id)
	return nil
}

func (r fakeRegistrationRepo) CountByStatus(_ context.Context, tournamentID int, status models.RegistrationStatus) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, reg := range r.s.registrations {
		if reg.TournamentID == tournamentID && reg.Status == status {
			n++
		}
	}
	return n, nil
}

func (r fakeRegistrationRepo) CountAllByStatus(_ context.Context, status models.RegistrationStatus) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, reg := range r.s.registrations {
		if reg.Status == status {
			n++
		}
	}
	return n, nil
}

// --- pools ---

type fakePoolRepo struct{ s *memStore }

func (r fakePoolRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Pool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	cp := *p
	cp.EntryIDs = cloneInts(p.EntryIDs)
	r.s.pools[p.ID] = &cp
	return nil
}

func (r fakePoolRepo) GetByID(_ context.Context, id int) (*models.Pool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pools[id]
	if !ok {
		return nil, repositories.ErrPoolNotFound
	}
	cp := *p
	return &cp, nil
}

func (r fakePoolRepo) list(keep func(*models.Pool) bool) []models.Pool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Pool, 0)
	for _, p := range r.s.pools {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r fakePoolRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.Pool, error) {
	return r.list(func(p *models.Pool) bool { return p.TournamentID == tournamentID }), nil
}

func (r fakePoolRepo) ListByPhase(_ context.Context, _ repositories.SQLExecutor, phaseID int) ([]models.Pool, error) {
	return r.list(func(p *models.Pool) bool { return p.PhaseID != nil && *p.PhaseID == phaseID }), nil
}

func (r fakePoolRepo) deleteWhere(keep func(*models.Pool) bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, p := range r.s.pools {
		if keep(p) {
			continue
		}
		delete(r.s.pools, id)
		for mid, m := range r.s.matches {
			if m.PoolID != nil && *m.PoolID == id {
				delete(r.s.matches, mid)
			}
		}
	}
}

func (r fakePoolRepo) DeleteStageByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	r.deleteWhere(func(p *models.Pool) bool { return p.TournamentID != tournamentID || p.PhaseID != nil })
	return nil
}

func (r fakePoolRepo) DeleteByPhase(_ context.Context, _ repositories.SQLExecutor, phaseID int) error {
	r.deleteWhere(func(p *models.Pool) bool { return p.PhaseID == nil || *p.PhaseID != phaseID })
	return nil
}

// --- phases ---

type fakePhaseRepo struct{ s *memStore }

func (r fakePhaseRepo) ReplacePlan(_ context.Context, _ repositories.SQLExecutor, tournamentID int, phases []models.Phase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, p := range r.s.phases {
		if p.TournamentID == tournamentID {
			delete(r.s.phases, id)
		}
	}
	for _, p := range phases {
		cp := p
		cp.ID = r.s.id()
		cp.TournamentID = tournamentID
		cp.Status = models.PhaseConfigured
		r.s.phases[cp.ID] = &cp
	}
	return nil
}

func (r fakePhaseRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.Phase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Phase, 0)
	for _, p := range r.s.phases {
		if p.TournamentID == tournamentID {
			cp := *p
			cp.Promoted = cloneInts(p.Promoted)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r fakePhaseRepo) GetByID(_ context.Context, id int) (*models.Phase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.phases[id]
	if !ok {
		return nil, repositories.ErrPhaseNotFound
	}
	cp := *p
	cp.Promoted = cloneInts(p.Promoted)
	return &cp, nil
}

func (r fakePhaseRepo) GetByIDForUpdate(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Phase, error) {
	return r.GetByID(ctx, id)
}

func (r fakePhaseRepo) MarkStarted(_ context.Context, _ repositories.SQLExecutor, id int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.phases[id]
	p.Status = models.PhaseInProgress
	p.StartedAt = &at
	return nil
}

func (r fakePhaseRepo) MarkCompleted(_ context.Context, _ repositories.SQLExecutor, id int, promoted []int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.phases[id]
	p.Status = models.PhaseCompleted
	p.Promoted = cloneInts(promoted)
	p.CompletedAt = &at
	return nil
}

// --- matches ---

type fakeMatchRepo struct{ s *memStore }

func cloneMatch(m *models.Match) *models.Match {
	cp := *m
	cp.SideA = cloneInts(m.SideA)
	cp.SideB = cloneInts(m.SideB)
	cp.Sets = append(models.Sets(nil), m.Sets...)
	return &cp
}

func (r fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.id()
	r.s.matches[m.ID] = cloneMatch(m)
	return nil
}

func (r fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (r fakeMatchRepo) GetByIDForUpdate(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r fakeMatchRepo) List(_ context.Context, _ repositories.SQLExecutor, f repositories.ListMatchesFilter) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		switch {
		case f.TournamentID != nil && m.TournamentID != *f.TournamentID,
			f.Stage != nil && m.Stage != *f.Stage,
			f.PoolID != nil && (m.PoolID == nil || *m.PoolID != *f.PoolID),
			f.PhaseID != nil && (m.PhaseID == nil || *m.PhaseID != *f.PhaseID),
			f.Status != nil && m.Status != *f.Status:
			continue
		}
		out = append(out, cloneMatch(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		if out[i].OrderInRound != out[j].OrderInRound {
			return out[i].OrderInRound < out[j].OrderInRound
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r fakeMatchRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id int, sets models.Sets, status models.MatchStatus, winner *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Sets = append(models.Sets(nil), sets...)
	m.Status = status
	m.WinnerSide = winner
	return nil
}

func (r fakeMatchRepo) UpdateLinks(_ context.Context, _ repositories.SQLExecutor, id int, next, winnerSlot, loserNext, loserSlot *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.s.matches[id]
	m.NextMatchID, m.WinnerToSlot, m.LoserNextMatchID, m.LoserToSlot = next, winnerSlot, loserNext, loserSlot
	return nil
}

func (r fakeMatchRepo) SetSlot(_ context.Context, _ repositories.SQLExecutor, id int, slot int, entries []int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if slot == models.SideA {
		m.SideA = cloneInts(entries)
	} else {
		m.SideB = cloneInts(entries)
	}
	return nil
}

func (r fakeMatchRepo) UpdateSchedule(_ context.Context, id int, court *string, at *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Court, m.ScheduledAt = court, at
	return nil
}

func (r fakeMatchRepo) DeleteByStage(_ context.Context, _ repositories.SQLExecutor, tournamentID int, stage models.MatchStage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.matches {
		if m.TournamentID == tournamentID && m.Stage == stage {
			delete(r.s.matches, id)
		}
	}
	return nil
}

func (r fakeMatchRepo) Count(_ context.Context, status *models.MatchStatus) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, m := range r.s.matches {
		if status == nil || m.Status == *status {
			n++
		}
	}
	return n, nil
}

// --- tx / events ---

// fakeTx runs fn without a transaction; the fakes ignore exec.
type fakeTx struct{}

func (fakeTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type recordedEvent struct {
	topic        string
	tournamentID int
	payload      any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, tournamentID int, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, tournamentID: tournamentID, payload: payload})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

// engine bundles the stage services over one in-memory store.
type engine struct {
	store   *memStore
	events  *recordingPublisher
	pools   PoolService
	bracket BracketService
	king    KingService
	matches MatchService
}

func newEngine() *engine {
	store := newMemStore()
	pub := &recordingPublisher{}
	deps := StageServiceDeps{
		TournamentRepo:   fakeTournamentRepo{store},
		RegistrationRepo: fakeRegistrationRepo{store},
		PoolRepo:         fakePoolRepo{store},
		MatchRepo:        fakeMatchRepo{store},
		PhaseRepo:        fakePhaseRepo{store},
		Tx:               fakeTx{},
		Events:           pub,
		Logger:           discardLogger(),
		Now:              func() time.Time { return testNow },
	}
	return &engine{
		store:   store,
		events:  pub,
		pools:   NewPoolService(deps),
		bracket: NewBracketService(deps),
		king:    NewKingService(deps),
		matches: NewMatchService(deps),
	}
}

const organizerID = 7

var organizer = Actor{UserID: organizerID, Role: models.RoleOrganizer}

// seedTournament stores a tournament with n confirmed registrations; registration i gets seed i.
func (e *engine) seedTournament(kind models.TournamentKind, teamSize, n int, settings models.TournamentSettings) (*models.Tournament, []int) {
	t := &models.Tournament{
		Name:        "Beach Open",
		Kind:        kind,
		OrganizerID: organizerID,
		RegDate:     testNow.Add(-72 * time.Hour),
		StartDate:   testNow.Add(-time.Hour),
		EndDate:     testNow.Add(48 * time.Hour),
		TeamSize:    teamSize,
		Status:      models.StatusActive,
		Settings:    settings,
	}
	_ = fakeTournamentRepo{e.store}.Create(context.Background(), t)
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		seed := i + 1
		reg := &models.Registration{TournamentID: t.ID, Status: models.RegistrationConfirmed, Seed: &seed}
		_ = fakeRegistrationRepo{e.store}.Create(context.Background(), nil, reg)
		ids[i] = reg.ID
	}
	return t, ids
}

// straightSets is a 2:0 result for the given side.
func straightSets(side int) models.Sets {
	if side == models.SideA {
		return models.Sets{{A: 21, B: 15}, {A: 21, B: 17}}
	}
	return models.Sets{{A: 15, B: 21}, {A: 17, B: 21}}
}
