package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/volley-tournament/middleware"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"github.com/Dosada05/volley-tournament/services"
)

// Незадействованные методы паникуют через встроенный nil-интерфейс.
type stubMatchService struct {
	services.MatchService
	recordErr   error
	gotActor    services.Actor
	gotSets     models.Sets
	gotFilter   repositories.ListMatchesFilter
	listMatches []*models.Match
}

func (s *stubMatchService) RecordResult(_ context.Context, actor services.Actor, matchID int, sets models.Sets) (*models.Match, error) {
	s.gotActor = actor
	s.gotSets = sets
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	return &models.Match{ID: matchID, Stage: models.StageBracket, Sets: sets}, nil
}

func (s *stubMatchService) ListMatches(_ context.Context, filter repositories.ListMatchesFilter) ([]*models.Match, error) {
	s.gotFilter = filter
	return s.listMatches, nil
}

type stubRegistrationService struct {
	services.RegistrationService
	registerErr error
	gotInput    services.RegisterEntryInput
}

func (s *stubRegistrationService) Register(_ context.Context, _ services.Actor, tournamentID int, input services.RegisterEntryInput) (*models.Registration, error) {
	s.gotInput = input
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &models.Registration{ID: 7, TournamentID: tournamentID, TeamID: input.TeamID, PlayerID: input.PlayerID, Status: models.RegistrationPending}, nil
}

func serve(t *testing.T, method, pattern, target, body string, h http.HandlerFunc, withActor bool) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Method(method, pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withActor {
		req = req.WithContext(middleware.WithClaims(req.Context(), 42, models.RoleOrganizer))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRecordResult(t *testing.T) {
	const pattern = "/matches/{matchID}/result"

	t.Run("records sets for the authenticated actor", func(t *testing.T) {
		ms := &stubMatchService{}
		h := NewMatchHandler(ms)

		rec := serve(t, http.MethodPut, pattern, "/matches/5/result", `{"sets":[{"a":21,"b":15},{"a":21,"b":19}]}`, h.RecordResult, true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, services.Actor{UserID: 42, Role: models.RoleOrganizer}, ms.gotActor)
		assert.Equal(t, models.Sets{{A: 21, B: 15}, {A: 21, B: 19}}, ms.gotSets)
		match := decodeBody(t, rec)["match"].(map[string]any)
		assert.EqualValues(t, 5, match["id"])
	})

	tests := []struct {
		name       string
		target     string
		body       string
		withActor  bool
		serviceErr error
		wantStatus int
	}{
		{name: "no sets", target: "/matches/5/result", body: `{"sets":[]}`, withActor: true, wantStatus: http.StatusBadRequest},
		{name: "unknown field", target: "/matches/5/result", body: `{"score":"2:0"}`, withActor: true, wantStatus: http.StatusBadRequest},
		{name: "bad id", target: "/matches/abc/result", body: `{"sets":[{"a":21,"b":15}]}`, withActor: true, wantStatus: http.StatusBadRequest},
		{name: "anonymous", target: "/matches/5/result", body: `{"sets":[{"a":21,"b":15}]}`, wantStatus: http.StatusUnauthorized},
		{name: "tied set", target: "/matches/5/result", body: `{"sets":[{"a":21,"b":21}]}`, withActor: true,
			serviceErr: fmt.Errorf("%w: set 1 is tied", services.ErrInvalidMatchResult), wantStatus: http.StatusUnprocessableEntity},
		{name: "sides not known yet", target: "/matches/5/result", body: `{"sets":[{"a":21,"b":15}]}`, withActor: true,
			serviceErr: services.ErrMatchNotReady, wantStatus: http.StatusConflict},
		{name: "pool stage locked by bracket", target: "/matches/5/result", body: `{"sets":[{"a":21,"b":15}]}`, withActor: true,
			serviceErr: services.ErrPoolStageLocked, wantStatus: http.StatusConflict},
		{name: "missing match", target: "/matches/5/result", body: `{"sets":[{"a":21,"b":15}]}`, withActor: true,
			serviceErr: services.ErrMatchNotFound, wantStatus: http.StatusNotFound},
		{name: "not the organizer", target: "/matches/5/result", body: `{"sets":[{"a":21,"b":15}]}`, withActor: true,
			serviceErr: services.ErrForbiddenOperation, wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMatchHandler(&stubMatchService{recordErr: tt.serviceErr})
			rec := serve(t, http.MethodPut, pattern, tt.target, tt.body, h.RecordResult, tt.withActor)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, decodeBody(t, rec), "error")
		})
	}
}

func TestListTournamentMatches_Filters(t *testing.T) {
	const pattern = "/tournaments/{tournamentID}/matches"

	ms := &stubMatchService{listMatches: []*models.Match{{ID: 1}, {ID: 2}}}
	h := NewMatchHandler(ms)

	rec := serve(t, http.MethodGet, pattern, "/tournaments/3/matches?stage=pool&pool_id=9&status=scheduled", "", h.ListTournamentMatches, false)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, ms.gotFilter.TournamentID)
	assert.Equal(t, 3, *ms.gotFilter.TournamentID)
	require.NotNil(t, ms.gotFilter.Stage)
	assert.Equal(t, models.StagePool, *ms.gotFilter.Stage)
	require.NotNil(t, ms.gotFilter.PoolID)
	assert.Equal(t, 9, *ms.gotFilter.PoolID)
	require.NotNil(t, ms.gotFilter.Status)
	assert.Equal(t, models.MatchStatusScheduled, *ms.gotFilter.Status)
	assert.Nil(t, ms.gotFilter.PhaseID)
	assert.Len(t, decodeBody(t, rec)["matches"], 2)

	for _, query := range []string{"stage=final", "status=done", "pool_id=-1", "phase_id=x"} {
		rec := serve(t, http.MethodGet, pattern, "/tournaments/3/matches?"+query, "", h.ListTournamentMatches, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestRegister(t *testing.T) {
	const pattern = "/tournaments/{tournamentID}/registrations"

	t.Run("player entry", func(t *testing.T) {
		rs := &stubRegistrationService{}
		h := NewRegistrationHandler(rs)

		rec := serve(t, http.MethodPost, pattern, "/tournaments/4/registrations", `{"player_id":11}`, h.Register, true)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, rs.gotInput.PlayerID)
		assert.Equal(t, 11, *rs.gotInput.PlayerID)
		assert.Nil(t, rs.gotInput.TeamID)
		reg := decodeBody(t, rec)["registration"].(map[string]any)
		assert.Equal(t, "pending", reg["status"])
	})

	t.Run("needs exactly one entry kind", func(t *testing.T) {
		h := NewRegistrationHandler(&stubRegistrationService{})
		for _, body := range []string{`{}`, `{"team_id":1,"player_id":2}`} {
			rec := serve(t, http.MethodPost, pattern, "/tournaments/4/registrations", body, h.Register, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("full tournament", func(t *testing.T) {
		h := NewRegistrationHandler(&stubRegistrationService{registerErr: services.ErrTournamentFull})
		rec := serve(t, http.MethodPost, pattern, "/tournaments/4/registrations", `{"team_id":3}`, h.Register, true)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("team into individual format", func(t *testing.T) {
		h := NewRegistrationHandler(&stubRegistrationService{registerErr: services.ErrWrongEntryType})
		rec := serve(t, http.MethodPost, pattern, "/tournaments/4/registrations", `{"team_id":3}`, h.Register, true)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{query: "", wantLimit: defaultPageLimit},
		{query: "limit=5&offset=10", wantLimit: 5, wantOffset: 10},
		{query: "limit=1000", wantLimit: maxPageLimit},
		{query: "limit=0", wantErr: true},
		{query: "offset=-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			limit, offset, err := pagination(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
