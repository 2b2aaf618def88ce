package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"github.com/Dosada05/volley-tournament/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// ListTournamentMatches обрабатывает GET /tournaments/{tournamentID}/matches?stage=&pool_id=&phase_id=&status=
func (h *MatchHandler) ListTournamentMatches(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	filter := repositories.ListMatchesFilter{TournamentID: &tournamentID}
	query := r.URL.Query()
	if raw := query.Get("stage"); raw != "" {
		stage := models.MatchStage(raw)
		switch stage {
		case models.StagePool, models.StageBracket, models.StageKing:
		default:
			badRequestResponse(w, r, errors.New("invalid stage query parameter"))
			return
		}
		filter.Stage = &stage
	}
	if raw := query.Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		switch status {
		case models.MatchStatusScheduled, models.MatchStatusCompleted, models.MatchStatusCanceled:
		default:
			badRequestResponse(w, r, errors.New("invalid status query parameter"))
			return
		}
		filter.Status = &status
	}
	if filter.PoolID, err = optionalIntQuery(r, "pool_id"); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if filter.PhaseID, err = optionalIntQuery(r, "phase_id"); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListMatches(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type recordResultRequest struct {
	Sets models.Sets `json:"sets"`
}

// RecordResult godoc
// @Summary Записать счёт матча по сетам
// @Tags matches
// @Description Победитель определяется по сетам и продвигается в следующий матч сетки.
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param body body recordResultRequest true "Сеты"
// @Success 200 {object} models.Match
// @Failure 409 {object} map[string]string "Стороны не определены, фаза закрыта или следующий матч уже сыгран"
// @Failure 422 {object} map[string]string "Некорректный счёт"
// @Security BearerAuth
// @Router /matches/{matchID}/result [put]
func (h *MatchHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input recordResultRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.Sets) == 0 {
		badRequestResponse(w, r, errors.New("at least one set is required"))
		return
	}

	match, err := h.matchService.RecordResult(r.Context(), actor, id, input.Sets)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResetResult обрабатывает DELETE /matches/{matchID}/result
func (h *MatchHandler) ResetResult(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	match, err := h.matchService.ResetResult(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateSchedule обрабатывает PATCH /matches/{matchID}/schedule
func (h *MatchHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.ScheduleInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.UpdateSchedule(r.Context(), actor, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
