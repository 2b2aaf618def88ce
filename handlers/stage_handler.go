package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/volley-tournament/services"
)

// StageHandler - пулы, плей-офф и фазы King.
type StageHandler struct {
	poolService    services.PoolService
	bracketService services.BracketService
	kingService    services.KingService
	exportService  services.ExportService
}

func NewStageHandler(ps services.PoolService, bs services.BracketService, ks services.KingService, es services.ExportService) *StageHandler {
	return &StageHandler{
		poolService:    ps,
		bracketService: bs,
		kingService:    ks,
		exportService:  es,
	}
}

// CreatePools godoc
// @Summary Разбить подтверждённые заявки на пулы змейкой
// @Tags pools
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param body body object false "pool_count; 0 берёт значение из настроек турнира"
// @Success 201 {array} models.Pool
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/pools [post]
func (h *StageHandler) CreatePools(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		PoolCount int `json:"pool_count"`
	}
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	if input.PoolCount < 0 {
		badRequestResponse(w, r, errors.New("pool_count must not be negative"))
		return
	}

	pools, err := h.poolService.CreatePools(r.Context(), actor, tournamentID, input.PoolCount)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"pools": pools}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListPools отдаёт пулы турнира вместе с таблицами.
func (h *StageHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tables, err := h.poolService.TournamentStandings(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pools": tables}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StageHandler) PoolStandings(w http.ResponseWriter, r *http.Request) {
	poolID, err := getIDFromURL(r, "poolID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	table, err := h.poolService.PoolStandings(r.Context(), poolID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, table, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PoolChart обрабатывает GET /pools/{poolID}/chart.png
func (h *StageHandler) PoolChart(w http.ResponseWriter, r *http.Request) {
	poolID, err := getIDFromURL(r, "poolID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	png, err := h.exportService.PoolChart(r.Context(), poolID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// GenerateBracket godoc
// @Summary Построить плей-офф по итогам пулов (или по посеву, если пулов нет)
// @Tags bracket
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 201 {array} models.Match
// @Failure 409 {object} map[string]string "Пулы не доиграны или сетка уже играется"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/bracket [post]
func (h *StageHandler) GenerateBracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	matches, err := h.bracketService.GenerateBracket(r.Context(), actor, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StageHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.bracketService.GetBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StageHandler) GetPhases(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	phases, err := h.kingService.GetPhases(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"phases": phases}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type configurePhasesRequest struct {
	Phases []services.PhaseInput `json:"phases"`
}

// ConfigurePhases godoc
// @Summary Заменить план фаз King-турнира
// @Tags phases
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param body body configurePhasesRequest true "Фазы по порядку"
// @Success 200 {array} models.Phase
// @Failure 409 {object} map[string]string "Фаза уже началась"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/phases [put]
func (h *StageHandler) ConfigurePhases(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input configurePhasesRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	phases, err := h.kingService.ConfigurePhases(r.Context(), actor, tournamentID, input.Phases)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"phases": phases}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartPhase обрабатывает POST /phases/{phaseID}/start
func (h *StageHandler) StartPhase(w http.ResponseWriter, r *http.Request) {
	h.phaseTransition(w, r, h.kingService.StartPhase)
}

// CompletePhase обрабатывает POST /phases/{phaseID}/complete
func (h *StageHandler) CompletePhase(w http.ResponseWriter, r *http.Request) {
	h.phaseTransition(w, r, h.kingService.CompletePhase)
}

func (h *StageHandler) phaseTransition(w http.ResponseWriter, r *http.Request, step func(ctx context.Context, actor services.Actor, phaseID int) (*services.PhaseView, error)) {
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	view, err := step(r.Context(), actor, phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StageHandler) PhaseStandings(w http.ResponseWriter, r *http.Request) {
	phaseID, err := getIDFromURL(r, "phaseID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.kingService.PhaseStandings(r.Context(), phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, view, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
