package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/services"
)

type RegistrationHandler struct {
	registrationService services.RegistrationService
}

func NewRegistrationHandler(rs services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationService: rs}
}

// Register godoc
// @Summary Подать заявку на турнир
// @Tags registrations
// @Description Командные форматы принимают team_id, индивидуальные King-форматы принимают player_id.
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param body body services.RegisterEntryInput true "Команда или игрок"
// @Success 201 {object} models.Registration
// @Failure 409 {object} map[string]string "Регистрация закрыта, турнир полон или уже зарегистрирован"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/registrations [post]
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
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

	var input services.RegisterEntryInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if (input.TeamID == nil) == (input.PlayerID == nil) {
		badRequestResponse(w, r, errors.New("exactly one of team_id or player_id is required"))
		return
	}

	reg, err := h.registrationService.Register(r.Context(), actor, tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// List обрабатывает GET /tournaments/{tournamentID}/registrations?status=
func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.RegistrationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.RegistrationStatus(raw)
		if !s.Valid() {
			badRequestResponse(w, r, errors.New("invalid status query parameter"))
			return
		}
		status = &s
	}

	regs, err := h.registrationService.ListRegistrations(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": regs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Update обрабатывает PATCH /registrations/{registrationID}: статус и посев.
func (h *RegistrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.UpdateRegistrationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	reg, err := h.registrationService.UpdateRegistration(r.Context(), actor, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Withdraw обрабатывает DELETE /registrations/{registrationID}
func (h *RegistrationHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.registrationService.Withdraw(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import godoc
// @Summary Импорт игроков из XLSX
// @Tags registrations
// @Accept multipart/form-data
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param file formData file true "Лист с колонками first_name, last_name"
// @Success 201 {object} services.ImportResult
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/registrations/import [post]
func (h *RegistrationHandler) Import(w http.ResponseWriter, r *http.Request) {
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

	file, _, err := formFile(w, r, "file")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	result, err := h.registrationService.ImportPlayers(r.Context(), actor, tournamentID, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
