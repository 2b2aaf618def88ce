package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/volley-tournament/services"
)

type FormatHandler struct {
	formatService services.FormatService
}

func NewFormatHandler(fs services.FormatService) *FormatHandler {
	return &FormatHandler{formatService: fs}
}

// ListPresets godoc
// @Summary Готовые форматы турниров
// @Tags formats
// @Produce json
// @Success 200 {array} config.FormatPreset
// @Router /formats/presets [get]
func (h *FormatHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets := h.formatService.ListPresets(r.Context())
	if err := writeJSON(w, http.StatusOK, jsonResponse{"presets": presets}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *FormatHandler) GetPreset(w http.ResponseWriter, r *http.Request) {
	preset, err := h.formatService.GetPreset(r.Context(), chi.URLParam(r, "presetKey"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"preset": preset}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ApplyPreset godoc
// @Summary Применить готовый формат к турниру
// @Tags formats
// @Description Копирует настройки формата в турнир; для King-форматов заменяет план фаз.
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param body body applyPresetRequest true "Ключ формата"
// @Success 200 {object} models.Tournament
// @Failure 422 {object} map[string]string "Формат другого вида"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/format [post]
func (h *FormatHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
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

	var input applyPresetRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Preset == "" {
		badRequestResponse(w, r, errors.New("preset is required"))
		return
	}

	tournament, err := h.formatService.ApplyPreset(r.Context(), actor, tournamentID, input.Preset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type applyPresetRequest struct {
	Preset string `json:"preset"`
}
