package handler

import (
	"errors"
	"net/http"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/service"

	"github.com/gorilla/mux"
)

type AlertHandler struct {
	alertService service.IAlertService
	log          *logger.Logger
}

func NewAlertHandler(alertService service.IAlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		log:          log,
	}
}

func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts/trigger/{petId}", h.Trigger).Methods("POST")
	r.HandleFunc("/alerts/batch-check", h.BatchCheck).Methods("POST")
	r.HandleFunc("/alerts/statistics", h.Statistics).Methods("GET")
}

type triggerResponse struct {
	PetID     string                      `json:"petId"`
	Triggered int                         `json:"triggered"`
	Results   []models.AlertTriggerResult `json:"results"`
}

func (h *AlertHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	petID := mux.Vars(r)["petId"]

	results, err := h.alertService.CheckAndTriggerAlerts(r.Context(), petID, userID(r))
	if err != nil {
		if errors.Is(err, models.ErrDetectionUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "anomaly detection is unavailable, try again later")
			return
		}
		if errors.Is(err, models.ErrPetNotOwned) {
			respondError(w, http.StatusNotFound, models.ErrPetNotOwned.Error())
			return
		}
		h.log.Error("Failed to check alerts for pet %s: %v", petID, err)
		respondError(w, http.StatusInternalServerError, "failed to check alerts")
		return
	}

	respondJSON(w, http.StatusOK, triggerResponse{
		PetID:     petID,
		Triggered: len(results),
		Results:   results,
	})
}

func (h *AlertHandler) BatchCheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.alertService.BatchCheckAlerts(r.Context())
	if err != nil {
		h.log.Error("Batch alert check failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *AlertHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.alertService.GetStatistics(r.Context(), userID(r))
	if err != nil {
		h.log.Error("Failed to get alert statistics: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
