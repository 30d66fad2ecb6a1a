package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/service"

	"github.com/gorilla/mux"
)

type RuleHandler struct {
	ruleService service.IRuleService
	log         *logger.Logger
}

func NewRuleHandler(ruleService service.IRuleService, log *logger.Logger) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
		log:         log,
	}
}

func (h *RuleHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts/rules", h.List).Methods("GET")
	r.HandleFunc("/alerts/rules", h.Create).Methods("POST")
	r.HandleFunc("/alerts/rules/defaults", h.CreateDefaults).Methods("POST")
	r.HandleFunc("/alerts/rules/{id}", h.Delete).Methods("DELETE")
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleService.ListRules(r.Context(), userID(r))
	if err != nil {
		h.log.Error("Failed to list rules: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, rules)
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRuleRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.ruleService.CreateRule(r.Context(), userID(r), &req)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: vErr.Error(), Field: vErr.Field})
			return
		}
		h.log.Error("Failed to create rule: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

func (h *RuleHandler) CreateDefaults(w http.ResponseWriter, r *http.Request) {
	created, err := h.ruleService.CreateDefaultRules(r.Context(), userID(r))
	if err != nil {
		h.log.Error("Failed to create default rules: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"created": len(created),
		"rules":   created,
	})
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ruleID := mux.Vars(r)["id"]

	deleted, err := h.ruleService.DeleteRule(r.Context(), userID(r), ruleID)
	if err != nil {
		h.log.Error("Failed to delete rule %s: %v", ruleID, err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, models.ErrRuleNotFound.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "rule deleted"})
}
