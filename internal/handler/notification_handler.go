package handler

import (
	"net/http"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/service"
	"PetAlertAPI/internal/websocket"

	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	ruleService service.IRuleService
	hub         *websocket.Hub
	log         *logger.Logger
}

func NewNotificationHandler(ruleService service.IRuleService, hub *websocket.Hub, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		ruleService: ruleService,
		hub:         hub,
		log:         log,
	}
}

func (h *NotificationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/notifications", h.List).Methods("GET")
	r.HandleFunc("/ws/notifications", h.Stream).Methods("GET")
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)

	notifications, err := h.ruleService.ListNotifications(r.Context(), userID(r), limit, offset)
	if err != nil {
		h.log.Error("Failed to list notifications: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, userID(r), w, r, h.log)
}
