package handler

import (
	"context"
	"net/http"
	"time"

	"PetAlertAPI/internal/bus"
	"PetAlertAPI/internal/database"
	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/mqtt"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

type pinger interface {
	Health(ctx context.Context) error
}

type connChecker interface {
	IsConnected() bool
}

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Health(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// HealthHandler reports on Postgres and NATS, which are required, and on the
// push broker and Redis when they are configured.
type HealthHandler struct {
	db    pinger
	nats  connChecker
	mqtt  connChecker
	redis pinger
	log   *logger.Logger
}

func NewHealthHandler(db *database.Database, natsConn *bus.Conn, mqttClient *mqtt.Client, rdb *redis.Client, log *logger.Logger) *HealthHandler {
	h := &HealthHandler{
		db:   db,
		nats: natsConn,
		log:  log,
	}
	if mqttClient != nil {
		h.mqtt = mqttClient
	}
	if rdb != nil {
		h.redis = redisPinger{rdb: rdb}
	}
	return h
}

func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/health/live", h.Liveness).Methods("GET")
	r.HandleFunc("/health/ready", h.Readiness).Methods("GET")
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	response.Services.Database = h.db.Health(ctx) == nil
	response.Services.NATS = h.nats.IsConnected()
	healthy := response.Services.Database && response.Services.NATS

	if h.mqtt != nil {
		response.Services.MQTT = h.mqtt.IsConnected()
		healthy = healthy && response.Services.MQTT
	}
	if h.redis != nil {
		response.Services.Redis = h.redis.Health(ctx) == nil
		healthy = healthy && response.Services.Redis
	}

	statusCode := http.StatusOK
	if !healthy {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
		h.log.Warn("Health check degraded - DB: %v, NATS: %v, MQTT: %v, Redis: %v",
			response.Services.Database, response.Services.NATS, response.Services.MQTT, response.Services.Redis)
	}

	respondJSON(w, statusCode, response)
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.db.Health(ctx)
	natsConnected := h.nats.IsConnected()

	if dbErr != nil || !natsConnected {
		h.log.Warn("Readiness check failed - DB error: %v, NATS connected: %v", dbErr, natsConnected)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
