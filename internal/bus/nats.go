package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PetAlertAPI/internal/config"
	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"

	"github.com/nats-io/nats.go"
)

// Conn wraps the NATS connection shared by the detector client and the
// trigger publisher.
type Conn struct {
	nc  *nats.Conn
	cfg *config.NATSConfig
	log *logger.Logger
}

func Connect(cfg *config.NATSConfig, log *logger.Logger) (*Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("petalert-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.URL, err)
	}

	return &Conn{nc: nc, cfg: cfg, log: log}, nil
}

func (c *Conn) Close() {
	if c.nc != nil {
		c.nc.Drain()
		c.nc.Close()
	}
}

func (c *Conn) IsConnected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

type detectRequest struct {
	PetID string `json:"petId"`
}

type detectReply struct {
	Anomalies []models.AnomalyEvent `json:"anomalies"`
	Error     string                `json:"error,omitempty"`
}

// DetectAnomalies asks the detection service for the pet's current anomalies.
// Every failure is reported as ErrDetectionUnavailable.
func (c *Conn) DetectAnomalies(ctx context.Context, petID string) ([]models.AnomalyEvent, error) {
	body, err := json.Marshal(detectRequest{PetID: petID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDetectionUnavailable, err)
	}

	if _, ok := ctx.Deadline(); !ok && c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	msg, err := c.nc.RequestWithContext(ctx, c.cfg.DetectSubject, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDetectionUnavailable, err)
	}

	return decodeDetectReply(msg.Data)
}

func decodeDetectReply(data []byte) ([]models.AnomalyEvent, error) {
	var reply detectReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("%w: malformed reply: %v", models.ErrDetectionUnavailable, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", models.ErrDetectionUnavailable, reply.Error)
	}
	if reply.Anomalies == nil {
		return []models.AnomalyEvent{}, nil
	}
	return reply.Anomalies, nil
}

// PublishTriggered announces a triggered alert on the triggered subject.
func (c *Conn) PublishTriggered(ctx context.Context, result *models.AlertTriggerResult) error {
	if result == nil {
		return errors.New("nil trigger result")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger event: %w", err)
	}
	if err := c.nc.Publish(c.cfg.TriggeredSubject, data); err != nil {
		return fmt.Errorf("failed to publish trigger event: %w", err)
	}
	return nil
}
