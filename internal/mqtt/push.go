package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"PetAlertAPI/internal/models"
)

// Receipt is what the push gateway sends back once a device has the message.
type Receipt struct {
	NotificationID string `json:"notificationId"`
	DeviceToken    string `json:"deviceToken"`
	Status         string `json:"status"`
}

// ReceiptDelivered is the only status that confirms a device has the message.
const ReceiptDelivered = "delivered"

type ReceiptHandler func(ctx context.Context, r Receipt) error

func (c *Client) deviceTopic(token string) string {
	return fmt.Sprintf("%s/devices/%s", c.cfg.PushTopicPrefix, token)
}

func (c *Client) receiptTopic() string {
	return c.cfg.PushTopicPrefix + "/receipts/+"
}

// SendPush publishes the payload to every device of the user. It fails only
// when no device accepted the message.
func (c *Client) SendPush(ctx context.Context, deviceTokens []string, payload models.PushPayload) error {
	if len(deviceTokens) == 0 {
		return fmt.Errorf("no device tokens")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	var errs []error
	for _, token := range deviceTokens {
		if err := c.Publish(ctx, c.deviceTopic(token), body); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == len(deviceTokens) {
		return errors.Join(errs...)
	}
	if len(errs) > 0 {
		c.log.Warn("Push %s reached %d of %d devices", payload.NotificationID, len(deviceTokens)-len(errs), len(deviceTokens))
	}
	return nil
}

// SubscribeReceipts forwards delivery receipts from the gateway to handler.
func (c *Client) SubscribeReceipts(handler ReceiptHandler) error {
	return c.Subscribe(c.receiptTopic(), func(topic string, payload []byte) error {
		var r Receipt
		if err := json.Unmarshal(payload, &r); err != nil {
			return fmt.Errorf("invalid receipt on %s: %w", topic, err)
		}
		if r.NotificationID == "" {
			return fmt.Errorf("receipt on %s has no notification id", topic)
		}
		if r.DeviceToken == "" {
			r.DeviceToken = topic[strings.LastIndex(topic, "/")+1:]
		}
		return handler(context.Background(), r)
	})
}
