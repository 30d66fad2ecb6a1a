package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/repository"

	"github.com/google/uuid"
)

const maxEmailRecommendations = 3

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// PushSender delivers one push payload to a set of devices.
type PushSender interface {
	SendPush(ctx context.Context, deviceTokens []string, payload models.PushPayload) error
}

// InAppPublisher forwards a stored in-app notification to live sessions.
type InAppPublisher interface {
	PublishToUser(userID, msgType string, payload interface{})
}

var (
	errEmailDisabled = errors.New("email delivery is not configured")
	errPushDisabled  = errors.New("push delivery is not configured")
	errNoEmail       = errors.New("user has no email address")
	errNoDevices     = errors.New("user has no registered devices")
)

type DispatcherConfig struct {
	Notifications repository.INotificationRepository
	Contacts      repository.IContactRepository
	Email         EmailSender
	Push          PushSender
	InApp         InAppPublisher
	SendTimeout   time.Duration
	Clock         func() time.Time
	Logger        *logger.Logger
}

// ChannelDispatcher builds and delivers one notification per channel.
type ChannelDispatcher struct {
	notifications repository.INotificationRepository
	contacts      repository.IContactRepository
	email         EmailSender
	push          PushSender
	inApp         InAppPublisher
	sendTimeout   time.Duration
	now           func() time.Time
	log           *logger.Logger
}

func NewChannelDispatcher(cfg DispatcherConfig) (*ChannelDispatcher, error) {
	if cfg.Notifications == nil {
		return nil, fmt.Errorf("notification repository cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	d := &ChannelDispatcher{
		notifications: cfg.Notifications,
		contacts:      cfg.Contacts,
		email:         cfg.Email,
		push:          cfg.Push,
		inApp:         cfg.InApp,
		sendTimeout:   cfg.SendTimeout,
		now:           cfg.Clock,
		log:           cfg.Logger,
	}
	if d.sendTimeout <= 0 {
		d.sendTimeout = 10 * time.Second
	}
	if d.now == nil {
		d.now = time.Now
	}

	return d, nil
}

// DispatchAll attempts every channel enabled on the rule. Each channel is
// tried on its own; a failure or panic in one leaves the others untouched.
func (d *ChannelDispatcher) DispatchAll(ctx context.Context, rule *models.AlertRule, anomaly models.AnomalyEvent, petID string) models.ChannelResults {
	var results models.ChannelResults

	for _, ch := range models.AllChannels {
		if !rule.Notifications.Enabled(ch) {
			continue
		}
		results.Set(ch, d.safeSend(ctx, ch, rule, anomaly, petID))
	}

	return results
}

func (d *ChannelDispatcher) safeSend(ctx context.Context, ch models.Channel, rule *models.AlertRule, anomaly models.AnomalyEvent, petID string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Rule %s: %v", rule.ID, &models.ChannelDeliveryError{Channel: ch, Err: fmt.Errorf("panic: %v", r)})
			ok = false
		}
	}()
	return d.Send(ctx, ch, rule, anomaly, petID)
}

// Send delivers through one channel and reports success. It never returns an
// error; failures are logged and stored on the notification.
func (d *ChannelDispatcher) Send(ctx context.Context, ch models.Channel, rule *models.AlertRule, anomaly models.AnomalyEvent, petID string) bool {
	n := d.buildNotification(ch, rule, anomaly, petID)

	var deliveryErr error
	switch ch {
	case models.ChannelEmail:
		deliveryErr = d.deliverEmail(ctx, rule.UserID, n)
	case models.ChannelPush:
		deliveryErr = d.deliverPush(ctx, rule.UserID, n)
	}

	state := n.Channels.State(ch)
	if deliveryErr != nil {
		state.MarkFailed()
		d.log.Warn("Rule %s: %v", rule.ID, &models.ChannelDeliveryError{Channel: ch, Err: deliveryErr})
	} else {
		status := models.DeliverySent
		if ch == models.ChannelInApp {
			status = ""
		}
		state.MarkSent(d.now(), status)
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()

	if _, err := d.notifications.Create(persistCtx, n); err != nil {
		d.log.Error("Rule %s: %v", rule.ID, &models.ChannelDeliveryError{
			Channel: ch,
			Err:     fmt.Errorf("failed to persist notification: %w", err),
		})
		return false
	}

	if ch == models.ChannelInApp && d.inApp != nil {
		d.inApp.PublishToUser(rule.UserID, "notification", n)
	}

	if deliveryErr == nil {
		d.log.Debug("Rule %s: %s notification %s delivered to user %s", rule.ID, ch, n.ID, rule.UserID)
	}
	return deliveryErr == nil
}

func (d *ChannelDispatcher) buildNotification(ch models.Channel, rule *models.AlertRule, anomaly models.AnomalyEvent, petID string) *models.Notification {
	message := anomaly.Description
	if ch == models.ChannelEmail {
		message = withRecommendations(message, anomaly.Recommendations)
	}

	pet := petID
	return &models.Notification{
		ID:       uuid.NewString(),
		UserID:   rule.UserID,
		PetID:    &pet,
		Type:     models.NotificationTypeAlert,
		Category: CategoryFor(anomaly.AnomalyType),
		Title:    fmt.Sprintf("%s - %s", rule.Name, anomaly.AnomalyType.Title()),
		Message:  message,
		Data: models.NotificationData{
			AlertRuleID: rule.ID,
			AnomalyType: anomaly.AnomalyType,
			Severity:    anomaly.Severity,
			ActionURL:   fmt.Sprintf("/pets/%s/health", petID),
			Metadata: map[string]interface{}{
				"confidence":  anomaly.Confidence,
				"ruleName":    rule.Name,
				"triggerData": anomaly.TriggerData,
			},
		},
		Status:    models.StatusUnread,
		Priority:  PriorityFor(anomaly.Severity),
		CreatedAt: d.now(),
	}
}

func withRecommendations(description string, recommendations []string) string {
	if len(recommendations) == 0 {
		return description
	}
	if len(recommendations) > maxEmailRecommendations {
		recommendations = recommendations[:maxEmailRecommendations]
	}

	var b strings.Builder
	b.WriteString(description)
	b.WriteString("\n\nRecommendations:")
	for _, r := range recommendations {
		b.WriteString("\n• ")
		b.WriteString(r)
	}
	return b.String()
}

func (d *ChannelDispatcher) deliverEmail(ctx context.Context, userID string, n *models.Notification) error {
	if d.email == nil {
		return errEmailDisabled
	}

	contact, err := d.contact(ctx, userID)
	if err != nil {
		return err
	}
	if contact == nil || contact.Email == "" {
		return errNoEmail
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	return d.email.SendEmail(sendCtx, contact.Email, n.Title, n.Message)
}

func (d *ChannelDispatcher) deliverPush(ctx context.Context, userID string, n *models.Notification) error {
	if d.push == nil {
		return errPushDisabled
	}

	contact, err := d.contact(ctx, userID)
	if err != nil {
		return err
	}
	if contact == nil || len(contact.DeviceTokens) == 0 {
		return errNoDevices
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	return d.push.SendPush(sendCtx, contact.DeviceTokens, models.PushPayload{
		NotificationID: n.ID,
		Title:          n.Title,
		Body:           n.Message,
		Category:       n.Category,
		Priority:       n.Priority,
		ActionURL:      n.Data.ActionURL,
	})
}

func (d *ChannelDispatcher) contact(ctx context.Context, userID string) (*models.UserContact, error) {
	if d.contacts == nil {
		return nil, nil
	}
	contact, err := d.contacts.GetContact(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contact: %w", err)
	}
	return contact, nil
}
