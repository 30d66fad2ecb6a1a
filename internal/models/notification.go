package models

import "time"

type Channel string

const (
	ChannelInApp Channel = "inApp"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// AllChannels is the fixed dispatch order for a triggered alert.
var AllChannels = []Channel{ChannelInApp, ChannelEmail, ChannelPush}

type NotificationCategory string

const (
	CategoryHealth    NotificationCategory = "health"
	CategoryFrequency NotificationCategory = "frequency"
	CategoryPattern   NotificationCategory = "pattern"
	CategoryGeneral   NotificationCategory = "general"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

type NotificationStatus string

const (
	StatusUnread   NotificationStatus = "unread"
	StatusRead     NotificationStatus = "read"
	StatusArchived NotificationStatus = "archived"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

const NotificationTypeAlert = "alert"

type Notification struct {
	ID        string               `json:"id" db:"id"`
	UserID    string               `json:"userId" db:"user_id"`
	PetID     *string              `json:"petId,omitempty" db:"pet_id"`
	Type      string               `json:"type" db:"type"`
	Category  NotificationCategory `json:"category" db:"category"`
	Title     string               `json:"title" db:"title"`
	Message   string               `json:"message" db:"message"`
	Data      NotificationData     `json:"data" db:"data"`
	Status    NotificationStatus   `json:"status" db:"status"`
	Priority  NotificationPriority `json:"priority" db:"priority"`
	Channels  NotificationChannels `json:"channels" db:"channels"`
	CreatedAt time.Time            `json:"createdAt" db:"created_at"`
}

type NotificationData struct {
	AlertRuleID string                 `json:"alertRuleId,omitempty"`
	AnomalyType AnomalyType            `json:"anomalyType,omitempty"`
	Severity    Severity               `json:"severity,omitempty"`
	ActionURL   string                 `json:"actionUrl,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type ChannelState struct {
	Sent           bool           `json:"sent"`
	SentAt         *time.Time     `json:"sentAt,omitempty"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus,omitempty"`
}

type NotificationChannels struct {
	InApp ChannelState `json:"inApp"`
	Email ChannelState `json:"email"`
	Push  ChannelState `json:"push"`
}

// State returns a pointer to the state of one channel so callers can update it.
func (c *NotificationChannels) State(ch Channel) *ChannelState {
	switch ch {
	case ChannelEmail:
		return &c.Email
	case ChannelPush:
		return &c.Push
	default:
		return &c.InApp
	}
}

// MarkSent records a successful delivery; Sent always carries a timestamp.
func (s *ChannelState) MarkSent(at time.Time, status DeliveryStatus) {
	s.Sent = true
	s.SentAt = &at
	s.DeliveryStatus = status
}

func (s *ChannelState) MarkFailed() {
	s.Sent = false
	s.SentAt = nil
	s.DeliveryStatus = DeliveryFailed
}

// PushPayload is what a device receives for a push notification.
type PushPayload struct {
	NotificationID string               `json:"notificationId"`
	Title          string               `json:"title"`
	Body           string               `json:"body"`
	Category       NotificationCategory `json:"category"`
	Priority       NotificationPriority `json:"priority"`
	ActionURL      string               `json:"actionUrl"`
}

// UserContact resolves where email and push deliveries go for a user.
type UserContact struct {
	UserID       string   `json:"userId"`
	Email        string   `json:"email"`
	DeviceTokens []string `json:"deviceTokens"`
}

type Pet struct {
	ID      string `json:"id" db:"id"`
	OwnerID string `json:"ownerId" db:"owner_id"`
	Name    string `json:"name" db:"name"`
}
