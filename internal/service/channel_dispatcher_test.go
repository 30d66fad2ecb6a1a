package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notificationFor(t *testing.T, all []models.Notification, ch models.Channel) models.Notification {
	t.Helper()
	for _, n := range all {
		state := n.Channels.State(ch)
		if state.Sent || state.DeliveryStatus != "" {
			return n
		}
	}
	t.Fatalf("no notification stored for channel %s", ch)
	return models.Notification{}
}

func TestDispatchAllDeliversEveryEnabledChannel(t *testing.T) {
	h := newHarness(t)
	rule := newRule("r1", "user-1", "pet-1")

	results := h.dispatcher.DispatchAll(context.Background(), rule, frequencyAnomaly("pet-1", 90), "pet-1")

	assert.Equal(t, models.ChannelResults{InApp: true, Email: true, Push: true}, results)
	assert.Len(t, h.notifications.All(), 3)

	require.Len(t, h.email.sent, 1)
	assert.Equal(t, "owner1@example.com", h.email.sent[0].to)
	require.Len(t, h.push.tokens, 1)
	assert.Equal(t, []string{"dev-a", "dev-b"}, h.push.tokens[0])
	require.Len(t, h.inApp.msgs, 1)
	assert.Equal(t, "user-1", h.inApp.msgs[0].userID)
	assert.Equal(t, "notification", h.inApp.msgs[0].msgType)
}

func TestNotificationContent(t *testing.T) {
	h := newHarness(t)
	rule := newRule("r1", "user-1", "pet-1")
	rule.Name = "Tummy watch"
	anomaly := frequencyAnomaly("pet-1", 90)

	h.dispatcher.DispatchAll(context.Background(), rule, anomaly, "pet-1")

	for _, n := range h.notifications.All() {
		assert.Equal(t, "Tummy watch - Abnormal Frequency", n.Title)
		assert.Equal(t, "user-1", n.UserID)
		require.NotNil(t, n.PetID)
		assert.Equal(t, "pet-1", *n.PetID)
		assert.Equal(t, models.NotificationTypeAlert, n.Type)
		assert.Equal(t, models.CategoryFrequency, n.Category)
		assert.Equal(t, models.PriorityHigh, n.Priority)
		assert.Equal(t, models.StatusUnread, n.Status)
		assert.Equal(t, "/pets/pet-1/health", n.Data.ActionURL)
		assert.Equal(t, "r1", n.Data.AlertRuleID)
		assert.Equal(t, 90, n.Data.Metadata["confidence"])
		assert.Equal(t, "Tummy watch", n.Data.Metadata["ruleName"])
	}

	email := notificationFor(t, h.notifications.All(), models.ChannelEmail)
	assert.Equal(t, 3, strings.Count(email.Message, "\n• "))
	assert.True(t, strings.HasPrefix(email.Message, anomaly.Description+"\n\nRecommendations:"))
	assert.NotContains(t, email.Message, "Visit a vet")

	inApp := notificationFor(t, h.notifications.All(), models.ChannelInApp)
	assert.Equal(t, anomaly.Description, inApp.Message)
}

func TestEmailWithoutRecommendations(t *testing.T) {
	assert.Equal(t, "plain", withRecommendations("plain", nil))
	assert.Equal(t, "d\n\nRecommendations:\n• a", withRecommendations("d", []string{"a"}))
}

func TestChannelStateRecordsDelivery(t *testing.T) {
	h := newHarness(t)
	rule := newRule("r1", "user-1", "pet-1")

	h.dispatcher.DispatchAll(context.Background(), rule, frequencyAnomaly("pet-1", 90), "pet-1")

	inApp := notificationFor(t, h.notifications.All(), models.ChannelInApp)
	assert.True(t, inApp.Channels.InApp.Sent)
	require.NotNil(t, inApp.Channels.InApp.SentAt)
	assert.True(t, inApp.Channels.InApp.SentAt.Equal(testNow))
	assert.Empty(t, inApp.Channels.InApp.DeliveryStatus)

	push := notificationFor(t, h.notifications.All(), models.ChannelPush)
	assert.True(t, push.Channels.Push.Sent)
	assert.NotNil(t, push.Channels.Push.SentAt)
	assert.Equal(t, models.DeliverySent, push.Channels.Push.DeliveryStatus)
}

func TestOneChannelFailureLeavesOthersAlone(t *testing.T) {
	h := newHarness(t)
	h.email.err = errors.New("smtp: 550 mailbox unavailable")
	rule := newRule("r1", "user-1", "pet-1")

	results := h.dispatcher.DispatchAll(context.Background(), rule, frequencyAnomaly("pet-1", 90), "pet-1")

	assert.Equal(t, models.ChannelResults{InApp: true, Email: false, Push: true}, results)
	assert.Equal(t, 2, results.SentCount())

	email := notificationFor(t, h.notifications.All(), models.ChannelEmail)
	assert.False(t, email.Channels.Email.Sent)
	assert.Nil(t, email.Channels.Email.SentAt)
	assert.Equal(t, models.DeliveryFailed, email.Channels.Email.DeliveryStatus)
}

func TestPanicInSenderIsContained(t *testing.T) {
	h := newHarness(t)
	h.push.panics = true
	rule := newRule("r1", "user-1", "pet-1")

	results := h.dispatcher.DispatchAll(context.Background(), rule, frequencyAnomaly("pet-1", 90), "pet-1")

	assert.Equal(t, models.ChannelResults{InApp: true, Email: true, Push: false}, results)
}

func TestOnlyEnabledChannelsAreAttempted(t *testing.T) {
	h := newHarness(t)
	rule := newRule("r1", "user-1", "pet-1")
	rule.Notifications = models.ChannelPreferences{InApp: true}

	results := h.dispatcher.DispatchAll(context.Background(), rule, frequencyAnomaly("pet-1", 90), "pet-1")

	assert.Equal(t, models.ChannelResults{InApp: true}, results)
	assert.Len(t, h.notifications.All(), 1)
	assert.Empty(t, h.email.sent)
	assert.Empty(t, h.push.tokens)
}

func TestMissingContactFailsExternalChannels(t *testing.T) {
	h := newHarness(t)
	rule := newRule("r1", "user-unknown", "pet-1")

	results := h.dispatcher.DispatchAll(context.Background(), rule, frequencyAnomaly("pet-1", 90), "pet-1")

	assert.Equal(t, models.ChannelResults{InApp: true}, results)
	assert.Len(t, h.notifications.All(), 3)
}

func TestSendTimeout(t *testing.T) {
	email := &fakeEmailSender{block: true}
	d, err := NewChannelDispatcher(DispatcherConfig{
		Notifications: repository.NewMemoryNotificationRepository(),
		Contacts:      repository.NewMemoryContactRepository(models.UserContact{UserID: "user-1", Email: "a@example.com"}),
		Email:         email,
		SendTimeout:   20 * time.Millisecond,
		Logger:        logger.Discard(),
	})
	require.NoError(t, err)

	start := time.Now()
	ok := d.Send(context.Background(), models.ChannelEmail, newRule("r1", "user-1", "pet-1"), frequencyAnomaly("pet-1", 90), "pet-1")

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUnconfiguredSendersFail(t *testing.T) {
	d, err := NewChannelDispatcher(DispatcherConfig{
		Notifications: repository.NewMemoryNotificationRepository(),
		Logger:        logger.Discard(),
	})
	require.NoError(t, err)

	results := d.DispatchAll(context.Background(), newRule("r1", "user-1", "pet-1"), frequencyAnomaly("pet-1", 90), "pet-1")

	assert.Equal(t, models.ChannelResults{InApp: true}, results)
}

func TestPersistFailureCountsAsNotSent(t *testing.T) {
	d, err := NewChannelDispatcher(DispatcherConfig{
		Notifications: failingNotificationRepo{},
		Logger:        logger.Discard(),
	})
	require.NoError(t, err)

	ok := d.Send(context.Background(), models.ChannelInApp, newRule("r1", "user-1", "pet-1"), frequencyAnomaly("pet-1", 90), "pet-1")

	assert.False(t, ok)
}

func TestNewChannelDispatcherRequiresRepository(t *testing.T) {
	_, err := NewChannelDispatcher(DispatcherConfig{Logger: logger.Discard()})
	assert.Error(t, err)
}
