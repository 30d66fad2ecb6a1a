package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule() *AlertRule {
	return &AlertRule{
		ID:       "rule-1",
		UserID:   "user-1",
		Name:     "Frequency watch",
		IsActive: true,
		Triggers: TriggerCriteria{
			AnomalyTypes:      []AnomalyType{AnomalyFrequency},
			SeverityLevels:    []Severity{SeverityHigh},
			MinimumConfidence: 80,
		},
		Notifications: ChannelPreferences{InApp: true},
		Frequency:     FrequencyLimits{MaxPerDay: 1, MaxPerWeek: 5, CooldownHours: 6},
	}
}

func TestAlertRuleValidate(t *testing.T) {
	require.NoError(t, validRule().Validate())

	tests := []struct {
		name  string
		mut   func(r *AlertRule)
		field string
	}{
		{"missing user", func(r *AlertRule) { r.UserID = "" }, "userId"},
		{"missing name", func(r *AlertRule) { r.Name = "" }, "name"},
		{"empty pet", func(r *AlertRule) { empty := ""; r.PetID = &empty }, "petId"},
		{"no anomaly types", func(r *AlertRule) { r.Triggers.AnomalyTypes = nil }, "triggers.anomalyTypes"},
		{"unknown anomaly type", func(r *AlertRule) { r.Triggers.AnomalyTypes = []AnomalyType{"sneezing"} }, "triggers.anomalyTypes"},
		{"no severities", func(r *AlertRule) { r.Triggers.SeverityLevels = nil }, "triggers.severityLevels"},
		{"unknown severity", func(r *AlertRule) { r.Triggers.SeverityLevels = []Severity{"critical"} }, "triggers.severityLevels"},
		{"confidence too low", func(r *AlertRule) { r.Triggers.MinimumConfidence = -1 }, "triggers.minimumConfidence"},
		{"confidence too high", func(r *AlertRule) { r.Triggers.MinimumConfidence = 101 }, "triggers.minimumConfidence"},
		{"zero per day", func(r *AlertRule) { r.Frequency.MaxPerDay = 0 }, "frequency.maxPerDay"},
		{"zero per week", func(r *AlertRule) { r.Frequency.MaxPerWeek = 0 }, "frequency.maxPerWeek"},
		{"zero cooldown", func(r *AlertRule) { r.Frequency.CooldownHours = 0 }, "frequency.cooldownHours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mut(r)

			err := r.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAlertRuleAppliesToPet(t *testing.T) {
	r := validRule()
	assert.True(t, r.AppliesToPet("any-pet"))

	pet := "pet-1"
	r.PetID = &pet
	assert.True(t, r.AppliesToPet("pet-1"))
	assert.False(t, r.AppliesToPet("pet-2"))
}

func TestAlertRuleCloneIsDeep(t *testing.T) {
	pet := "pet-1"
	now := time.Now()
	r := validRule()
	r.PetID = &pet
	r.Stats.LastTriggered = &now

	c := r.Clone()
	*c.PetID = "pet-2"
	*c.Stats.LastTriggered = now.Add(time.Hour)
	c.Triggers.AnomalyTypes[0] = AnomalyHealthDecline
	c.Stats.TotalTriggered = 10

	assert.Equal(t, "pet-1", *r.PetID)
	assert.Equal(t, now, *r.Stats.LastTriggered)
	assert.Equal(t, AnomalyFrequency, r.Triggers.AnomalyTypes[0])
	assert.Equal(t, 0, r.Stats.TotalTriggered)
}

func TestChannelStateMarkSentSetsTimestamp(t *testing.T) {
	var channels NotificationChannels
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	channels.State(ChannelEmail).MarkSent(at, DeliverySent)
	require.NotNil(t, channels.Email.SentAt)
	assert.True(t, channels.Email.Sent)
	assert.Equal(t, at, *channels.Email.SentAt)
	assert.False(t, channels.InApp.Sent)
	assert.False(t, channels.Push.Sent)

	channels.State(ChannelPush).MarkFailed()
	assert.False(t, channels.Push.Sent)
	assert.Nil(t, channels.Push.SentAt)
	assert.Equal(t, DeliveryFailed, channels.Push.DeliveryStatus)
}

func TestParseEnums(t *testing.T) {
	at, err := ParseAnomalyType("pattern_change")
	require.NoError(t, err)
	assert.Equal(t, AnomalyPatternChange, at)
	assert.Equal(t, "Pattern Change", at.Title())

	_, err = ParseAnomalyType("nope")
	assert.Error(t, err)

	sev, err := ParseSeverity("medium")
	require.NoError(t, err)
	assert.Equal(t, SeverityMedium, sev)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
}

func TestChannelResultsSentCount(t *testing.T) {
	var r ChannelResults
	r.Set(ChannelInApp, true)
	r.Set(ChannelPush, true)
	assert.Equal(t, 2, r.SentCount())
	assert.Equal(t, ChannelResults{InApp: true, Email: false, Push: true}, r)
}
