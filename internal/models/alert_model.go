package models

import (
	"fmt"
	"time"
)

// AlertRule is a user-owned configuration describing when to notify.
// A nil PetID means the rule applies to every pet the user owns.
type AlertRule struct {
	ID            string             `json:"id" db:"id"`
	UserID        string             `json:"userId" db:"user_id"`
	PetID         *string            `json:"petId,omitempty" db:"pet_id"`
	Name          string             `json:"name" db:"name"`
	Description   string             `json:"description,omitempty" db:"description"`
	IsActive      bool               `json:"isActive" db:"is_active"`
	Triggers      TriggerCriteria    `json:"triggers"`
	Notifications ChannelPreferences `json:"notifications"`
	Frequency     FrequencyLimits    `json:"frequency"`
	Stats         RuleStats          `json:"stats"`
	CreatedAt     time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" db:"updated_at"`
}

type TriggerCriteria struct {
	AnomalyTypes      []AnomalyType `json:"anomalyTypes" yaml:"anomalyTypes"`
	SeverityLevels    []Severity    `json:"severityLevels" yaml:"severityLevels"`
	MinimumConfidence int           `json:"minimumConfidence" yaml:"minimumConfidence"`
}

type ChannelPreferences struct {
	InApp bool `json:"inApp" yaml:"inApp"`
	Email bool `json:"email" yaml:"email"`
	Push  bool `json:"push" yaml:"push"`
}

// Enabled reports whether the given channel is switched on.
func (p ChannelPreferences) Enabled(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return p.InApp
	case ChannelEmail:
		return p.Email
	case ChannelPush:
		return p.Push
	}
	return false
}

type FrequencyLimits struct {
	MaxPerDay     int `json:"maxPerDay" yaml:"maxPerDay"`
	MaxPerWeek    int `json:"maxPerWeek" yaml:"maxPerWeek"`
	CooldownHours int `json:"cooldownHours" yaml:"cooldownHours"`
}

// Cooldown returns the cooldown window as a duration.
func (f FrequencyLimits) Cooldown() time.Duration {
	return time.Duration(f.CooldownHours) * time.Hour
}

type RuleStats struct {
	TotalTriggered         int        `json:"totalTriggered" db:"total_triggered"`
	LastTriggered          *time.Time `json:"lastTriggered,omitempty" db:"last_triggered"`
	TotalNotificationsSent int        `json:"totalNotificationsSent" db:"total_notifications_sent"`
}

// AppliesToPet reports whether the rule covers the given pet.
func (r *AlertRule) AppliesToPet(petID string) bool {
	return r.PetID == nil || *r.PetID == petID
}

func (r *AlertRule) Validate() error {
	if r.UserID == "" {
		return &ValidationError{Field: "userId", Message: "is required"}
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if r.PetID != nil && *r.PetID == "" {
		return &ValidationError{Field: "petId", Message: "must be omitted or non-empty"}
	}

	if len(r.Triggers.AnomalyTypes) == 0 {
		return &ValidationError{Field: "triggers.anomalyTypes", Message: "must not be empty"}
	}
	for _, t := range r.Triggers.AnomalyTypes {
		if !t.IsValid() {
			return &ValidationError{Field: "triggers.anomalyTypes", Message: fmt.Sprintf("unknown anomaly type %q", t)}
		}
	}

	if len(r.Triggers.SeverityLevels) == 0 {
		return &ValidationError{Field: "triggers.severityLevels", Message: "must not be empty"}
	}
	for _, s := range r.Triggers.SeverityLevels {
		if !s.IsValid() {
			return &ValidationError{Field: "triggers.severityLevels", Message: fmt.Sprintf("unknown severity %q", s)}
		}
	}

	if r.Triggers.MinimumConfidence < 0 || r.Triggers.MinimumConfidence > 100 {
		return &ValidationError{Field: "triggers.minimumConfidence", Message: "must be between 0 and 100"}
	}

	if r.Frequency.MaxPerDay < 1 {
		return &ValidationError{Field: "frequency.maxPerDay", Message: "must be at least 1"}
	}
	if r.Frequency.MaxPerWeek < 1 {
		return &ValidationError{Field: "frequency.maxPerWeek", Message: "must be at least 1"}
	}
	if r.Frequency.CooldownHours < 1 {
		return &ValidationError{Field: "frequency.cooldownHours", Message: "must be at least 1"}
	}

	return nil
}

// Clone returns a deep copy so stats updates on one copy never leak into another.
func (r *AlertRule) Clone() *AlertRule {
	c := *r
	if r.PetID != nil {
		pet := *r.PetID
		c.PetID = &pet
	}
	if r.Stats.LastTriggered != nil {
		last := *r.Stats.LastTriggered
		c.Stats.LastTriggered = &last
	}
	c.Triggers.AnomalyTypes = append([]AnomalyType(nil), r.Triggers.AnomalyTypes...)
	c.Triggers.SeverityLevels = append([]Severity(nil), r.Triggers.SeverityLevels...)
	return &c
}

// CreateRuleRequest is the body accepted when a user defines a rule.
type CreateRuleRequest struct {
	PetID         *string            `json:"petId,omitempty"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	IsActive      *bool              `json:"isActive,omitempty"`
	Triggers      TriggerCriteria    `json:"triggers"`
	Notifications ChannelPreferences `json:"notifications"`
	Frequency     FrequencyLimits    `json:"frequency"`
}

// RuleTemplate describes one default rule created for new users.
type RuleTemplate struct {
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description"`
	Triggers      TriggerCriteria    `yaml:"triggers"`
	Notifications ChannelPreferences `yaml:"notifications"`
	Frequency     FrequencyLimits    `yaml:"frequency"`
}
