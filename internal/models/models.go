// internal/models/models.go

package models

import (
	"fmt"
	"time"
)

// ChannelResults is the per-channel outcome of one triggered alert.
type ChannelResults struct {
	InApp bool `json:"inApp"`
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

func (r *ChannelResults) Set(ch Channel, ok bool) {
	switch ch {
	case ChannelInApp:
		r.InApp = ok
	case ChannelEmail:
		r.Email = ok
	case ChannelPush:
		r.Push = ok
	}
}

// SentCount is the number of channels that delivered successfully.
func (r ChannelResults) SentCount() int {
	n := 0
	for _, ok := range []bool{r.InApp, r.Email, r.Push} {
		if ok {
			n++
		}
	}
	return n
}

type AlertTriggerResult struct {
	RuleID            string         `json:"ruleId"`
	RuleName          string         `json:"ruleName"`
	Anomaly           AnomalyEvent   `json:"anomaly"`
	PetID             string         `json:"petId"`
	PetName           string         `json:"petName,omitempty"`
	UserID            string         `json:"userId"`
	NotificationsSent ChannelResults `json:"notificationsSent"`
	TriggeredAt       time.Time      `json:"triggeredAt"`
}

type BatchRunResult struct {
	TotalUsersChecked    int           `json:"totalUsersChecked"`
	TotalPairsChecked    int           `json:"totalPairsChecked"`
	TotalAlertsTriggered int           `json:"totalAlertsTriggered"`
	Errors               []string      `json:"errors"`
	StartedAt            time.Time     `json:"startedAt"`
	Duration             time.Duration `json:"duration"`
}

func (r BatchRunResult) Summary() string {
	return fmt.Sprintf("users=%d pairs=%d alerts=%d errors=%d duration=%s",
		r.TotalUsersChecked,
		r.TotalPairsChecked,
		r.TotalAlertsTriggered,
		len(r.Errors),
		r.Duration.Round(time.Millisecond),
	)
}

type RuleStatistics struct {
	RuleID                 string     `json:"ruleId"`
	Name                   string     `json:"name"`
	PetID                  *string    `json:"petId,omitempty"`
	IsActive               bool       `json:"isActive"`
	TotalTriggered         int        `json:"totalTriggered"`
	TotalNotificationsSent int        `json:"totalNotificationsSent"`
	LastTriggered          *time.Time `json:"lastTriggered,omitempty"`
	TriggersLast24h        int        `json:"triggersLast24h"`
	TriggersLast7d         int        `json:"triggersLast7d"`
}

type AlertStatistics struct {
	UserID                 string           `json:"userId"`
	TotalRules             int              `json:"totalRules"`
	ActiveRules            int              `json:"activeRules"`
	TotalTriggered         int              `json:"totalTriggered"`
	TotalNotificationsSent int              `json:"totalNotificationsSent"`
	LastTriggered          *time.Time       `json:"lastTriggered,omitempty"`
	Rules                  []RuleStatistics `json:"rules"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  struct {
		Database bool `json:"database"`
		MQTT     bool `json:"mqtt"`
		NATS     bool `json:"nats"`
		Redis    bool `json:"redis"`
	} `json:"services"`
}
