package models

import "fmt"

type AnomalyType string

const (
	AnomalyHealthDecline     AnomalyType = "health_decline"
	AnomalyFrequency         AnomalyType = "frequency"
	AnomalyPatternChange     AnomalyType = "pattern_change"
	AnomalyConsistencyChange AnomalyType = "consistency_change"
)

var anomalyTitles = map[AnomalyType]string{
	AnomalyHealthDecline:     "Health Decline",
	AnomalyFrequency:         "Abnormal Frequency",
	AnomalyPatternChange:     "Pattern Change",
	AnomalyConsistencyChange: "Consistency Change",
}

// AllAnomalyTypes lists every known anomaly type in display order.
var AllAnomalyTypes = []AnomalyType{
	AnomalyHealthDecline,
	AnomalyFrequency,
	AnomalyPatternChange,
	AnomalyConsistencyChange,
}

func (t AnomalyType) IsValid() bool {
	_, ok := anomalyTitles[t]
	return ok
}

// Title is the human readable label used in notification titles.
func (t AnomalyType) Title() string {
	if title, ok := anomalyTitles[t]; ok {
		return title
	}
	return string(t)
}

func ParseAnomalyType(s string) (AnomalyType, error) {
	t := AnomalyType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown anomaly type: %q", s)
	}
	return t, nil
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var AllSeverities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("unknown severity: %q", s)
	}
	return sev, nil
}

// AnomalyEvent is produced by the upstream detector. It is never persisted here.
type AnomalyEvent struct {
	PetID           string                 `json:"petId"`
	AnomalyType     AnomalyType            `json:"anomalyType"`
	Severity        Severity               `json:"severity"`
	Confidence      int                    `json:"confidence"`
	Description     string                 `json:"description"`
	Recommendations []string               `json:"recommendations"`
	TriggerData     map[string]interface{} `json:"triggerData,omitempty"`
}
