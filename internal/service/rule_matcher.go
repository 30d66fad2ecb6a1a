package service

import "PetAlertAPI/internal/models"

// Matches reports whether the anomaly satisfies the rule's trigger criteria.
// It looks only at the rule and the anomaly; pet scoping is the caller's job.
func Matches(rule *models.AlertRule, anomaly models.AnomalyEvent) bool {
	if !containsAnomalyType(rule.Triggers.AnomalyTypes, anomaly.AnomalyType) {
		return false
	}
	if !containsSeverity(rule.Triggers.SeverityLevels, anomaly.Severity) {
		return false
	}
	return anomaly.Confidence >= rule.Triggers.MinimumConfidence
}

func CategoryFor(t models.AnomalyType) models.NotificationCategory {
	switch t {
	case models.AnomalyHealthDecline:
		return models.CategoryHealth
	case models.AnomalyFrequency:
		return models.CategoryFrequency
	case models.AnomalyPatternChange, models.AnomalyConsistencyChange:
		return models.CategoryPattern
	default:
		return models.CategoryGeneral
	}
}

func PriorityFor(s models.Severity) models.NotificationPriority {
	switch s {
	case models.SeverityLow:
		return models.PriorityLow
	case models.SeverityMedium:
		return models.PriorityNormal
	case models.SeverityHigh:
		return models.PriorityHigh
	default:
		return models.PriorityNormal
	}
}

func containsAnomalyType(types []models.AnomalyType, t models.AnomalyType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsSeverity(levels []models.Severity, s models.Severity) bool {
	for _, candidate := range levels {
		if candidate == s {
			return true
		}
	}
	return false
}
