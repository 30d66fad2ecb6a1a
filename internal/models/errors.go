package models

import (
	"errors"
	"fmt"
)

// ErrDetectionUnavailable is returned when the anomaly detector cannot be reached
// or answers with an error.
var ErrDetectionUnavailable = errors.New("anomaly detection unavailable")

// ErrRuleNotFound is returned by rule lookups that must resolve to a rule.
var ErrRuleNotFound = errors.New("alert rule not found")

// ErrPetNotOwned is returned when a pet belongs to a different user.
var ErrPetNotOwned = errors.New("pet not found")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AlertCheckFailedError wraps a failure to load the rules or the anomalies
// for a single pet check.
type AlertCheckFailedError struct {
	UserID string
	PetID  string
	Stage  string
	Err    error
}

func (e *AlertCheckFailedError) Error() string {
	return fmt.Sprintf("alert check failed for user %s pet %s (%s): %v", e.UserID, e.PetID, e.Stage, e.Err)
}

func (e *AlertCheckFailedError) Unwrap() error {
	return e.Err
}

type ChannelDeliveryError struct {
	Channel Channel
	Err     error
}

func (e *ChannelDeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *ChannelDeliveryError) Unwrap() error {
	return e.Err
}

type BatchPairError struct {
	UserID string
	PetID  string
	Err    error
}

func (e *BatchPairError) Error() string {
	return fmt.Sprintf("user %s pet %s: %v", e.UserID, e.PetID, e.Err)
}

func (e *BatchPairError) Unwrap() error {
	return e.Err
}
