package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/repository"
)

const (
	dayWindow  = 24 * time.Hour
	weekWindow = 7 * 24 * time.Hour
)

// RateLimiter decides whether a rule may fire and records the firings.
// Callers serialize check, dispatch, record and persist for one rule with Lock.
type RateLimiter struct {
	triggers repository.ITriggerLog
	locks    *keyedMutex
}

func NewRateLimiter(triggers repository.ITriggerLog) *RateLimiter {
	return &RateLimiter{
		triggers: triggers,
		locks:    newKeyedMutex(),
	}
}

// Lock takes the per-rule lock and returns its release function.
func (rl *RateLimiter) Lock(ruleID string) func() {
	return rl.locks.lock(ruleID)
}

// CanTrigger applies the cooldown, then the rolling daily and weekly caps.
func (rl *RateLimiter) CanTrigger(ctx context.Context, rule *models.AlertRule, now time.Time) (bool, error) {
	if last := rule.Stats.LastTriggered; last != nil {
		if now.Sub(*last) < rule.Frequency.Cooldown() {
			return false, nil
		}
	}

	day, err := rl.triggers.CountBetween(ctx, rule.ID, now.Add(-dayWindow), now)
	if err != nil {
		return false, fmt.Errorf("failed to count daily triggers: %w", err)
	}
	if day >= rule.Frequency.MaxPerDay {
		return false, nil
	}

	week, err := rl.triggers.CountBetween(ctx, rule.ID, now.Add(-weekWindow), now)
	if err != nil {
		return false, fmt.Errorf("failed to count weekly triggers: %w", err)
	}
	if week >= rule.Frequency.MaxPerWeek {
		return false, nil
	}

	return true, nil
}

// RecordTrigger updates the rule's stats in place and appends to the trigger log.
// The rule itself still has to be persisted by the caller.
func (rl *RateLimiter) RecordTrigger(ctx context.Context, rule *models.AlertRule, now time.Time) error {
	rule.Stats.TotalTriggered++
	at := now
	rule.Stats.LastTriggered = &at

	if err := rl.triggers.Append(ctx, rule.ID, now); err != nil {
		return fmt.Errorf("failed to record trigger: %w", err)
	}
	return nil
}

// Usage returns how many times the rule fired in the last day and week.
func (rl *RateLimiter) Usage(ctx context.Context, ruleID string, now time.Time) (int, int, error) {
	// include a trigger recorded at exactly now
	to := now.Add(time.Nanosecond)

	day, err := rl.triggers.CountBetween(ctx, ruleID, now.Add(-dayWindow), to)
	if err != nil {
		return 0, 0, err
	}
	week, err := rl.triggers.CountBetween(ctx, ruleID, now.Add(-weekWindow), to)
	if err != nil {
		return 0, 0, err
	}
	return day, week, nil
}

// Prune drops log entries that can no longer affect any window.
func (rl *RateLimiter) Prune(ctx context.Context, now time.Time) (int64, error) {
	return rl.triggers.Prune(ctx, now.Add(-weekWindow))
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()

	return func() {
		m.mu.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
