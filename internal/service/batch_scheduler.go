package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/repository"
)

// AlertChecker runs the alert check for one (user, pet) pair.
type AlertChecker interface {
	CheckAndTriggerAlerts(ctx context.Context, petID, userID string) ([]models.AlertTriggerResult, error)
}

type BatchScheduler struct {
	rules       repository.IRuleRepository
	checker     AlertChecker
	workers     int
	pairTimeout time.Duration
	log         *logger.Logger
}

func NewBatchScheduler(rules repository.IRuleRepository, checker AlertChecker, workers int, pairTimeout time.Duration, log *logger.Logger) *BatchScheduler {
	if workers < 1 {
		workers = 1
	}
	if pairTimeout <= 0 {
		pairTimeout = 2 * time.Minute
	}
	return &BatchScheduler{
		rules:       rules,
		checker:     checker,
		workers:     workers,
		pairTimeout: pairTimeout,
		log:         log,
	}
}

type sweepPair struct {
	index  int
	userID string
	petID  string
}

// BatchCheckAlerts sweeps every (user, pet) pair named by an active rule.
// A failing pair becomes one entry in Errors and never stops the sweep; the
// returned error is reserved for failing to load the rules at all.
func (s *BatchScheduler) BatchCheckAlerts(ctx context.Context) (models.BatchRunResult, error) {
	start := time.Now()
	result := models.BatchRunResult{
		StartedAt: start,
		Errors:    []string{},
	}

	rules, err := s.rules.FindAllActiveRules(ctx)
	if err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("failed to load active rules: %w", err)
	}

	users, pairs := groupSweepPairs(rules)
	result.TotalUsersChecked = len(users)
	result.TotalPairsChecked = len(pairs)

	if len(pairs) == 0 {
		result.Duration = time.Since(start)
		s.log.Info("Batch alert check: nothing to sweep (%s)", result.Summary())
		return result, nil
	}

	workers := s.workers
	if workers > len(pairs) {
		workers = len(pairs)
	}

	ch := make(chan sweepPair, len(pairs))
	for _, p := range pairs {
		ch <- p
	}
	close(ch)

	pairErrors := make([]string, len(pairs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range ch {
				triggered, err := s.checkPair(ctx, p)

				mu.Lock()
				if err != nil {
					pairErrors[p.index] = (&models.BatchPairError{UserID: p.userID, PetID: p.petID, Err: err}).Error()
				} else {
					result.TotalAlertsTriggered += triggered
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	for _, e := range pairErrors {
		if e != "" {
			result.Errors = append(result.Errors, e)
		}
	}
	result.Duration = time.Since(start)

	for _, e := range result.Errors {
		s.log.Warn("Batch alert check: %s", e)
	}
	s.log.Info("Batch alert check complete: %s", result.Summary())

	return result, nil
}

func (s *BatchScheduler) checkPair(ctx context.Context, p sweepPair) (triggered int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pairCtx, cancel := context.WithTimeout(ctx, s.pairTimeout)
	defer cancel()

	results, err := s.checker.CheckAndTriggerAlerts(pairCtx, p.petID, p.userID)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// groupSweepPairs maps every rule owner to the pets their rules name.
// Rules without a pet count their owner as checked but add no pair.
func groupSweepPairs(rules []*models.AlertRule) ([]string, []sweepPair) {
	userPets := make(map[string]map[string]struct{})
	for _, rule := range rules {
		pets, ok := userPets[rule.UserID]
		if !ok {
			pets = make(map[string]struct{})
			userPets[rule.UserID] = pets
		}
		if rule.PetID != nil {
			pets[*rule.PetID] = struct{}{}
		}
	}

	users := make([]string, 0, len(userPets))
	for userID := range userPets {
		users = append(users, userID)
	}
	sort.Strings(users)

	var pairs []sweepPair
	for _, userID := range users {
		petIDs := make([]string, 0, len(userPets[userID]))
		for petID := range userPets[userID] {
			petIDs = append(petIDs, petID)
		}
		sort.Strings(petIDs)

		for _, petID := range petIDs {
			pairs = append(pairs, sweepPair{index: len(pairs), userID: userID, petID: petID})
		}
	}

	return users, pairs
}
