package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSkipsDetectionWithoutRules(t *testing.T) {
	h := newHarness(t)

	results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, h.detector.callCount("pet-1"))
}

func TestCheckWithoutAnomalies(t *testing.T) {
	h := newHarness(t, newRule("r1", "user-1", "pet-1"))

	results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, 1, h.detector.callCount("pet-1"))
}

func TestCheckTriggersFreshRule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newRule("r1", "user-1", "pet-1"))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-1", 90)}

	results, err := h.engine.CheckAndTriggerAlerts(ctx, "pet-1", "user-1")

	require.NoError(t, err)
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, "r1", res.RuleID)
	assert.Equal(t, "Rule r1", res.RuleName)
	assert.Equal(t, "pet-1", res.PetID)
	assert.Equal(t, "Mochi", res.PetName)
	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, models.ChannelResults{InApp: true, Email: true, Push: true}, res.NotificationsSent)
	assert.True(t, res.TriggeredAt.Equal(testNow))

	stored, err := h.rules.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.TotalTriggered)
	assert.Equal(t, 3, stored.Stats.TotalNotificationsSent)
	require.NotNil(t, stored.Stats.LastTriggered)
	assert.True(t, stored.Stats.LastTriggered.Equal(testNow))

	assert.Len(t, h.notifications.All(), 3)
	require.Len(t, h.publisher.results, 1)
	assert.Equal(t, "r1", h.publisher.results[0].RuleID)
}

func TestCheckRespectsCooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newRule("r1", "user-1", "pet-1"))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{
		frequencyAnomaly("pet-1", 90),
		frequencyAnomaly("pet-1", 95),
	}

	results, err := h.engine.CheckAndTriggerAlerts(ctx, "pet-1", "user-1")
	require.NoError(t, err)
	assert.Len(t, results, 1, "second anomaly falls inside the cooldown")

	h.advance(time.Hour)
	results, err = h.engine.CheckAndTriggerAlerts(ctx, "pet-1", "user-1")
	require.NoError(t, err)
	assert.Empty(t, results)

	stored, err := h.rules.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.TotalTriggered)
}

func TestCheckIgnoresLowConfidence(t *testing.T) {
	h := newHarness(t, newRule("r1", "user-1", "pet-1"))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-1", 60)}

	results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, h.notifications.All())
}

func TestCheckOrdersResultsByAnomalyThenRule(t *testing.T) {
	health := newRule("r-health", "user-1", "pet-1")
	health.Triggers.AnomalyTypes = []models.AnomalyType{models.AnomalyHealthDecline}
	freqA := newRule("r-freq-a", "user-1", "pet-1")
	freqB := newRule("r-freq-b", "user-1", "")

	h := newHarness(t, health, freqA, freqB)
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{
		frequencyAnomaly("pet-1", 90),
		{AnomalyType: models.AnomalyHealthDecline, Severity: models.SeverityHigh, Confidence: 88},
	}

	results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "r-freq-a", results[0].RuleID)
	assert.Equal(t, "r-freq-b", results[1].RuleID)
	assert.Equal(t, "r-health", results[2].RuleID)
	assert.Equal(t, "pet-1", results[2].Anomaly.PetID, "missing pet id is filled in")
}

func TestCheckSkipsRulesForOtherPetsAndUsers(t *testing.T) {
	h := newHarness(t,
		newRule("r-other-pet", "user-1", "pet-2"),
		newRule("r-other-user", "user-2", "pet-1"),
		newRule("r-inactive", "user-1", "pet-1"),
	)
	inactive, _ := h.rules.FindByID(context.Background(), "r-inactive")
	inactive.IsActive = false
	require.NoError(t, h.rules.Save(context.Background(), inactive))

	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-1", 90)}

	results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, h.detector.callCount("pet-1"))
}

func TestCheckRejectsOtherUsersPet(t *testing.T) {
	h := newHarness(t, newRule("r1", "user-2", ""))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-1", 90)}

	results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-2")

	require.ErrorIs(t, err, models.ErrPetNotOwned)
	var checkErr *models.AlertCheckFailedError
	require.ErrorAs(t, err, &checkErr)
	assert.Equal(t, "load pet", checkErr.Stage)
	assert.Nil(t, results)
	assert.Equal(t, 0, h.detector.callCount("pet-1"))
	assert.Empty(t, h.notifications.All())
}

func TestCheckSkipsAnomaliesForOtherPets(t *testing.T) {
	h := newHarness(t, newRule("r1", "user-1", ""))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-9", 90)}

	results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCheckDetectionUnavailable(t *testing.T) {
	h := newHarness(t, newRule("r1", "user-1", "pet-1"))
	h.detector.errs["pet-1"] = errors.New("connection refused")

	results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")

	assert.Nil(t, results)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDetectionUnavailable)

	var checkErr *models.AlertCheckFailedError
	require.ErrorAs(t, err, &checkErr)
	assert.Equal(t, "user-1", checkErr.UserID)
	assert.Equal(t, "pet-1", checkErr.PetID)
}

func TestCheckRuleLoadFailure(t *testing.T) {
	h := newHarness(t)
	rules := &failingRuleRepo{MemoryRuleRepository: repository.NewMemoryRuleRepository(), err: errors.New("db down")}
	engine, err := NewAlertEngine(EngineConfig{
		Rules:      rules,
		Detector:   h.detector,
		Limiter:    h.limiter,
		Dispatcher: h.dispatcher,
		Logger:     logger.Discard(),
	})
	require.NoError(t, err)

	_, err = engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")

	var checkErr *models.AlertCheckFailedError
	require.ErrorAs(t, err, &checkErr)
	assert.NotErrorIs(t, err, models.ErrDetectionUnavailable)
	assert.Equal(t, 0, h.detector.callCount("pet-1"))
}

func TestConcurrentChecksFireRuleOnce(t *testing.T) {
	h := newHarness(t, newRule("r1", "user-1", "pet-1"))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-1", 90)}

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := h.engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")
			if err != nil {
				return
			}
			mu.Lock()
			total += len(results)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)

	stored, err := h.rules.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.TotalTriggered)
}

func TestCancelledCheckStillRecordsTrigger(t *testing.T) {
	h := newHarness(t, newRule("r1", "user-1", "pet-1"))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-1", 90)}

	rules := ctxRuleRepo{h.rules}
	limiter := NewRateLimiter(ctxTriggerLog{h.triggers})
	engine, err := NewAlertEngine(EngineConfig{
		Rules:      rules,
		Detector:   h.detector,
		Limiter:    limiter,
		Dispatcher: h.dispatcher,
		Clock:      h.clock,
		Logger:     logger.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.email.afterSend = cancel

	first, err := engine.CheckAndTriggerAlerts(ctx, "pet-1", "user-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Error(t, ctx.Err())

	h.email.afterSend = nil
	h.advance(time.Minute)

	second, err := engine.CheckAndTriggerAlerts(context.Background(), "pet-1", "user-1")
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, h.email.count())

	stored, err := h.rules.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.TotalTriggered)
	require.NotNil(t, stored.Stats.LastTriggered)
	assert.True(t, stored.Stats.LastTriggered.Equal(testNow))
	assert.Len(t, h.notifications.All(), 3)
}

func TestCheckSurvivesFailedEmail(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newRule("r1", "user-1", "pet-1"))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-1", 90)}
	h.email.err = errors.New("smtp: 451 try again later")

	results, err := h.engine.CheckAndTriggerAlerts(ctx, "pet-1", "user-1")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ChannelResults{InApp: true, Email: false, Push: true}, results[0].NotificationsSent)

	stored, err := h.rules.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.TotalTriggered)
	assert.Equal(t, 2, stored.Stats.TotalNotificationsSent)
}

func TestGetStatistics(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newRule("r1", "user-1", "pet-1"), newRule("r2", "user-1", ""))
	h.detector.anomalies["pet-1"] = []models.AnomalyEvent{frequencyAnomaly("pet-1", 90)}

	_, err := h.engine.CheckAndTriggerAlerts(ctx, "pet-1", "user-1")
	require.NoError(t, err)

	stats, err := h.engine.GetStatistics(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", stats.UserID)
	assert.Equal(t, 2, stats.TotalRules)
	assert.Equal(t, 2, stats.ActiveRules)
	assert.Equal(t, 2, stats.TotalTriggered)
	assert.Equal(t, 6, stats.TotalNotificationsSent)
	require.NotNil(t, stats.LastTriggered)
	require.Len(t, stats.Rules, 2)
	assert.Equal(t, 1, stats.Rules[0].TriggersLast24h)
	assert.Equal(t, 1, stats.Rules[0].TriggersLast7d)
}

func TestNewAlertEngineValidatesDependencies(t *testing.T) {
	_, err := NewAlertEngine(EngineConfig{Logger: logger.Discard()})
	assert.Error(t, err)
}
