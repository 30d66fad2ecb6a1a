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

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeDetector struct {
	mu        sync.Mutex
	anomalies map[string][]models.AnomalyEvent
	errs      map[string]error
	calls     map[string]int
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{
		anomalies: make(map[string][]models.AnomalyEvent),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (d *fakeDetector) DetectAnomalies(ctx context.Context, petID string) ([]models.AnomalyEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[petID]++
	if err := d.errs[petID]; err != nil {
		return nil, err
	}
	return append([]models.AnomalyEvent(nil), d.anomalies[petID]...), nil
}

func (d *fakeDetector) callCount(petID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[petID]
}

type sentEmail struct {
	to, subject, body string
}

type fakeEmailSender struct {
	mu        sync.Mutex
	err       error
	block     bool
	sent      []sentEmail
	afterSend func()
}

func (s *fakeEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, body: body})
	if s.afterSend != nil {
		s.afterSend()
	}
	return nil
}

func (s *fakeEmailSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakePushSender struct {
	mu      sync.Mutex
	err     error
	panics  bool
	tokens  [][]string
	payload []models.PushPayload
}

func (s *fakePushSender) SendPush(ctx context.Context, deviceTokens []string, payload models.PushPayload) error {
	if s.panics {
		panic("push gateway exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tokens = append(s.tokens, deviceTokens)
	s.payload = append(s.payload, payload)
	return nil
}

type published struct {
	userID  string
	msgType string
	payload interface{}
}

type fakeInApp struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakeInApp) PublishToUser(userID, msgType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{userID: userID, msgType: msgType, payload: payload})
}

type fakeTriggerPublisher struct {
	mu      sync.Mutex
	results []models.AlertTriggerResult
}

func (p *fakeTriggerPublisher) PublishTriggered(ctx context.Context, result *models.AlertTriggerResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, *result)
	return nil
}

type failingNotificationRepo struct{}

func (failingNotificationRepo) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	return nil, errors.New("disk full")
}

func (failingNotificationRepo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	return nil, errors.New("disk full")
}

func (failingNotificationRepo) MarkDelivered(ctx context.Context, notificationID string, ch models.Channel) (bool, error) {
	return false, errors.New("disk full")
}

// failingRuleRepo fails the bulk lookups while delegating everything else.
type failingRuleRepo struct {
	*repository.MemoryRuleRepository
	err error
}

func (r *failingRuleRepo) FindActiveRulesForUser(ctx context.Context, userID, petID string) ([]*models.AlertRule, error) {
	return nil, r.err
}

func (r *failingRuleRepo) FindAllActiveRules(ctx context.Context) ([]*models.AlertRule, error) {
	return nil, r.err
}

// ctxRuleRepo and ctxTriggerLog refuse writes on a finished context the way
// database/sql and go-redis do.
type ctxRuleRepo struct {
	*repository.MemoryRuleRepository
}

func (r ctxRuleRepo) Save(ctx context.Context, rule *models.AlertRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRuleRepository.Save(ctx, rule)
}

type ctxTriggerLog struct {
	*repository.MemoryTriggerLog
}

func (l ctxTriggerLog) Append(ctx context.Context, ruleID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.MemoryTriggerLog.Append(ctx, ruleID, at)
}

type harness struct {
	rules         *repository.MemoryRuleRepository
	notifications *repository.MemoryNotificationRepository
	triggers      *repository.MemoryTriggerLog
	detector      *fakeDetector
	email         *fakeEmailSender
	push          *fakePushSender
	inApp         *fakeInApp
	publisher     *fakeTriggerPublisher
	limiter       *RateLimiter
	dispatcher    *ChannelDispatcher
	engine        *AlertEngine

	mu  sync.Mutex
	now time.Time
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func newHarness(t *testing.T, rules ...*models.AlertRule) *harness {
	t.Helper()

	h := &harness{
		rules:         repository.NewMemoryRuleRepository(rules...),
		notifications: repository.NewMemoryNotificationRepository(),
		triggers:      repository.NewMemoryTriggerLog(),
		detector:      newFakeDetector(),
		email:         &fakeEmailSender{},
		push:          &fakePushSender{},
		inApp:         &fakeInApp{},
		publisher:     &fakeTriggerPublisher{},
		now:           testNow,
	}
	h.limiter = NewRateLimiter(h.triggers)

	contacts := repository.NewMemoryContactRepository(
		models.UserContact{UserID: "user-1", Email: "owner1@example.com", DeviceTokens: []string{"dev-a", "dev-b"}},
		models.UserContact{UserID: "user-2", Email: "owner2@example.com", DeviceTokens: []string{"dev-c"}},
		models.UserContact{UserID: "user-3", Email: "owner3@example.com", DeviceTokens: []string{"dev-d"}},
	)
	pets := repository.NewMemoryPetRepository(models.Pet{ID: "pet-1", OwnerID: "user-1", Name: "Mochi"})

	var err error
	h.dispatcher, err = NewChannelDispatcher(DispatcherConfig{
		Notifications: h.notifications,
		Contacts:      contacts,
		Email:         h.email,
		Push:          h.push,
		InApp:         h.inApp,
		SendTimeout:   time.Second,
		Clock:         h.clock,
		Logger:        logger.Discard(),
	})
	require.NoError(t, err)

	h.engine, err = NewAlertEngine(EngineConfig{
		Rules:         h.rules,
		Pets:          pets,
		Detector:      h.detector,
		Limiter:       h.limiter,
		Dispatcher:    h.dispatcher,
		Publisher:     h.publisher,
		DetectTimeout: time.Second,
		Clock:         h.clock,
		Logger:        logger.Discard(),
	})
	require.NoError(t, err)

	return h
}

func newRule(id, userID string, petID string) *models.AlertRule {
	rule := &models.AlertRule{
		ID:       id,
		UserID:   userID,
		Name:     "Rule " + id,
		IsActive: true,
		Triggers: models.TriggerCriteria{
			AnomalyTypes:      []models.AnomalyType{models.AnomalyFrequency},
			SeverityLevels:    []models.Severity{models.SeverityHigh},
			MinimumConfidence: 80,
		},
		Notifications: models.ChannelPreferences{InApp: true, Email: true, Push: true},
		Frequency:     models.FrequencyLimits{MaxPerDay: 1, MaxPerWeek: 5, CooldownHours: 6},
	}
	if petID != "" {
		rule.PetID = &petID
	}
	return rule
}

func frequencyAnomaly(petID string, confidence int) models.AnomalyEvent {
	return models.AnomalyEvent{
		PetID:       petID,
		AnomalyType: models.AnomalyFrequency,
		Severity:    models.SeverityHigh,
		Confidence:  confidence,
		Description: "Bowel movements are twice as frequent as usual.",
		Recommendations: []string{
			"Keep your pet hydrated",
			"Track food changes",
			"Watch for lethargy",
			"Visit a vet if it persists",
		},
	}
}

func frequency(perDay, perWeek, cooldownHours int) models.FrequencyLimits {
	return models.FrequencyLimits{MaxPerDay: perDay, MaxPerWeek: perWeek, CooldownHours: cooldownHours}
}
