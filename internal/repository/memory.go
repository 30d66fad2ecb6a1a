package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"PetAlertAPI/internal/models"

	"github.com/google/uuid"
)

// In-memory fakes for tests and local development; the commands always run on Postgres.
// Every read hands out copies so callers never share mutable state.

type MemoryRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*models.AlertRule
	order []string
}

func NewMemoryRuleRepository(rules ...*models.AlertRule) *MemoryRuleRepository {
	r := &MemoryRuleRepository{rules: make(map[string]*models.AlertRule)}
	for _, rule := range rules {
		_ = r.Save(context.Background(), rule)
	}
	return r
}

func (r *MemoryRuleRepository) filter(keep func(*models.AlertRule) bool) []*models.AlertRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.AlertRule{}
	for _, id := range r.order {
		rule := r.rules[id]
		if keep(rule) {
			out = append(out, rule.Clone())
		}
	}
	return out
}

func (r *MemoryRuleRepository) FindActiveRulesForUser(ctx context.Context, userID, petID string) ([]*models.AlertRule, error) {
	return r.filter(func(rule *models.AlertRule) bool {
		if !rule.IsActive || rule.UserID != userID {
			return false
		}
		return petID == "" || rule.AppliesToPet(petID)
	}), nil
}

func (r *MemoryRuleRepository) FindAllActiveRules(ctx context.Context) ([]*models.AlertRule, error) {
	return r.filter(func(rule *models.AlertRule) bool { return rule.IsActive }), nil
}

func (r *MemoryRuleRepository) FindByUser(ctx context.Context, userID string) ([]*models.AlertRule, error) {
	return r.filter(func(rule *models.AlertRule) bool { return rule.UserID == userID }), nil
}

func (r *MemoryRuleRepository) FindByID(ctx context.Context, id string) (*models.AlertRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, nil
	}
	return rule.Clone(), nil
}

func (r *MemoryRuleRepository) Save(ctx context.Context, rule *models.AlertRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if _, exists := r.rules[rule.ID]; !exists {
		r.order = append(r.order, rule.ID)
	}
	r.rules[rule.ID] = rule.Clone()
	return nil
}

func (r *MemoryRuleRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return false, nil
	}
	delete(r.rules, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

type MemoryNotificationRepository struct {
	mu            sync.RWMutex
	notifications []models.Notification
}

func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{}
}

func (r *MemoryNotificationRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Status == "" {
		n.Status = models.StatusUnread
	}

	r.notifications = append(r.notifications, *n)
	return n, nil
}

func (r *MemoryNotificationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []models.Notification{}
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].UserID == userID {
			matched = append(matched, r.notifications[i])
		}
	}

	if offset >= len(matched) {
		return []models.Notification{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryNotificationRepository) MarkDelivered(ctx context.Context, notificationID string, ch models.Channel) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].ID != notificationID {
			continue
		}
		state := r.notifications[i].Channels.State(ch)
		if !state.Sent {
			return false, nil
		}
		state.DeliveryStatus = models.DeliveryDelivered
		return true, nil
	}
	return false, nil
}

// All returns every stored notification in insertion order.
func (r *MemoryNotificationRepository) All() []models.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Notification(nil), r.notifications...)
}

type MemoryTriggerLog struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func NewMemoryTriggerLog() *MemoryTriggerLog {
	return &MemoryTriggerLog{entries: make(map[string][]time.Time)}
}

func (l *MemoryTriggerLog) Append(ctx context.Context, ruleID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := append(l.entries[ruleID], at)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Before(entries[j]) })
	l.entries[ruleID] = entries
	return nil
}

func (l *MemoryTriggerLog) CountBetween(ctx context.Context, ruleID string, from, to time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, at := range l.entries[ruleID] {
		if !at.Before(from) && at.Before(to) {
			count++
		}
	}
	return count, nil
}

func (l *MemoryTriggerLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int64
	for ruleID, entries := range l.entries {
		kept := entries[:0]
		for _, at := range entries {
			if at.Before(before) {
				removed++
				continue
			}
			kept = append(kept, at)
		}
		if len(kept) == 0 {
			delete(l.entries, ruleID)
		} else {
			l.entries[ruleID] = kept
		}
	}
	return removed, nil
}

type MemoryContactRepository struct {
	mu       sync.RWMutex
	contacts map[string]models.UserContact
}

func NewMemoryContactRepository(contacts ...models.UserContact) *MemoryContactRepository {
	r := &MemoryContactRepository{contacts: make(map[string]models.UserContact)}
	for _, c := range contacts {
		r.contacts[c.UserID] = c
	}
	return r
}

func (r *MemoryContactRepository) GetContact(ctx context.Context, userID string) (*models.UserContact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contacts[userID]
	if !ok {
		return nil, nil
	}
	c.DeviceTokens = append([]string(nil), c.DeviceTokens...)
	return &c, nil
}

type MemoryPetRepository struct {
	mu   sync.RWMutex
	pets map[string]models.Pet
}

func NewMemoryPetRepository(pets ...models.Pet) *MemoryPetRepository {
	r := &MemoryPetRepository{pets: make(map[string]models.Pet)}
	for _, p := range pets {
		r.pets[p.ID] = p
	}
	return r
}

func (r *MemoryPetRepository) GetPet(ctx context.Context, petID string) (*models.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pets[petID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
