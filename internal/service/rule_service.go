package service

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
	"PetAlertAPI/internal/repository"

	"gopkg.in/yaml.v3"
)

//go:embed templates/default_rules.yaml
var defaultRulesYAML []byte

// IRuleService manages a user's alert rules and their notification inbox.
type IRuleService interface {
	ListRules(ctx context.Context, userID string) ([]*models.AlertRule, error)
	CreateRule(ctx context.Context, userID string, req *models.CreateRuleRequest) (*models.AlertRule, error)
	DeleteRule(ctx context.Context, userID, ruleID string) (bool, error)
	CreateDefaultRules(ctx context.Context, userID string) ([]*models.AlertRule, error)
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
}

type RuleService struct {
	rules         repository.IRuleRepository
	pets          repository.IPetRepository
	notifications repository.INotificationRepository
	templates     []models.RuleTemplate
	log           *logger.Logger
}

func NewRuleService(
	rules repository.IRuleRepository,
	pets repository.IPetRepository,
	notifications repository.INotificationRepository,
	templates []models.RuleTemplate,
	log *logger.Logger,
) *RuleService {
	return &RuleService{
		rules:         rules,
		pets:          pets,
		notifications: notifications,
		templates:     templates,
		log:           log,
	}
}

// LoadRuleTemplates reads default rule templates from path, or the built-in
// set when path is empty. Every template must produce a valid rule.
func LoadRuleTemplates(path string) ([]models.RuleTemplate, error) {
	data := defaultRulesYAML
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rule templates: %w", err)
		}
		data = raw
	}

	var doc struct {
		Rules []models.RuleTemplate `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule templates: %w", err)
	}

	for _, tpl := range doc.Rules {
		rule := ruleFromTemplate("template-check", tpl)
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule template %q: %w", tpl.Name, err)
		}
	}

	return doc.Rules, nil
}

func ruleFromTemplate(userID string, tpl models.RuleTemplate) *models.AlertRule {
	return &models.AlertRule{
		UserID:        userID,
		Name:          tpl.Name,
		Description:   tpl.Description,
		IsActive:      true,
		Triggers:      tpl.Triggers,
		Notifications: tpl.Notifications,
		Frequency:     tpl.Frequency,
	}
}

func (s *RuleService) ListRules(ctx context.Context, userID string) ([]*models.AlertRule, error) {
	return s.rules.FindByUser(ctx, userID)
}

func (s *RuleService) CreateRule(ctx context.Context, userID string, req *models.CreateRuleRequest) (*models.AlertRule, error) {
	rule := &models.AlertRule{
		UserID:        userID,
		PetID:         req.PetID,
		Name:          req.Name,
		Description:   req.Description,
		IsActive:      true,
		Triggers:      req.Triggers,
		Notifications: req.Notifications,
		Frequency:     req.Frequency,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkPetOwner(ctx, userID, rule.PetID); err != nil {
		return nil, err
	}

	if err := s.rules.Save(ctx, rule); err != nil {
		s.log.Error("Failed to create rule for user %s: %v", userID, err)
		return nil, err
	}

	s.log.Info("Alert rule %s created for user %s", rule.ID, userID)
	return rule, nil
}

func (s *RuleService) checkPetOwner(ctx context.Context, userID string, petID *string) error {
	if petID == nil || s.pets == nil {
		return nil
	}
	pet, err := s.pets.GetPet(ctx, *petID)
	if err != nil {
		return fmt.Errorf("failed to load pet %s: %w", *petID, err)
	}
	if pet != nil && pet.OwnerID != userID {
		return &models.ValidationError{Field: "petId", Message: "pet not found"}
	}
	return nil
}

// DeleteRule removes a rule owned by the user. Rules of other users are
// reported as not found.
func (s *RuleService) DeleteRule(ctx context.Context, userID, ruleID string) (bool, error) {
	rule, err := s.rules.FindByID(ctx, ruleID)
	if err != nil {
		return false, err
	}
	if rule == nil || rule.UserID != userID {
		return false, nil
	}

	deleted, err := s.rules.Delete(ctx, ruleID)
	if err != nil {
		return false, fmt.Errorf("failed to delete rule %s: %w", ruleID, err)
	}
	if deleted {
		s.log.Info("Alert rule %s deleted by user %s", ruleID, userID)
	}
	return deleted, nil
}

// CreateDefaultRules bootstraps the template rules for a user. Templates whose
// name the user already uses are skipped, so repeated calls are harmless.
func (s *RuleService) CreateDefaultRules(ctx context.Context, userID string) ([]*models.AlertRule, error) {
	existing, err := s.rules.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, r := range existing {
		taken[r.Name] = true
	}

	created := []*models.AlertRule{}
	for _, tpl := range s.templates {
		if taken[tpl.Name] {
			continue
		}

		rule := ruleFromTemplate(userID, tpl)
		if err := s.rules.Save(ctx, rule); err != nil {
			return created, fmt.Errorf("failed to create default rule %q: %w", tpl.Name, err)
		}
		created = append(created, rule)
	}

	s.log.Info("Created %d default rule(s) for user %s", len(created), userID)
	return created, nil
}

func (s *RuleService) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	return s.notifications.ListForUser(ctx, userID, limit, offset)
}
