package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gagyebu/internal/core"
)

// RuleService is the rule-management surface: CRUD with ownership checks.
// Unlike the scheduler, which processes rules across users server-side,
// this surface only ever exposes a rule to its creator.
type RuleService struct {
	rules      RuleRepository
	categories CategoryStore
	now        func() time.Time
}

func NewRuleService(rules RuleRepository, categories CategoryStore) *RuleService {
	return &RuleService{
		rules:      rules,
		categories: categories,
		now:        time.Now,
	}
}

// RuleUpdate carries a partial update; nil fields are left unchanged.
type RuleUpdate struct {
	Frequency  *core.Frequency
	DayRule    *string
	Amount     *int64
	CategoryID *int64
	Merchant   *string
	Memo       *string
	IsActive   *bool
}

// List returns the caller's rules, optionally filtered by active flag and group.
func (s *RuleService) List(ctx context.Context, userID int64, filter core.RuleListFilter) ([]core.RecurringRule, error) {
	rules, err := s.rules.ListRules(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// Get returns one rule, enforcing ownership.
func (s *RuleService) Get(ctx context.Context, id, userID int64) (*core.RecurringRule, error) {
	return s.ownedRule(ctx, id, userID)
}

// Create validates and persists a new rule. The day rule must parse under
// its frequency's grammar, and a referenced category must exist.
func (s *RuleService) Create(ctx context.Context, rule core.RecurringRule) (*core.RecurringRule, error) {
	rule.IsActive = true

	if err := rule.Validate(core.DateOf(s.now())); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, rule.CategoryID); err != nil {
		return nil, err
	}

	created, err := s.rules.CreateRule(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule created",
		"rule_id", created.ID,
		"user_id", created.CreatedBy,
		"frequency", created.Frequency,
		"day_rule", created.DayRule,
		"amount", created.Amount)

	return created, nil
}

// Update applies a partial update to an owned rule. The merged rule is
// re-validated so a frequency change cannot orphan an incompatible day rule.
func (s *RuleService) Update(ctx context.Context, id, userID int64, patch RuleUpdate) (*core.RecurringRule, error) {
	rule, err := s.ownedRule(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if patch.Frequency != nil {
		rule.Frequency = *patch.Frequency
	}
	if patch.DayRule != nil {
		rule.DayRule = *patch.DayRule
	}
	if patch.Amount != nil {
		rule.Amount = *patch.Amount
	}
	if patch.CategoryID != nil {
		rule.CategoryID = patch.CategoryID
	}
	if patch.Merchant != nil {
		rule.Merchant = *patch.Merchant
	}
	if patch.Memo != nil {
		rule.Memo = *patch.Memo
	}
	if patch.IsActive != nil {
		rule.IsActive = *patch.IsActive
	}

	if rule.Amount <= 0 {
		return nil, core.ErrInvalidAmount
	}
	if !rule.Frequency.Valid() {
		return nil, core.ErrInvalidFrequency
	}
	if _, err := core.ParseSchedule(rule.Frequency, rule.DayRule); err != nil {
		return nil, err
	}
	if patch.CategoryID != nil {
		if err := s.checkCategory(ctx, rule.CategoryID); err != nil {
			return nil, err
		}
	}

	updated, err := s.rules.UpdateRule(ctx, *rule)
	if err != nil {
		return nil, fmt.Errorf("update rule %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Recurring rule updated", "rule_id", id, "user_id", userID)
	return updated, nil
}

// Delete hard-removes an owned rule. Deactivation without deletion goes
// through Update with IsActive=false instead.
func (s *RuleService) Delete(ctx context.Context, id, userID int64) error {
	if _, err := s.ownedRule(ctx, id, userID); err != nil {
		return err
	}
	if err := s.rules.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Recurring rule deleted", "rule_id", id, "user_id", userID)
	return nil
}

func (s *RuleService) ownedRule(ctx context.Context, id, userID int64) (*core.RecurringRule, error) {
	rule, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	if rule == nil {
		return nil, core.ErrRuleNotFound
	}
	if rule.CreatedBy != userID {
		return nil, core.ErrRuleForbidden
	}
	return rule, nil
}

func (s *RuleService) checkCategory(ctx context.Context, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	category, err := s.categories.GetCategory(ctx, *categoryID)
	if err != nil {
		return fmt.Errorf("get category %d: %w", *categoryID, err)
	}
	if category == nil {
		return core.ErrCategoryNotFound
	}
	return nil
}
