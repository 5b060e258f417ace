package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"gagyebu/internal/core"
)

// In-memory store fakes backing the service tests.

type fakeRuleStore struct {
	mu     sync.Mutex
	rules  map[int64]core.RecurringRule
	nextID int64

	findErr error
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{rules: make(map[int64]core.RecurringRule), nextID: 1}
}

func (s *fakeRuleStore) add(rule core.RecurringRule) core.RecurringRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == 0 {
		rule.ID = s.nextID
		s.nextID++
	} else if rule.ID >= s.nextID {
		s.nextID = rule.ID + 1
	}
	s.rules[rule.ID] = rule
	return rule
}

func (s *fakeRuleStore) FindActiveRules(_ context.Context, filter core.RuleFilter) ([]core.RecurringRule, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.RecurringRule
	for _, rule := range s.rules {
		if !rule.IsActive || rule.StartDate.AfterDate(filter.NotAfter) {
			continue
		}
		if filter.RuleID != nil && rule.ID != *filter.RuleID {
			continue
		}
		if filter.UserID != nil && rule.CreatedBy != *filter.UserID {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (s *fakeRuleStore) FindActiveRuleForOwner(_ context.Context, id, ownerID int64) (*core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok || !rule.IsActive || rule.CreatedBy != ownerID {
		return nil, nil
	}
	return &rule, nil
}

// RuleRepository methods, so the same fake backs RuleService tests.

func (s *fakeRuleStore) ListRules(_ context.Context, ownerID int64, filter core.RuleListFilter) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringRule
	for _, rule := range s.rules {
		if rule.CreatedBy != ownerID {
			continue
		}
		if filter.IsActive != nil && rule.IsActive != *filter.IsActive {
			continue
		}
		if filter.GroupID != nil && (rule.GroupID == nil || *rule.GroupID != *filter.GroupID) {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (s *fakeRuleStore) GetRule(_ context.Context, id int64) (*core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (s *fakeRuleStore) CreateRule(_ context.Context, rule core.RecurringRule) (*core.RecurringRule, error) {
	created := s.add(rule)
	return &created, nil
}

func (s *fakeRuleStore) UpdateRule(_ context.Context, rule core.RecurringRule) (*core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return &rule, nil
}

func (s *fakeRuleStore) DeleteRule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

type fakeTxStore struct {
	mu     sync.Mutex
	txs    []core.Transaction
	nextID int64

	existsErr map[int64]error // per rule ID
	insertErr error
	createErr error
	dropRules map[int64]bool // simulate losing the idempotency race
}

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{
		nextID:    1,
		existsErr: make(map[int64]error),
		dropRules: make(map[int64]bool),
	}
}

func (s *fakeTxStore) ExistsGenerated(_ context.Context, key core.GeneratedKey) (bool, error) {
	if err := s.existsErr[key.RuleID]; err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.RecurringRuleID != nil && *tx.RecurringRuleID == key.RuleID && tx.Date.Equal(key.Date.Time) {
			return true, nil
		}
		if matchesNaturalKey(tx, key) {
			return true, nil
		}
	}
	return false, nil
}

// matchesNaturalKey mirrors the storage layer's legacy heuristic.
func matchesNaturalKey(tx core.Transaction, key core.GeneratedKey) bool {
	if tx.OwnerUserID != key.OwnerUserID || !tx.Date.Equal(key.Date.Time) || tx.Amount != key.Amount {
		return false
	}
	if (tx.CategoryID == nil) != (key.CategoryID == nil) {
		return false
	}
	if tx.CategoryID != nil && *tx.CategoryID != *key.CategoryID {
		return false
	}
	if tx.Merchant != key.Merchant {
		return false
	}
	if !strings.Contains(tx.Memo, core.AutoGeneratedMarker) {
		return false
	}
	if key.RuleMemo != "" && !strings.Contains(tx.Memo, key.RuleMemo) {
		return false
	}
	return true
}

func (s *fakeTxStore) InsertGenerated(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted []core.Transaction
	for _, tx := range txs {
		if tx.RecurringRuleID != nil && s.dropRules[*tx.RecurringRuleID] {
			continue
		}
		if s.hasOccurrenceLocked(tx) {
			continue
		}
		tx.ID = s.nextID
		s.nextID++
		tx.CreatedAt = time.Now()
		tx.UpdatedAt = tx.CreatedAt
		s.txs = append(s.txs, tx)
		inserted = append(inserted, tx)
	}
	return inserted, nil
}

func (s *fakeTxStore) CreateTransaction(_ context.Context, tx core.Transaction) (*core.Transaction, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.nextID
	s.nextID++
	tx.CreatedAt = time.Now()
	tx.UpdatedAt = tx.CreatedAt
	s.txs = append(s.txs, tx)
	return &tx, nil
}

func (s *fakeTxStore) hasOccurrenceLocked(candidate core.Transaction) bool {
	if candidate.RecurringRuleID == nil {
		return false
	}
	for _, tx := range s.txs {
		if tx.RecurringRuleID != nil && *tx.RecurringRuleID == *candidate.RecurringRuleID &&
			tx.Date.Equal(candidate.Date.Time) {
			return true
		}
	}
	return false
}

func (s *fakeTxStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

type fakeCategoryStore struct {
	categories map[int64]core.Category
}

func newFakeCategoryStore(categories ...core.Category) *fakeCategoryStore {
	s := &fakeCategoryStore{categories: make(map[int64]core.Category)}
	for _, c := range categories {
		s.categories[c.ID] = c
	}
	return s
}

func (s *fakeCategoryStore) GetCategory(_ context.Context, id int64) (*core.Category, error) {
	category, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return &category, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []int64 // transaction IDs
	err       error
}

func (p *fakePublisher) PublishTransactionGenerated(_ context.Context, txID, _ int64, _ core.Date) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, txID)
	return nil
}
