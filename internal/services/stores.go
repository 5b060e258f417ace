package services

import (
	"context"

	"gagyebu/internal/core"
)

// RuleStore is the rule-side storage collaborator. FindActiveRules loads
// rules with their category attached, since the scheduler needs the
// category type to derive the transaction type.
type RuleStore interface {
	FindActiveRules(ctx context.Context, filter core.RuleFilter) ([]core.RecurringRule, error)
	FindActiveRuleForOwner(ctx context.Context, id, ownerID int64) (*core.RecurringRule, error)
}

// TransactionStore is the transaction-side storage collaborator.
//
// InsertGenerated writes a batch in one storage transaction. Rows that lose
// the idempotency-key race to a concurrent invocation are silently dropped
// by the store (unique-index conflict) and absent from the returned slice;
// the scheduler re-counts them as skipped.
type TransactionStore interface {
	ExistsGenerated(ctx context.Context, key core.GeneratedKey) (bool, error)
	InsertGenerated(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (*core.Transaction, error)
}

// RuleRepository is the rule-management surface consumed by RuleService.
type RuleRepository interface {
	ListRules(ctx context.Context, ownerID int64, filter core.RuleListFilter) ([]core.RecurringRule, error)
	GetRule(ctx context.Context, id int64) (*core.RecurringRule, error)
	CreateRule(ctx context.Context, rule core.RecurringRule) (*core.RecurringRule, error)
	UpdateRule(ctx context.Context, rule core.RecurringRule) (*core.RecurringRule, error)
	DeleteRule(ctx context.Context, id int64) error
}

// CategoryStore resolves category references at rule write time.
type CategoryStore interface {
	GetCategory(ctx context.Context, id int64) (*core.Category, error)
}

// EventPublisher announces generated transactions to downstream consumers.
// A nil publisher is tolerated everywhere; publishing is best-effort.
type EventPublisher interface {
	PublishTransactionGenerated(ctx context.Context, txID, ruleID int64, date core.Date) error
}
