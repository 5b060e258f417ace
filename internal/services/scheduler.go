package services

import (
	"context"
	"fmt"
	"log/slog"

	"gagyebu/internal/core"
)

// RecurringScheduler evaluates active recurring rules against calendar dates
// and idempotently materializes ledger transactions. It is stateless between
// invocations; each Process call is a self-contained batch job.
type RecurringScheduler struct {
	rules  RuleStore
	txs    TransactionStore
	events EventPublisher
}

// NewRecurringScheduler creates a scheduler over the given stores. The event
// publisher may be nil.
func NewRecurringScheduler(rules RuleStore, txs TransactionStore, events EventPublisher) *RecurringScheduler {
	return &RecurringScheduler{
		rules:  rules,
		txs:    txs,
		events: events,
	}
}

// ProcessOptions narrows one batch run. A zero TargetDate means today.
type ProcessOptions struct {
	TargetDate core.Date
	RuleID     *int64
	UserID     *int64
}

// RangeOptions describes an inclusive date-range run.
type RangeOptions struct {
	StartDate core.Date
	EndDate   core.Date
	RuleID    *int64
	UserID    *int64
}

// OutcomeStatus classifies what happened to one rule in a batch.
type OutcomeStatus string

const (
	OutcomeCreated OutcomeStatus = "created"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// RuleOutcome is the per-rule entry of a batch report. Rules whose
// recurrence predicate did not match the date are not reported at all.
type RuleOutcome struct {
	RuleID int64         `json:"rule_id"`
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// ProcessResult is the accounting for one single-date batch.
type ProcessResult struct {
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	Total   int           `json:"total"`
	Date    core.Date     `json:"date"`
	Report  []RuleOutcome `json:"report,omitempty"`
}

// RangeResult sums the accounting over an inclusive date range.
type RangeResult struct {
	Created   int             `json:"created"`
	Skipped   int             `json:"skipped"`
	StartDate core.Date       `json:"start_date"`
	EndDate   core.Date       `json:"end_date"`
	Days      []ProcessResult `json:"days,omitempty"`
}

// Process runs one batch over a single date. Per-rule failures are logged
// and isolated; only a storage commit failure aborts the call. Repeated
// calls for the same date are idempotent: already-materialized occurrences
// are detected as duplicates and counted as skipped.
func (s *RecurringScheduler) Process(ctx context.Context, opts ProcessOptions) (ProcessResult, error) {
	target := opts.TargetDate
	if target.IsZero() {
		target = core.Today()
	}

	rules, err := s.rules.FindActiveRules(ctx, core.RuleFilter{
		RuleID:   opts.RuleID,
		UserID:   opts.UserID,
		NotAfter: target,
	})
	if err != nil {
		return ProcessResult{}, fmt.Errorf("find active rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"total_active", len(rules),
		"target_date", target.String())

	result := ProcessResult{Total: len(rules), Date: target}
	var staged []core.Transaction

	for _, rule := range rules {
		// Predicate miss is not an occurrence at all, so it is neither
		// created nor skipped.
		if !core.ShouldFire(rule.DayRule, rule.Frequency, target, rule.StartDate) {
			continue
		}

		exists, err := s.txs.ExistsGenerated(ctx, core.GeneratedKeyFor(rule, target))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check for duplicate transaction",
				"rule_id", rule.ID,
				"target_date", target.String(),
				"error", err)
			result.Report = append(result.Report, RuleOutcome{
				RuleID: rule.ID,
				Status: OutcomeFailed,
				Reason: err.Error(),
			})
			continue
		}

		if exists {
			result.Skipped++
			result.Report = append(result.Report, RuleOutcome{RuleID: rule.ID, Status: OutcomeSkipped})
			continue
		}

		staged = append(staged, core.MaterializeTransaction(rule, target))
	}

	// One storage write for the whole batch. A failure here is fatal for
	// the call and discards the staged accounting.
	inserted, err := s.txs.InsertGenerated(ctx, staged)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("commit generated transactions: %w", err)
	}

	insertedRules := make(map[int64]bool, len(inserted))
	for _, tx := range inserted {
		if tx.RecurringRuleID != nil {
			insertedRules[*tx.RecurringRuleID] = true
		}
	}

	// A staged row dropped by the store lost the idempotency race to a
	// concurrent invocation; count it as skipped, not created.
	for _, tx := range staged {
		ruleID := int64(0)
		if tx.RecurringRuleID != nil {
			ruleID = *tx.RecurringRuleID
		}
		if insertedRules[ruleID] {
			result.Created++
			result.Report = append(result.Report, RuleOutcome{RuleID: ruleID, Status: OutcomeCreated})
		} else {
			result.Skipped++
			result.Report = append(result.Report, RuleOutcome{
				RuleID: ruleID,
				Status: OutcomeSkipped,
				Reason: "lost idempotency race",
			})
		}
	}

	s.publishGenerated(ctx, inserted)

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"created", result.Created,
		"skipped", result.Skipped,
		"total_checked", result.Total,
		"target_date", target.String())

	return result, nil
}

// ProcessRange runs Process once per calendar day in the inclusive range,
// sequentially, and sums the counts. The span is limited to 31 days.
func (s *RecurringScheduler) ProcessRange(ctx context.Context, opts RangeOptions) (RangeResult, error) {
	if opts.StartDate.AfterDate(opts.EndDate) {
		return RangeResult{}, core.ErrInvalidDateRange
	}
	if spanDays(opts.StartDate, opts.EndDate) > core.MaxRangeDays {
		return RangeResult{}, core.ErrRangeTooLong
	}

	result := RangeResult{StartDate: opts.StartDate, EndDate: opts.EndDate}

	for day := opts.StartDate; !day.AfterDate(opts.EndDate); day = day.AddDays(1) {
		dayResult, err := s.Process(ctx, ProcessOptions{
			TargetDate: day,
			RuleID:     opts.RuleID,
			UserID:     opts.UserID,
		})
		if err != nil {
			return RangeResult{}, fmt.Errorf("process %s: %w", day, err)
		}
		result.Created += dayResult.Created
		result.Skipped += dayResult.Skipped
		result.Days = append(result.Days, dayResult)
	}

	return result, nil
}

// Generate materializes a single occurrence of one rule, bypassing the
// recurrence predicate (explicit manual override). The rule must be active
// and owned by userID; absent, inactive and not-owned are indistinguishable
// to the caller. A duplicate occurrence is a conflict, not a silent skip.
func (s *RecurringScheduler) Generate(ctx context.Context, ruleID int64, target core.Date, userID int64) (*core.Transaction, error) {
	rule, err := s.rules.FindActiveRuleForOwner(ctx, ruleID, userID)
	if err != nil {
		return nil, fmt.Errorf("find rule %d: %w", ruleID, err)
	}
	if rule == nil {
		return nil, core.ErrRuleNotFound
	}

	exists, err := s.txs.ExistsGenerated(ctx, core.GeneratedKeyFor(*rule, target))
	if err != nil {
		return nil, fmt.Errorf("check duplicate for rule %d: %w", ruleID, err)
	}
	if exists {
		return nil, core.ErrDuplicateTransaction
	}

	created, err := s.txs.CreateTransaction(ctx, core.MaterializeTransaction(*rule, target))
	if err != nil {
		return nil, fmt.Errorf("create transaction for rule %d: %w", ruleID, err)
	}

	s.publishGenerated(ctx, []core.Transaction{*created})

	slog.InfoContext(ctx, "Generated transaction from rule",
		"rule_id", ruleID,
		"transaction_id", created.ID,
		"target_date", target.String(),
		"amount", created.Amount)

	return created, nil
}

// publishGenerated emits best-effort events; failures are logged and never
// affect the accounting already returned to the caller.
func (s *RecurringScheduler) publishGenerated(ctx context.Context, txs []core.Transaction) {
	if s.events == nil {
		return
	}
	for _, tx := range txs {
		ruleID := int64(0)
		if tx.RecurringRuleID != nil {
			ruleID = *tx.RecurringRuleID
		}
		if err := s.events.PublishTransactionGenerated(ctx, tx.ID, ruleID, tx.Date); err != nil {
			slog.ErrorContext(ctx, "Failed to publish generated-transaction event",
				"transaction_id", tx.ID,
				"rule_id", ruleID,
				"error", err)
		}
	}
}

func spanDays(start, end core.Date) int {
	return int(end.Sub(start.Time).Hours() / 24)
}
