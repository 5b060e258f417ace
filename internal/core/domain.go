package core

import (
	"errors"
	"strings"
	"time"
)

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

const (
	TypeExpense  TransactionType = "EXPENSE"
	TypeIncome   TransactionType = "INCOME"
	TypeTransfer TransactionType = "TRANSFER"
)

// AutoGeneratedMarker is appended (in parentheses) to the memo of every
// scheduler-created transaction and is part of the duplicate-detection match.
const AutoGeneratedMarker = "자동 생성"

type (
	Frequency string

	TransactionType string

	Date struct {
		time.Time
	}

	// Category is a read-only input for the scheduler; its type decides
	// whether a generated transaction is INCOME or EXPENSE.
	Category struct {
		ID        int64
		GroupID   *int64
		CreatedBy int64
		Name      string
		Type      TransactionType
		Color     string
		IsDefault bool
	}

	// RecurringRule is a user-defined recurrence specification.
	// DayRule keeps the original string for display and audit; the parsed
	// form is obtained with ParseSchedule.
	RecurringRule struct {
		ID         int64
		GroupID    *int64
		CreatedBy  int64
		StartDate  Date
		Frequency  Frequency
		DayRule    string
		Amount     int64
		CategoryID *int64
		Merchant   string
		Memo       string
		IsActive   bool
		Category   *Category
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// Transaction is a ledger entry. RecurringRuleID is set only on
	// scheduler-generated rows and forms the idempotency key together
	// with Date.
	Transaction struct {
		ID              int64
		GroupID         *int64
		OwnerUserID     int64
		Type            TransactionType
		Date            Date
		Amount          int64
		CategoryID      *int64
		Merchant        string
		Memo            string
		RecurringRuleID *int64
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}
)

var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidFrequency     = errors.New("invalid frequency")
	ErrInvalidDayRule       = errors.New("invalid day rule")
	ErrFutureStartDate      = errors.New("start date cannot be in the future")
	ErrRuleNotFound         = errors.New("recurring rule not found or inactive")
	ErrRuleForbidden        = errors.New("recurring rule belongs to another user")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrDuplicateTransaction = errors.New("transaction already exists for this date")
	ErrInvalidDateRange     = errors.New("start date must not be after end date")
	ErrRangeTooLong         = errors.New("date range exceeds 31 days")
)

// MaxRangeDays bounds a single range-processing call.
const MaxRangeDays = 31

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// DateOf truncates a time to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// WeekdayIndex returns the Monday-based weekday (0 = Monday … 6 = Sunday).
func (d Date) WeekdayIndex() int {
	return (int(d.Weekday()) + 6) % 7
}

func (d Date) IsWeekend() bool {
	return d.WeekdayIndex() >= 5
}

// LastDayOfMonth returns the number of days in d's month, computed by
// stepping 4 days past day 28 and truncating back.
func (d Date) LastDayOfMonth() int {
	nextMonth := time.Date(d.Year(), d.Month(), 28, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 4)
	return nextMonth.AddDate(0, 0, -nextMonth.Day()).Day()
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

func (d Date) BeforeDate(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) AfterDate(other Date) bool {
	return d.Time.After(other.Time)
}

// MarshalJSON renders the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD".
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the rule invariants enforced at write time. The reference
// date is the creation "today"; passing it in keeps the check deterministic.
func (r RecurringRule) Validate(today Date) error {
	if r.CreatedBy == 0 {
		return errors.New("rule creator is required")
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	if r.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	if r.StartDate.AfterDate(today) {
		return ErrFutureStartDate
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if _, err := ParseSchedule(r.Frequency, r.DayRule); err != nil {
		return err
	}
	return nil
}

// MaterializeTransaction builds the ledger entry for one occurrence of a
// rule. The result is not yet persisted. Type derivation: INCOME iff the
// rule's category is an INCOME category, otherwise EXPENSE.
func MaterializeTransaction(rule RecurringRule, target Date) Transaction {
	txType := TypeExpense
	if rule.Category != nil && rule.Category.Type == TypeIncome {
		txType = TypeIncome
	}

	ruleID := rule.ID
	return Transaction{
		GroupID:         rule.GroupID,
		OwnerUserID:     rule.CreatedBy,
		Type:            txType,
		Date:            target,
		Amount:          rule.Amount,
		CategoryID:      rule.CategoryID,
		Merchant:        rule.Merchant,
		Memo:            GeneratedMemo(rule.Memo),
		RecurringRuleID: &ruleID,
	}
}

// GeneratedMemo suffixes a rule memo with the auto-generation marker,
// e.g. "월세 (자동 생성)", or just "(자동 생성)" for an empty memo.
func GeneratedMemo(ruleMemo string) string {
	return strings.TrimSpace(ruleMemo + " (" + AutoGeneratedMarker + ")")
}
