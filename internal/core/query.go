package core

// RuleFilter selects the active rules one scheduler batch considers:
// is_active AND start_date <= NotAfter, optionally narrowed to a single
// rule and/or creator.
type RuleFilter struct {
	RuleID   *int64
	UserID   *int64
	NotAfter Date
}

// RuleListFilter narrows the rule-management list surface.
type RuleListFilter struct {
	IsActive *bool
	GroupID  *int64
}

// GeneratedKey identifies one rule occurrence for duplicate suppression.
// The idempotency pair (RuleID, Date) is the primary match; the remaining
// fields form the legacy natural-key heuristic for rows generated before
// rule IDs were recorded on transactions.
type GeneratedKey struct {
	RuleID      int64
	OwnerUserID int64
	Date        Date
	Amount      int64
	CategoryID  *int64
	Merchant    string
	RuleMemo    string
}

// GeneratedKeyFor derives the duplicate-suppression key for a rule on a date.
func GeneratedKeyFor(rule RecurringRule, target Date) GeneratedKey {
	return GeneratedKey{
		RuleID:      rule.ID,
		OwnerUserID: rule.CreatedBy,
		Date:        target,
		Amount:      rule.Amount,
		CategoryID:  rule.CategoryID,
		Merchant:    rule.Merchant,
		RuleMemo:    rule.Memo,
	}
}

// MemoPattern is the SQL LIKE pattern the natural-key heuristic uses:
// "%{rule memo}%자동 생성%" when the rule has a memo, "%자동 생성%" otherwise.
func (k GeneratedKey) MemoPattern() string {
	if k.RuleMemo != "" {
		return "%" + k.RuleMemo + "%" + AutoGeneratedMarker + "%"
	}
	return "%" + AutoGeneratedMarker + "%"
}
