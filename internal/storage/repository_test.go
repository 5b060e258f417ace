package storage

import (
	"context"
	"path/filepath"
	"testing"

	"gagyebu/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seededCategory(t *testing.T, repo *SQLiteRepository, txType core.TransactionType) *core.Category {
	t.Helper()
	for id := int64(1); id <= 20; id++ {
		c, err := repo.GetCategory(context.Background(), id)
		if err != nil {
			t.Fatalf("GetCategory(%d) error = %v", id, err)
		}
		if c != nil && c.Type == txType {
			return c
		}
	}
	t.Fatalf("no seeded %s category found", txType)
	return nil
}

func testRule(categoryID *int64) core.RecurringRule {
	return core.RecurringRule{
		CreatedBy:  11,
		StartDate:  core.NewDate(2025, 1, 1),
		Frequency:  core.FrequencyMonthly,
		DayRule:    "매월 1일",
		Amount:     500000,
		CategoryID: categoryID,
		Merchant:   "집주인",
		Memo:       "월세",
		IsActive:   true,
	}
}

func TestSeedDefaultCategories(t *testing.T) {
	repo := testRepo(t)

	expense := seededCategory(t, repo, core.TypeExpense)
	income := seededCategory(t, repo, core.TypeIncome)

	if !expense.IsDefault || !income.IsDefault {
		t.Error("seeded categories should be marked default")
	}

	// Seeding again must be a no-op.
	if err := repo.SeedDefaultCategories(context.Background()); err != nil {
		t.Fatalf("second SeedDefaultCategories() error = %v", err)
	}
	var count int
	if err := repo.db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 13 {
		t.Errorf("category count after reseed = %d, want 13", count)
	}
}

func TestRuleCRUD(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	cat := seededCategory(t, repo, core.TypeExpense)

	created, err := repo.CreateRule(ctx, testRule(&cat.ID))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateRule() returned zero ID")
	}
	if created.Category == nil || created.Category.Name != cat.Name {
		t.Errorf("CreateRule() category = %+v, want %q attached", created.Category, cat.Name)
	}
	if created.StartDate.String() != "2025-01-01" {
		t.Errorf("StartDate = %s, want 2025-01-01", created.StartDate)
	}

	created.Amount = 550000
	created.IsActive = false
	updated, err := repo.UpdateRule(ctx, *created)
	if err != nil {
		t.Fatalf("UpdateRule() error = %v", err)
	}
	if updated.Amount != 550000 || updated.IsActive {
		t.Errorf("UpdateRule() = amount %d active %v, want 550000 inactive", updated.Amount, updated.IsActive)
	}

	if err := repo.DeleteRule(ctx, created.ID); err != nil {
		t.Fatalf("DeleteRule() error = %v", err)
	}
	got, err := repo.GetRule(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if got != nil {
		t.Error("GetRule() after delete should return nil")
	}
}

func TestFindActiveRules(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	active, err := repo.CreateRule(ctx, testRule(nil))
	if err != nil {
		t.Fatal(err)
	}

	inactive := testRule(nil)
	inactive.IsActive = false
	if _, err := repo.CreateRule(ctx, inactive); err != nil {
		t.Fatal(err)
	}

	future := testRule(nil)
	future.StartDate = core.NewDate(2025, 6, 1)
	if _, err := repo.CreateRule(ctx, future); err != nil {
		t.Fatal(err)
	}

	otherUser := testRule(nil)
	otherUser.CreatedBy = 99
	other, err := repo.CreateRule(ctx, otherUser)
	if err != nil {
		t.Fatal(err)
	}

	target := core.NewDate(2025, 3, 1)

	rules, err := repo.FindActiveRules(ctx, core.RuleFilter{NotAfter: target})
	if err != nil {
		t.Fatalf("FindActiveRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("FindActiveRules() returned %d rules, want 2 (inactive and future excluded)", len(rules))
	}

	userID := int64(11)
	rules, err = repo.FindActiveRules(ctx, core.RuleFilter{NotAfter: target, UserID: &userID})
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].ID != active.ID {
		t.Errorf("user filter returned %d rules, want just rule %d", len(rules), active.ID)
	}

	rules, err = repo.FindActiveRules(ctx, core.RuleFilter{NotAfter: target, RuleID: &other.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].ID != other.ID {
		t.Errorf("rule filter returned %d rules, want just rule %d", len(rules), other.ID)
	}
}

func TestFindActiveRuleForOwner(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	created, err := repo.CreateRule(ctx, testRule(nil))
	if err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindActiveRuleForOwner(ctx, created.ID, 11)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("FindActiveRuleForOwner() = %+v, want rule %d", got, created.ID)
	}

	got, err = repo.FindActiveRuleForOwner(ctx, created.ID, 99)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("FindActiveRuleForOwner() with wrong owner should return nil")
	}

	created.IsActive = false
	if _, err := repo.UpdateRule(ctx, *created); err != nil {
		t.Fatal(err)
	}
	got, err = repo.FindActiveRuleForOwner(ctx, created.ID, 11)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("FindActiveRuleForOwner() for inactive rule should return nil")
	}
}

func TestListRules(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	groupID := int64(7)
	grouped := testRule(nil)
	grouped.GroupID = &groupID
	if _, err := repo.CreateRule(ctx, grouped); err != nil {
		t.Fatal(err)
	}

	inactive := testRule(nil)
	inactive.IsActive = false
	if _, err := repo.CreateRule(ctx, inactive); err != nil {
		t.Fatal(err)
	}

	all, err := repo.ListRules(ctx, 11, core.RuleListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("ListRules() returned %d rules, want 2", len(all))
	}

	activeOnly := true
	active, err := repo.ListRules(ctx, 11, core.RuleListFilter{IsActive: &activeOnly})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Errorf("active filter returned %d rules, want 1", len(active))
	}

	inGroup, err := repo.ListRules(ctx, 11, core.RuleListFilter{GroupID: &groupID})
	if err != nil {
		t.Fatal(err)
	}
	if len(inGroup) != 1 || inGroup[0].GroupID == nil || *inGroup[0].GroupID != groupID {
		t.Errorf("group filter returned %d rules, want 1 in group %d", len(inGroup), groupID)
	}
}

func TestExistsGenerated(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	cat := seededCategory(t, repo, core.TypeExpense)

	rule, err := repo.CreateRule(ctx, testRule(&cat.ID))
	if err != nil {
		t.Fatal(err)
	}
	target := core.NewDate(2025, 3, 1)
	key := core.GeneratedKeyFor(*rule, target)

	exists, err := repo.ExistsGenerated(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("ExistsGenerated() on empty ledger = true, want false")
	}

	inserted, err := repo.InsertGenerated(ctx, []core.Transaction{core.MaterializeTransaction(*rule, target)})
	if err != nil {
		t.Fatal(err)
	}
	if len(inserted) != 1 {
		t.Fatalf("InsertGenerated() inserted %d rows, want 1", len(inserted))
	}

	exists, err = repo.ExistsGenerated(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("ExistsGenerated() after insert = false, want true (idempotency pair)")
	}

	otherDay := core.GeneratedKeyFor(*rule, core.NewDate(2025, 4, 1))
	exists, err = repo.ExistsGenerated(ctx, otherDay)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("ExistsGenerated() for a different date = true, want false")
	}
}

func TestExistsGenerated_LegacyNaturalKey(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	cat := seededCategory(t, repo, core.TypeExpense)

	rule, err := repo.CreateRule(ctx, testRule(&cat.ID))
	if err != nil {
		t.Fatal(err)
	}
	target := core.NewDate(2025, 3, 1)

	// A row written before rule IDs were recorded: same natural key,
	// no recurring_rule_id.
	legacy := core.MaterializeTransaction(*rule, target)
	legacy.RecurringRuleID = nil
	if _, err := repo.CreateTransaction(ctx, legacy); err != nil {
		t.Fatal(err)
	}

	exists, err := repo.ExistsGenerated(ctx, core.GeneratedKeyFor(*rule, target))
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("ExistsGenerated() should match legacy rows by natural key")
	}

	// A manual row without the auto-generation marker is not a match.
	manual := legacy
	manual.Memo = "월세"
	manual.Date = core.NewDate(2025, 4, 1)
	if _, err := repo.CreateTransaction(ctx, manual); err != nil {
		t.Fatal(err)
	}
	exists, err = repo.ExistsGenerated(ctx, core.GeneratedKeyFor(*rule, manual.Date))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("ExistsGenerated() should not match manual rows lacking the marker")
	}
}

func TestInsertGenerated_ConflictSkipped(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	rule, err := repo.CreateRule(ctx, testRule(nil))
	if err != nil {
		t.Fatal(err)
	}
	target := core.NewDate(2025, 3, 1)
	tx := core.MaterializeTransaction(*rule, target)

	first, err := repo.InsertGenerated(ctx, []core.Transaction{tx})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("first InsertGenerated() inserted %d rows, want 1", len(first))
	}

	// Same occurrence again: the unique index drops it.
	second, err := repo.InsertGenerated(ctx, []core.Transaction{tx, core.MaterializeTransaction(*rule, core.NewDate(2025, 4, 1))})
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0].Date.String() != "2025-04-01" {
		t.Fatalf("second InsertGenerated() = %d rows, want only the new occurrence", len(second))
	}

	var count int
	if err := repo.db.QueryRow("SELECT COUNT(*) FROM transactions WHERE recurring_rule_id = ?", rule.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("transaction count = %d, want 2", count)
	}
}

func TestCreateTransaction(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	cat := seededCategory(t, repo, core.TypeIncome)

	rule := testRule(&cat.ID)
	rule.Memo = "급여"
	created, err := repo.CreateRule(ctx, rule)
	if err != nil {
		t.Fatal(err)
	}

	tx := core.MaterializeTransaction(*created, core.NewDate(2025, 3, 25))
	got, err := repo.CreateTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if got.ID == 0 {
		t.Error("CreateTransaction() returned zero ID")
	}
	if got.Type != core.TypeIncome {
		t.Errorf("Type = %s, want INCOME for an income category", got.Type)
	}
	if got.Memo != "급여 (자동 생성)" {
		t.Errorf("Memo = %q, want generated marker appended", got.Memo)
	}
}
