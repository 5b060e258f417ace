package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gagyebu/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements the rule, transaction and category stores
// over a single SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db}

	if err := repo.SeedDefaultCategories(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed default categories: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const ruleColumns = `r.id, r.group_id, r.created_by, r.start_date, r.frequency, r.day_rule,
	r.amount, r.category_id, r.merchant, r.memo, r.is_active, r.created_at, r.updated_at,
	c.id, c.name, c.type, c.color`

const ruleSelect = `SELECT ` + ruleColumns + `
	FROM recurring_rules r
	LEFT JOIN categories c ON c.id = r.category_id`

// FindActiveRules loads the rules one scheduler batch considers, with
// their category attached.
func (r *SQLiteRepository) FindActiveRules(ctx context.Context, filter core.RuleFilter) ([]core.RecurringRule, error) {
	where := []string{"r.is_active = 1", "r.start_date <= ?"}
	args := []any{filter.NotAfter.String()}

	if filter.RuleID != nil {
		where = append(where, "r.id = ?")
		args = append(args, *filter.RuleID)
	}
	if filter.UserID != nil {
		where = append(where, "r.created_by = ?")
		args = append(args, *filter.UserID)
	}

	query := ruleSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY r.id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

func (r *SQLiteRepository) FindActiveRuleForOwner(ctx context.Context, id, ownerID int64) (*core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx,
		ruleSelect+" WHERE r.id = ? AND r.created_by = ? AND r.is_active = 1",
		id, ownerID)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query rule %d: %w", id, err)
	}
	return rule, nil
}

func (r *SQLiteRepository) ListRules(ctx context.Context, ownerID int64, filter core.RuleListFilter) ([]core.RecurringRule, error) {
	where := []string{"r.created_by = ?"}
	args := []any{ownerID}

	if filter.IsActive != nil {
		where = append(where, "r.is_active = ?")
		args = append(args, boolToInt(*filter.IsActive))
	}
	if filter.GroupID != nil {
		where = append(where, "r.group_id = ?")
		args = append(args, *filter.GroupID)
	}

	query := ruleSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY r.id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules for user %d: %w", ownerID, err)
	}
	defer rows.Close()

	return scanRules(rows)
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id int64) (*core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx, ruleSelect+" WHERE r.id = ?", id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query rule %d: %w", id, err)
	}
	return rule, nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurringRule) (*core.RecurringRule, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO recurring_rules
			(group_id, created_by, start_date, frequency, day_rule, amount,
			 category_id, merchant, memo, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		nullableID(rule.GroupID), rule.CreatedBy, rule.StartDate.String(),
		string(rule.Frequency), rule.DayRule, rule.Amount,
		nullableID(rule.CategoryID), rule.Merchant, rule.Memo,
		boolToInt(rule.IsActive), now, now).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule saved",
		"rule_id", id,
		"created_by", rule.CreatedBy,
		"frequency", rule.Frequency)

	return r.GetRule(ctx, id)
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurringRule) (*core.RecurringRule, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules
		 SET frequency = ?, day_rule = ?, amount = ?, category_id = ?,
		     merchant = ?, memo = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		string(rule.Frequency), rule.DayRule, rule.Amount, nullableID(rule.CategoryID),
		rule.Merchant, rule.Memo, boolToInt(rule.IsActive), now, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("update rule %d: %w", rule.ID, err)
	}

	return r.GetRule(ctx, rule.ID)
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM recurring_rules WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (*core.Category, error) {
	var c core.Category
	var groupID sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT id, group_id, created_by, name, type, color, is_default FROM categories WHERE id = ?",
		id).Scan(&c.ID, &groupID, &c.CreatedBy, &c.Name, &c.Type, &c.Color, &c.IsDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query category %d: %w", id, err)
	}
	if groupID.Valid {
		c.GroupID = &groupID.Int64
	}
	return &c, nil
}

// ExistsGenerated reports whether a transaction for the given occurrence
// already exists. The idempotency pair (rule, date) is checked first; the
// natural-key heuristic covers legacy rows without a recorded rule ID.
// Note the SQLite IS operator, which compares NULL category IDs correctly.
func (r *SQLiteRepository) ExistsGenerated(ctx context.Context, key core.GeneratedKey) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE (recurring_rule_id = ? AND date = ?)
			   OR (owner_user_id = ? AND date = ? AND amount = ?
			       AND category_id IS ? AND merchant = ? AND memo LIKE ?)
		)`,
		key.RuleID, key.Date.String(),
		key.OwnerUserID, key.Date.String(), key.Amount,
		nullableID(key.CategoryID), key.Merchant, key.MemoPattern()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check generated transaction: %w", err)
	}
	return exists, nil
}

// InsertGenerated writes a scheduler batch in one database transaction.
// Rows violating the idempotency unique index are dropped silently
// (ON CONFLICT DO NOTHING) and omitted from the returned slice.
func (r *SQLiteRepository) InsertGenerated(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	now := time.Now().UTC()
	var inserted []core.Transaction
	for _, tx := range txs {
		var id int64
		err := dbTx.QueryRowContext(ctx,
			insertTransactionSQL+" ON CONFLICT DO NOTHING RETURNING id",
			transactionArgs(tx, now)...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue // lost the idempotency race
		}
		if err != nil {
			return nil, fmt.Errorf("insert generated transaction: %w", err)
		}
		tx.ID = id
		tx.CreatedAt = now
		tx.UpdatedAt = now
		inserted = append(inserted, tx)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit generated transactions: %w", err)
	}

	slog.InfoContext(ctx, "Generated transactions committed",
		"staged", len(txs),
		"inserted", len(inserted))

	return inserted, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (*core.Transaction, error) {
	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx,
		insertTransactionSQL+" RETURNING id",
		transactionArgs(tx, now)...).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	tx.ID = id
	tx.CreatedAt = now
	tx.UpdatedAt = now
	return &tx, nil
}

const insertTransactionSQL = `INSERT INTO transactions
	(group_id, owner_user_id, type, date, amount, category_id, merchant, memo,
	 recurring_rule_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func transactionArgs(tx core.Transaction, now time.Time) []any {
	return []any{
		nullableID(tx.GroupID), tx.OwnerUserID, string(tx.Type), tx.Date.String(),
		tx.Amount, nullableID(tx.CategoryID), tx.Merchant, tx.Memo,
		nullableID(tx.RecurringRuleID),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	}
}

type ruleScanner interface {
	Scan(dest ...any) error
}

func scanRule(row ruleScanner) (*core.RecurringRule, error) {
	var (
		rule       core.RecurringRule
		groupID    sql.NullInt64
		categoryID sql.NullInt64
		startDate  string
		isActive   int
		createdAt  string
		updatedAt  string

		catID    sql.NullInt64
		catName  sql.NullString
		catType  sql.NullString
		catColor sql.NullString
	)

	err := row.Scan(&rule.ID, &groupID, &rule.CreatedBy, &startDate, &rule.Frequency,
		&rule.DayRule, &rule.Amount, &categoryID, &rule.Merchant, &rule.Memo,
		&isActive, &createdAt, &updatedAt,
		&catID, &catName, &catType, &catColor)
	if err != nil {
		return nil, err
	}

	if groupID.Valid {
		rule.GroupID = &groupID.Int64
	}
	if categoryID.Valid {
		rule.CategoryID = &categoryID.Int64
	}
	rule.IsActive = isActive != 0

	if rule.StartDate, err = core.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("parse start_date %q: %w", startDate, err)
	}
	if rule.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if rule.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}

	if catID.Valid {
		rule.Category = &core.Category{
			ID:    catID.Int64,
			Name:  catName.String,
			Type:  core.TransactionType(catType.String),
			Color: catColor.String,
		}
	}

	return &rule, nil
}

func scanRules(rows *sql.Rows) ([]core.RecurringRule, error) {
	var rules []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
