package storage

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategoriesYAML []byte

type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
}

type seedCategory struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Color string `yaml:"color"`
}

// SeedDefaultCategories inserts the built-in category set into an empty
// database. A database that already has categories is left untouched.
func (r *SQLiteRepository) SeedDefaultCategories(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	var seed seedFile
	if err := yaml.Unmarshal(defaultCategoriesYAML, &seed); err != nil {
		return fmt.Errorf("parse category seed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range seed.Categories {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, type, color, created_by, is_default, created_at, updated_at)
			 VALUES (?, ?, ?, 0, 1, ?, ?)`,
			c.Name, c.Type, c.Color, now, now)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit category seed: %w", err)
	}

	slog.InfoContext(ctx, "Default categories seeded", "count", len(seed.Categories))
	return nil
}
