package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-shop-bot/internal/database"
)

// SeedCategories inserts the missing names, keeping the given order for new rows.
func SeedCategories(ctx context.Context, db *sql.DB, names []string) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		for _, name := range names {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
				name)
			if err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
		}
		return nil
	})
}

// ListCategories returns category names in insertion order.
func ListCategories(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return names, nil
}

// categoryID resolves a category name inside tx.
func categoryID(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = $1`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrCategoryNotFound
		}
		return 0, fmt.Errorf("get category: %w", err)
	}
	return id, nil
}

func unknownCategory(name string) error {
	return fmt.Errorf("%w: %w", &database.ValidationError{Field: "category", Reason: fmt.Sprintf("%q does not exist", name)}, database.ErrCategoryNotFound)
}
