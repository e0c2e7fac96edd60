package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/models"
)

// GetStats reads all counters from one snapshot. topCategories bounds the
// category ranking.
func GetStats(ctx context.Context, db *sql.DB, topCategories int) (*models.Stats, error) {
	stats := &models.Stats{}

	opts := database.ReadOnlyTxOptions()
	opts.IsolationLevel = sql.LevelRepeatableRead

	err := database.WithTransaction(ctx, db, opts, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM products),
				(SELECT COUNT(*) FROM categories),
				(SELECT COUNT(*) FROM users),
				(SELECT COUNT(*) FROM orders)`).Scan(
			&stats.Products,
			&stats.Categories,
			&stats.Users,
			&stats.Orders,
		)
		if err != nil {
			return fmt.Errorf("count entities: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT c.name, COUNT(p.id) AS products
			FROM categories c
			JOIN products p ON p.category_id = c.id
			GROUP BY c.id, c.name
			ORDER BY products DESC, c.id
			LIMIT $1`,
			topCategories)
		if err != nil {
			return fmt.Errorf("top categories: %w", err)
		}
		defer rows.Close()

		stats.TopCategories = []models.CategoryCount{}
		for rows.Next() {
			var cc models.CategoryCount
			if err := rows.Scan(&cc.Name, &cc.Products); err != nil {
				return fmt.Errorf("scan category count: %w", err)
			}
			stats.TopCategories = append(stats.TopCategories, cc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}
