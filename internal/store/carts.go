package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/models"
)

// ensureUser returns the internal id of the user, registering an unknown
// identity without touching an existing record.
func ensureUser(ctx context.Context, tx *sql.Tx, externalID int64) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (external_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (external_id) DO NOTHING`,
		externalID)
	if err != nil {
		return 0, fmt.Errorf("register user: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE external_id = $1`, externalID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get user id: %w", err)
	}
	return id, nil
}

// cartID looks up the cart of a registered user. ok is false when the user or
// the cart does not exist.
func cartID(ctx context.Context, tx *sql.Tx, externalID int64, lock bool) (id int64, ok bool, err error) {
	query := `
		SELECT c.id
		FROM carts c
		JOIN users u ON u.id = c.user_id
		WHERE u.external_id = $1`
	if lock {
		query += ` FOR UPDATE OF c`
	}

	err = tx.QueryRowContext(ctx, query, externalID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get cart: %w", err)
	}
	return id, true, nil
}

// AddItem puts one unit of the product into the user's cart. The user and the
// cart are created on first use; an existing line is incremented.
func AddItem(ctx context.Context, db *sql.DB, externalID, productID int64) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`,
			productID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		if !exists {
			return database.ErrProductNotFound
		}

		userID, err := ensureUser(ctx, tx, externalID)
		if err != nil {
			return err
		}

		var cart int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO carts (user_id, created_at)
			VALUES ($1, NOW())
			ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
			RETURNING id`,
			userID).Scan(&cart)
		if err != nil {
			return fmt.Errorf("get or create cart: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity)
			VALUES ($1, $2, 1)
			ON CONFLICT (cart_id, product_id) DO UPDATE
			SET quantity = cart_items.quantity + 1`,
			cart, productID)
		if err != nil {
			return fmt.Errorf("add cart line: %w", err)
		}
		return nil
	})
}

// SetItemQuantity replaces the quantity of an existing line. A quantity of
// zero removes the line.
func SetItemQuantity(ctx context.Context, db *sql.DB, externalID, productID int64, quantity int) error {
	if quantity < 0 {
		return &database.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cart, ok, err := cartID(ctx, tx, externalID, true)
		if err != nil {
			return err
		}
		if !ok {
			return database.ErrProductNotFound
		}

		var result sql.Result
		if quantity == 0 {
			result, err = tx.ExecContext(ctx,
				`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
				cart, productID)
		} else {
			result, err = tx.ExecContext(ctx,
				`UPDATE cart_items SET quantity = $1 WHERE cart_id = $2 AND product_id = $3`,
				quantity, cart, productID)
		}
		if err != nil {
			return fmt.Errorf("set cart line quantity: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrProductNotFound
		}
		return nil
	})
}

// ListItems returns the cart lines with current product data. A user without a
// cart gets an empty slice.
func ListItems(ctx context.Context, db *sql.DB, externalID int64) ([]models.CartItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT p.id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN users u ON u.id = c.user_id
		JOIN products p ON p.id = ci.product_id
		WHERE u.external_id = $1
		ORDER BY ci.id`,
		externalID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	return scanCartItems(rows)
}

func scanCartItems(rows *sql.Rows) ([]models.CartItem, error) {
	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// Clear empties the cart. It reports false when there was nothing to clear.
func Clear(ctx context.Context, db *sql.DB, externalID int64) (bool, error) {
	var cleared bool

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cart, ok, err := cartID(ctx, tx, externalID, true)
		if err != nil || !ok {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		cleared = rowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return cleared, nil
}
