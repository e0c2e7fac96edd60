package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/models"
)

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

// Checkout turns the user's cart into an order and empties the cart in the
// same transaction. Lines carry the product name and price as of now.
func Checkout(ctx context.Context, db *sql.DB, externalID int64) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var userID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE external_id = $1`,
			externalID).Scan(&userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrUserNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}

		cart, ok, err := cartID(ctx, tx, externalID, true)
		if err != nil {
			return err
		}
		if !ok {
			return database.ErrEmptyCart
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT p.id, p.name, p.price, ci.quantity
			FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.cart_id = $1
			ORDER BY ci.id`,
			cart)
		if err != nil {
			return fmt.Errorf("read cart lines: %w", err)
		}
		items, err := scanCartItems(rows)
		rows.Close()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return database.ErrEmptyCart
		}

		order = &models.Order{UserID: userID, OrderNumber: generateOrderNumber()}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (user_id, order_number, created_at)
			VALUES ($1, $2, NOW())
			RETURNING id, created_at`,
			userID, order.OrderNumber).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		order.Lines = make([]models.OrderLine, 0, len(items))
		for _, item := range items {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5)`,
				order.ID, item.ProductID, item.Name, item.Quantity, item.Price)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			productID := item.ProductID
			order.Lines = append(order.Lines, models.OrderLine{
				ProductID: &productID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.Price,
			})
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrderDetails(ctx context.Context, db *sql.DB, orderID int64) (*models.OrderDetails, error) {
	details := &models.OrderDetails{}
	var username sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT o.id, o.order_number, u.external_id, u.username, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1`,
		orderID).Scan(
		&details.OrderID,
		&details.OrderNumber,
		&details.ExternalID,
		&username,
		&details.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	details.Username = username.String
	if details.Username == "" {
		details.Username = models.UnspecifiedUsername
	}

	rows, err := db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	details.Lines = []models.OrderLine{}
	for rows.Next() {
		var (
			line      models.OrderLine
			productID sql.NullInt64
		)
		if err := rows.Scan(&productID, &line.Name, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if productID.Valid {
			id := productID.Int64
			line.ProductID = &id
		}
		details.Lines = append(details.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return details, nil
}

// ListOrdersCursor pages through a user's orders, newest first.
func ListOrdersCursor(ctx context.Context, db *sql.DB, externalID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, &database.ValidationError{Field: "cursor", Reason: "malformed"}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT o.id, o.user_id, o.order_number, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE u.external_id = $1
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`,
		externalID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.OrderNumber, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
