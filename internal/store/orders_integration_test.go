//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/models"
	"github.com/safar/go-shop-bot/internal/store"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemTwiceIncrementsQuantity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mango := createProduct(t, db, "Mango", "Liquids", 10)

	require.NoError(t, store.AddItem(ctx, db, 1001, mango.ID))
	require.NoError(t, store.AddItem(ctx, db, 1001, mango.ID))

	items, err := store.ListItems(ctx, db, 1001)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, countRows(t, db, "cart_items"))
}

func TestAddItemUnknownProduct(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := store.AddItem(ctx, db, 1001, 4242)
	assert.ErrorIs(t, err, database.ErrProductNotFound)
	assert.Equal(t, 0, countRows(t, db, "users"))
	assert.Equal(t, 0, countRows(t, db, "carts"))
}

func TestConcurrentAddItem(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mango := createProduct(t, db, "Mango", "Liquids", 10)

	const adds = 10
	var wg sync.WaitGroup
	errs := make(chan error, adds)

	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.AddItem(ctx, db, 1001, mango.ID)
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	items, err := store.ListItems(ctx, db, 1001)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, adds, items[0].Quantity)
}

func TestSetItemQuantity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mango := createProduct(t, db, "Mango", "Liquids", 10)
	require.NoError(t, store.AddItem(ctx, db, 1001, mango.ID))

	require.NoError(t, store.SetItemQuantity(ctx, db, 1001, mango.ID, 4))
	items, err := store.ListItems(ctx, db, 1001)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)

	require.NoError(t, store.SetItemQuantity(ctx, db, 1001, mango.ID, 0))
	items, err = store.ListItems(ctx, db, 1001)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = store.SetItemQuantity(ctx, db, 1001, mango.ID, 2)
	assert.ErrorIs(t, err, database.ErrProductNotFound)

	err = store.SetItemQuantity(ctx, db, 1001, mango.ID, -1)
	assert.True(t, database.IsValidation(err))
}

func TestClear(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cleared, err := store.Clear(ctx, db, 1001)
	require.NoError(t, err)
	assert.False(t, cleared, "no cart")

	mango := createProduct(t, db, "Mango", "Liquids", 10)
	require.NoError(t, store.AddItem(ctx, db, 1001, mango.ID))

	cleared, err = store.Clear(ctx, db, 1001)
	require.NoError(t, err)
	assert.True(t, cleared)

	items, err := store.ListItems(ctx, db, 1001)
	require.NoError(t, err)
	assert.Empty(t, items)

	cleared, err = store.Clear(ctx, db, 1001)
	require.NoError(t, err)
	assert.False(t, cleared, "already empty")
}

func TestCheckoutUnregisteredUser(t *testing.T) {
	db := setupTestDB(t)

	_, err := store.Checkout(context.Background(), db, 1001)
	assert.ErrorIs(t, err, database.ErrUserNotFound)
}

func TestCheckoutEmptyCart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := store.RegisterOrUpdateUser(ctx, db, 1001, "alice", false)
	require.NoError(t, err)

	_, err = store.Checkout(ctx, db, 1001)
	assert.ErrorIs(t, err, database.ErrEmptyCart, "no cart yet")

	mango := createProduct(t, db, "Mango", "Liquids", 10)
	require.NoError(t, store.AddItem(ctx, db, 1001, mango.ID))
	_, err = store.Clear(ctx, db, 1001)
	require.NoError(t, err)

	_, err = store.Checkout(ctx, db, 1001)
	assert.ErrorIs(t, err, database.ErrEmptyCart, "cart emptied")

	assert.Equal(t, 0, countRows(t, db, "cart_items"))
	assert.Equal(t, 0, countRows(t, db, "orders"))
}

func TestCheckoutSnapshotsPrices(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := createProduct(t, db, "A", "Liquids", 10)
	b := createProduct(t, db, "B", "Pods", 5)

	require.NoError(t, store.AddItem(ctx, db, 1001, a.ID))
	require.NoError(t, store.AddItem(ctx, db, 1001, a.ID))
	require.NoError(t, store.AddItem(ctx, db, 1001, b.ID))

	order, err := store.Checkout(ctx, db, 1001)
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.NotEmpty(t, order.OrderNumber)
	assert.Len(t, order.Lines, 2)

	items, err := store.ListItems(ctx, db, 1001)
	require.NoError(t, err)
	assert.Empty(t, items)

	details, err := store.GetOrderDetails(ctx, db, order.ID)
	require.NoError(t, err)
	assert.True(t, details.Total().Equal(decimal.NewFromInt(25)))
	assert.Equal(t, int64(1001), details.ExternalID)
	assert.Equal(t, models.UnspecifiedUsername, details.Username)
	require.Len(t, details.Lines, 2)
	assert.Equal(t, "A", details.Lines[0].Name)
	assert.Equal(t, 2, details.Lines[0].Quantity)

	_, err = store.UpdateProduct(ctx, db, a.ID, models.ProductUpdate{Price: mo.Some(decimal.NewFromInt(99))})
	require.NoError(t, err)

	again, err := store.GetOrderDetails(ctx, db, order.ID)
	require.NoError(t, err)
	assert.True(t, again.Lines[0].UnitPrice.Equal(decimal.NewFromInt(10)))
	assert.True(t, again.Total().Equal(decimal.NewFromInt(25)))
}

func TestCheckoutRollsBackOnFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mango := createProduct(t, db, "Mango", "Liquids", 10)
	require.NoError(t, store.AddItem(ctx, db, 1001, mango.ID))
	require.NoError(t, store.AddItem(ctx, db, 1001, mango.ID))

	_, err := db.Exec(`
		CREATE FUNCTION reject_order_items() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'order items are read-only';
		END;
		$$ LANGUAGE plpgsql;

		CREATE TRIGGER reject_order_items
		BEFORE INSERT ON order_items
		FOR EACH ROW EXECUTE FUNCTION reject_order_items();`)
	require.NoError(t, err)

	_, err = store.Checkout(ctx, db, 1001)
	require.Error(t, err)
	assert.True(t, database.IsStorageFault(err))

	assert.Equal(t, 0, countRows(t, db, "orders"))
	items, err := store.ListItems(ctx, db, 1001)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestGetOrderDetailsNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := store.GetOrderDetails(context.Background(), db, 77)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
}

func TestListOrdersCursor(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mango := createProduct(t, db, "Mango", "Liquids", 10)

	var placed []int64
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddItem(ctx, db, 1001, mango.ID))
		order, err := store.Checkout(ctx, db, 1001)
		require.NoError(t, err)
		placed = append(placed, order.ID)
	}

	var seen []int64
	cursor := ""
	for {
		page, err := store.ListOrdersCursor(ctx, db, 1001, cursor, 2)
		require.NoError(t, err)

		orders := page.Items.([]models.Order)
		for _, o := range orders {
			seen = append(seen, o.ID)
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, seen, len(placed))
	for i := range placed {
		assert.Equal(t, placed[len(placed)-1-i], seen[i])
	}

	_, err := store.ListOrdersCursor(ctx, db, 1001, "%%%", 2)
	assert.True(t, database.IsValidation(err))
}
