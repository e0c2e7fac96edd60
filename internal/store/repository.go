package store

import (
	"context"
	"database/sql"

	"github.com/safar/go-shop-bot/internal/models"
)

// Repository binds the store operations to one connection pool.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RegisterOrUpdateUser(ctx context.Context, externalID int64, username string, isAdmin bool) (*models.User, error) {
	return RegisterOrUpdateUser(ctx, r.db, externalID, username, isAdmin)
}

func (r *Repository) GetUserByExternalID(ctx context.Context, externalID int64) (*models.User, error) {
	return GetUserByExternalID(ctx, r.db, externalID)
}

func (r *Repository) EnsureAdministrators(ctx context.Context, externalIDs []int64) error {
	return EnsureAdministrators(ctx, r.db, externalIDs)
}

func (r *Repository) SetAdminFlag(ctx context.Context, externalID int64, isAdmin bool) (bool, error) {
	return SetAdminFlag(ctx, r.db, externalID, isAdmin)
}

func (r *Repository) ListAdministrators(ctx context.Context) ([]int64, error) {
	return ListAdministrators(ctx, r.db)
}

func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	return ListUserIDs(ctx, r.db)
}

func (r *Repository) ListUsers(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListUsers(ctx, r.db, page, pageSize)
}

func (r *Repository) SeedCategories(ctx context.Context, names []string) error {
	return SeedCategories(ctx, r.db, names)
}

func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	return ListCategories(ctx, r.db)
}

func (r *Repository) CreateProduct(ctx context.Context, p models.NewProduct) (*models.Product, error) {
	return CreateProduct(ctx, r.db, p)
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return GetProduct(ctx, r.db, id)
}

func (r *Repository) ListProducts(ctx context.Context, category string) ([]models.Product, error) {
	return ListProducts(ctx, r.db, category)
}

func (r *Repository) UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) (string, error) {
	return UpdateProduct(ctx, r.db, id, upd)
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) (string, error) {
	return DeleteProduct(ctx, r.db, id)
}

func (r *Repository) ImageInUse(ctx context.Context, ref string) (bool, error) {
	return ImageInUse(ctx, r.db, ref)
}

func (r *Repository) ExportProducts(ctx context.Context) ([]models.ProductRecord, error) {
	return ExportProducts(ctx, r.db)
}

func (r *Repository) ImportProducts(ctx context.Context, records []models.ProductRecord) (models.ImportResult, error) {
	return ImportProducts(ctx, r.db, records)
}

func (r *Repository) AddItem(ctx context.Context, externalID, productID int64) error {
	return AddItem(ctx, r.db, externalID, productID)
}

func (r *Repository) SetItemQuantity(ctx context.Context, externalID, productID int64, quantity int) error {
	return SetItemQuantity(ctx, r.db, externalID, productID, quantity)
}

func (r *Repository) ListItems(ctx context.Context, externalID int64) ([]models.CartItem, error) {
	return ListItems(ctx, r.db, externalID)
}

func (r *Repository) Clear(ctx context.Context, externalID int64) (bool, error) {
	return Clear(ctx, r.db, externalID)
}

func (r *Repository) Checkout(ctx context.Context, externalID int64) (*models.Order, error) {
	return Checkout(ctx, r.db, externalID)
}

func (r *Repository) GetOrderDetails(ctx context.Context, orderID int64) (*models.OrderDetails, error) {
	return GetOrderDetails(ctx, r.db, orderID)
}

func (r *Repository) ListOrdersCursor(ctx context.Context, externalID int64, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersCursor(ctx, r.db, externalID, cursor, limit)
}

func (r *Repository) GetStats(ctx context.Context, topCategories int) (*models.Stats, error) {
	return GetStats(ctx, r.db, topCategories)
}
