package models

import (
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

// UnspecifiedUsername is shown in order details for users without a display name.
const UnspecifiedUsername = "unspecified"

type User struct {
	ID         int64     `json:"id"`
	ExternalID int64     `json:"external_id"`
	Username   string    `json:"username,omitempty"`
	IsAdmin    bool      `json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImagePath   string          `json:"image_path"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewProduct is the input of a product creation.
type NewProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	ImagePath   string
}

// ProductUpdate carries the fields of a partial product edit. Absent options
// leave the stored value untouched.
type ProductUpdate struct {
	Name        mo.Option[string]
	Description mo.Option[string]
	Price       mo.Option[decimal.Decimal]
	Category    mo.Option[string]
	ImagePath   mo.Option[string]
}

// IsEmpty reports whether the update changes nothing.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name.IsAbsent() && u.Description.IsAbsent() && u.Price.IsAbsent() &&
		u.Category.IsAbsent() && u.ImagePath.IsAbsent()
}

// CartItem is one cart line joined with the current product data.
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	OrderNumber string      `json:"order_number"`
	CreatedAt   time.Time   `json:"created_at"`
	Lines       []OrderLine `json:"lines,omitempty"`
}

// OrderLine is immutable once written. ProductID is nil when the product was
// deleted after the order was placed; Name keeps the name at order time.
type OrderLine struct {
	ProductID *int64          `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type OrderDetails struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	ExternalID  int64       `json:"user_id"`
	Username    string      `json:"username"`
	CreatedAt   time.Time   `json:"created_at"`
	Lines       []OrderLine `json:"items"`
}

// Total is the sum of quantity × unit price over all lines.
func (d OrderDetails) Total() decimal.Decimal {
	return lo.Reduce(d.Lines, func(acc decimal.Decimal, l OrderLine, _ int) decimal.Decimal {
		return acc.Add(l.Subtotal())
	}, decimal.Zero)
}

// ProductRecord is one entry of a catalog export file.
type ProductRecord struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImagePath   string          `json:"image_path"`
}

type CategoryCount struct {
	Name     string `json:"name"`
	Products int64  `json:"products"`
}

type Stats struct {
	Products      int64           `json:"products"`
	Categories    int64           `json:"categories"`
	Users         int64           `json:"users"`
	Orders        int64           `json:"orders"`
	TopCategories []CategoryCount `json:"top_categories"`
}

// ImportResult summarises an additive catalog import.
type ImportResult struct {
	Imported int `json:"imported"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}
