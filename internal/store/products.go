package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/models"
	"github.com/shopspring/decimal"
)

const productSelect = `
	SELECT p.id, p.name, p.description, p.price, c.name, p.image_path, p.created_at, p.updated_at
	FROM products p
	JOIN categories c ON c.id = p.category_id`

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Category,
		&product.ImagePath,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// maxPrice is the first value that no longer fits NUMERIC(12,2).
var maxPrice = decimal.New(1, 10)

func validatePrice(price decimal.Decimal) error {
	switch {
	case !price.IsPositive():
		return &database.ValidationError{Field: "price", Reason: "must be positive"}
	case !price.Equal(price.Round(2)):
		return &database.ValidationError{Field: "price", Reason: "must have at most 2 decimal places"}
	case price.GreaterThanOrEqual(maxPrice):
		return &database.ValidationError{Field: "price", Reason: "is too large"}
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &database.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return nil
}

func CreateProduct(ctx context.Context, db *sql.DB, p models.NewProduct) (*models.Product, error) {
	if err := validateName(p.Name); err != nil {
		return nil, err
	}
	if err := validatePrice(p.Price); err != nil {
		return nil, err
	}

	var product *models.Product

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		catID, err := categoryID(ctx, tx, p.Category)
		if err != nil {
			if errors.Is(err, database.ErrCategoryNotFound) {
				return unknownCategory(p.Category)
			}
			return err
		}

		var id int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO products (name, description, price, category_id, image_path, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING id`,
			p.Name, p.Description, p.Price, catID, p.ImagePath).Scan(&id)
		if err != nil {
			return fmt.Errorf("create product: %w", err)
		}

		product, err = scanProduct(tx.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, id))
		if err != nil {
			return fmt.Errorf("fetch created product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product, err := scanProduct(db.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// ListProducts lists the whole catalog, or one category when category is
// non-empty. An unknown or empty category yields an empty slice.
func ListProducts(ctx context.Context, db *sql.DB, category string) ([]models.Product, error) {
	query := productSelect + ` ORDER BY p.id`
	args := []any{}
	if category != "" {
		query = productSelect + ` WHERE c.name = $1 ORDER BY p.id`
		args = append(args, category)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// UpdateProduct applies the present fields of upd. When the image is replaced
// the previous image reference is returned so the caller can release it after
// the commit.
func UpdateProduct(ctx context.Context, db *sql.DB, id int64, upd models.ProductUpdate) (string, error) {
	if name, ok := upd.Name.Get(); ok {
		if err := validateName(name); err != nil {
			return "", err
		}
	}
	if price, ok := upd.Price.Get(); ok {
		if err := validatePrice(price); err != nil {
			return "", err
		}
	}

	var previousImage string

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var (
			name, description, imagePath string
			price                        decimal.Decimal
			catID                        int64
		)
		err := tx.QueryRowContext(ctx, `
			SELECT name, description, price, category_id, image_path
			FROM products
			WHERE id = $1
			FOR UPDATE`,
			id).Scan(&name, &description, &price, &catID, &imagePath)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}

		if category, ok := upd.Category.Get(); ok {
			catID, err = categoryID(ctx, tx, category)
			if err != nil {
				if errors.Is(err, database.ErrCategoryNotFound) {
					return unknownCategory(category)
				}
				return err
			}
		}

		if image, ok := upd.ImagePath.Get(); ok && image != imagePath {
			previousImage = imagePath
			imagePath = image
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET name = $1, description = $2, price = $3, category_id = $4, image_path = $5, updated_at = NOW()
			WHERE id = $6`,
			upd.Name.OrElse(name),
			upd.Description.OrElse(description),
			upd.Price.OrElse(price),
			catID,
			imagePath,
			id)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return previousImage, nil
}

// DeleteProduct scrubs the product from every cart and removes it. Order
// lines keep their name and price snapshot; their product reference is
// cleared by the foreign key. The image reference is returned for release.
func DeleteProduct(ctx context.Context, db *sql.DB, id int64) (string, error) {
	var imagePath string

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT image_path FROM products WHERE id = $1 FOR UPDATE`,
			id).Scan(&imagePath)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = $1`, id); err != nil {
			return fmt.Errorf("delete cart lines: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return imagePath, nil
}

// ImageInUse reports whether any product still points at ref.
func ImageInUse(ctx context.Context, db *sql.DB, ref string) (bool, error) {
	var inUse bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM products WHERE image_path = $1)`,
		ref).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("check image usage: %w", err)
	}
	return inUse, nil
}

// ExportProducts returns the catalog as export records in creation order.
func ExportProducts(ctx context.Context, db *sql.DB) ([]models.ProductRecord, error) {
	products, err := ListProducts(ctx, db, "")
	if err != nil {
		return nil, err
	}

	records := make([]models.ProductRecord, 0, len(products))
	for _, p := range products {
		records = append(records, models.ProductRecord{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Category:    p.Category,
			ImagePath:   p.ImagePath,
		})
	}
	return records, nil
}

// ImportProducts merges records into the catalog in one transaction. Records
// whose (name, category) already exists are left alone; records with an
// unknown category or an invalid price are skipped.
func ImportProducts(ctx context.Context, db *sql.DB, records []models.ProductRecord) (models.ImportResult, error) {
	var result models.ImportResult

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		result = models.ImportResult{}

		for _, rec := range records {
			catID, err := categoryID(ctx, tx, rec.Category)
			if err != nil {
				if errors.Is(err, database.ErrCategoryNotFound) {
					result.Skipped++
					continue
				}
				return err
			}

			if validateName(rec.Name) != nil || validatePrice(rec.Price) != nil {
				result.Skipped++
				continue
			}

			var exists bool
			err = tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM products WHERE name = $1 AND category_id = $2)`,
				rec.Name, catID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("check product exists: %w", err)
			}
			if exists {
				result.Existing++
				continue
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO products (name, description, price, category_id, image_path, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
				rec.Name, rec.Description, rec.Price, catID, rec.ImagePath)
			if err != nil {
				return fmt.Errorf("import product %q: %w", rec.Name, err)
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return models.ImportResult{}, err
	}

	return result, nil
}
