package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/models"
)

const userColumns = `id, external_id, username, is_admin, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var username sql.NullString

	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&username,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Username = username.String
	return user, nil
}

// RegisterOrUpdateUser creates the user on first contact. For an existing user
// the admin flag is overwritten and the username replaced only when given.
func RegisterOrUpdateUser(ctx context.Context, db *sql.DB, externalID int64, username string, isAdmin bool) (*models.User, error) {
	var user *models.User

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO users (external_id, username, is_admin, created_at, updated_at)
			VALUES ($1, NULLIF($2, ''), $3, NOW(), NOW())
			ON CONFLICT (external_id) DO UPDATE
			SET is_admin   = EXCLUDED.is_admin,
			    username   = COALESCE(EXCLUDED.username, users.username),
			    updated_at = NOW()
			RETURNING `+userColumns,
			externalID, username, isAdmin)

		var err error
		user, err = scanUser(row)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func GetUserByExternalID(ctx context.Context, db *sql.DB, externalID int64) (*models.User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1`,
		externalID)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// EnsureAdministrators registers every allow-listed identity with the admin
// flag set so that order notifications reach them before their first login.
func EnsureAdministrators(ctx context.Context, db *sql.DB, externalIDs []int64) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		for _, id := range externalIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO users (external_id, is_admin, created_at, updated_at)
				VALUES ($1, TRUE, NOW(), NOW())
				ON CONFLICT (external_id) DO UPDATE
				SET is_admin = TRUE, updated_at = NOW()`,
				id)
			if err != nil {
				return fmt.Errorf("ensure administrator %d: %w", id, err)
			}
		}
		return nil
	})
}

// SetAdminFlag overwrites the stored flag. It reports false when the user is
// not registered.
func SetAdminFlag(ctx context.Context, db *sql.DB, externalID int64, isAdmin bool) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET is_admin = $1, updated_at = NOW() WHERE external_id = $2`,
		isAdmin, externalID)
	if err != nil {
		return false, fmt.Errorf("set admin flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func ListAdministrators(ctx context.Context, db *sql.DB) ([]int64, error) {
	return queryExternalIDs(ctx, db, `SELECT external_id FROM users WHERE is_admin ORDER BY id`)
}

// ListUserIDs returns every registered external id, the broadcast audience.
func ListUserIDs(ctx context.Context, db *sql.DB) ([]int64, error) {
	return queryExternalIDs(ctx, db, `SELECT external_id FROM users ORDER BY id`)
}

func queryExternalIDs(ctx context.Context, db *sql.DB, query string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

func ListUsers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page, pageSize), nil
}
