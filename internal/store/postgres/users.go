// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tailorfit/tailorfit/pkg/passkey"
)

// pgUniqueViolation is the Postgres error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// UserStore is the Postgres-backed passkey.UserStore.
type UserStore struct {
	db DBTX
}

// NewUserStore creates a user repository over db.
func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, user *passkey.User) error {
	query := `INSERT INTO users (id, username, display_name, created_at)
	          VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.DisplayName, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return passkey.ErrUserExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*passkey.User, error) {
	query := `SELECT id, username, display_name, created_at FROM users
	          WHERE username = $1`

	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*passkey.User, error) {
	query := `SELECT id, username, display_name, created_at FROM users
	          WHERE id = $1`

	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *UserStore) scanUser(row *sql.Row) (*passkey.User, error) {
	user := &passkey.User{}
	err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, passkey.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
