// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package postgres provides the durable store implementations backed by
// PostgreSQL. Schema management is handled by embedded goose migrations
// applied at open time.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tailorfit/tailorfit/internal/store/postgres/migrations"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx; the
// repositories accept it so callers can run them inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles the database handle with its repositories.
type Store struct {
	db    *sql.DB
	users *UserStore
	creds *CredentialStore
	scans *ScanStore
}

// Open connects to Postgres via the pgx stdlib driver and applies any
// pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:    db,
		users: NewUserStore(db),
		creds: NewCredentialStore(db),
		scans: NewScanStore(db),
	}
	if err := s.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// RunMigrations applies all pending embedded migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

// Users returns the user repository.
func (s *Store) Users() *UserStore { return s.users }

// Credentials returns the credential repository.
func (s *Store) Credentials() *CredentialStore { return s.creds }

// Scans returns the scan repository.
func (s *Store) Scans() *ScanStore { return s.scans }

// Ping verifies the database connection, for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
