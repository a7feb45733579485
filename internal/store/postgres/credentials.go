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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tailorfit/tailorfit/pkg/passkey"
)

// CredentialStore is the Postgres-backed passkey.CredentialStore. Transport
// and flags are stored as jsonb so new authenticator attributes never need a
// schema change.
type CredentialStore struct {
	db DBTX
}

// NewCredentialStore creates a credential repository over db.
func NewCredentialStore(db DBTX) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) Add(ctx context.Context, cred *passkey.Credential) error {
	transport, err := json.Marshal(cred.Transport)
	if err != nil {
		return fmt.Errorf("marshal transport: %w", err)
	}
	flags, err := json.Marshal(cred.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}

	query := `INSERT INTO credentials
	          (id, user_id, public_key, attestation_type, transport, flags, sign_count, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.db.ExecContext(ctx, query,
		cred.ID, cred.UserID, cred.PublicKey, cred.AttestationType,
		transport, flags, int64(cred.SignCount), cred.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return passkey.ErrCredentialExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *CredentialStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*passkey.Credential, error) {
	query := `SELECT id, user_id, public_key, attestation_type, transport, flags,
	                 sign_count, created_at, last_used_at
	          FROM credentials WHERE user_id = $1 ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	creds := make([]*passkey.Credential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return creds, nil
}

func (s *CredentialStore) FindByCredentialID(ctx context.Context, credID []byte) (*passkey.Credential, error) {
	query := `SELECT id, user_id, public_key, attestation_type, transport, flags,
	                 sign_count, created_at, last_used_at
	          FROM credentials WHERE id = $1`

	cred, err := scanCredential(s.db.QueryRowContext(ctx, query, credID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, passkey.ErrCredentialNotFound
		}
		return nil, err
	}
	return cred, nil
}

func (s *CredentialStore) UpdateSignCount(ctx context.Context, credID []byte, signCount uint32) error {
	query := `UPDATE credentials SET sign_count = $2, last_used_at = $3 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, credID, int64(signCount), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return passkey.ErrCredentialNotFound
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*passkey.Credential, error) {
	var (
		cred       passkey.Credential
		transport  []byte
		flags      []byte
		signCount  int64
		lastUsedAt sql.NullTime
	)
	err := row.Scan(&cred.ID, &cred.UserID, &cred.PublicKey, &cred.AttestationType,
		&transport, &flags, &signCount, &cred.CreatedAt, &lastUsedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(transport) > 0 {
		if err := json.Unmarshal(transport, &cred.Transport); err != nil {
			return nil, fmt.Errorf("unmarshal transport: %w", err)
		}
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &cred.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
	}
	cred.SignCount = uint32(signCount)
	if lastUsedAt.Valid {
		cred.LastUsedAt = lastUsedAt.Time
	}
	return &cred, nil
}
