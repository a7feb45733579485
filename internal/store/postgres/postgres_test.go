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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailorfit/tailorfit/internal/scan"
	"github.com/tailorfit/tailorfit/pkg/passkey"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgUniqueViolation, Message: "duplicate key value"}
}

func TestUserStoreCreate(t *testing.T) {
	db, mock := newMockDB(t)
	users := NewUserStore(db)

	user := &passkey.User{
		ID:          uuid.New(),
		Username:    "alice",
		DisplayName: "Alice",
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(user.ID, user.Username, user.DisplayName, user.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, users.Create(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreCreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	users := NewUserStore(db)

	user := &passkey.User{ID: uuid.New(), Username: "alice", CreatedAt: time.Now().UTC()}

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(uniqueViolation())

	err := users.Create(context.Background(), user)
	assert.ErrorIs(t, err, passkey.ErrUserExists)
}

func TestUserStoreFindByUsername(t *testing.T) {
	db, mock := newMockDB(t)
	users := NewUserStore(db)

	id := uuid.New()
	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "username", "display_name", "created_at"}).
		AddRow(id.String(), "alice", "Alice", created)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("alice").
		WillReturnRows(rows)

	user, err := users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice", user.DisplayName)
}

func TestUserStoreFindByUsernameNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	users := NewUserStore(db)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := users.FindByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, passkey.ErrUserNotFound)
}

func TestUserStoreGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	users := NewUserStore(db)

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := users.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, passkey.ErrUserNotFound)
}

func TestUserStoreDBError(t *testing.T) {
	db, mock := newMockDB(t)
	users := NewUserStore(db)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("alice").
		WillReturnError(errors.New("db down"))

	_, err := users.FindByUsername(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, passkey.ErrUserNotFound)
	assert.Contains(t, err.Error(), "db down")
}

func testCredential(userID uuid.UUID) *passkey.Credential {
	return &passkey.Credential{
		ID:              []byte("cred-id-1"),
		UserID:          userID,
		PublicKey:       []byte("public-key"),
		AttestationType: "none",
		Transport:       []protocol.AuthenticatorTransport{protocol.Internal},
		Flags:           passkey.CredentialFlags{UserPresent: true, UserVerified: true},
		SignCount:       1,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestCredentialStoreAdd(t *testing.T) {
	db, mock := newMockDB(t)
	creds := NewCredentialStore(db)

	cred := testCredential(uuid.New())
	transport, err := json.Marshal(cred.Transport)
	require.NoError(t, err)
	flags, err := json.Marshal(cred.Flags)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO credentials").
		WithArgs(cred.ID, cred.UserID, cred.PublicKey, cred.AttestationType,
			transport, flags, int64(cred.SignCount), cred.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, creds.Add(context.Background(), cred))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStoreAddDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	creds := NewCredentialStore(db)

	mock.ExpectExec("INSERT INTO credentials").
		WillReturnError(uniqueViolation())

	err := creds.Add(context.Background(), testCredential(uuid.New()))
	assert.ErrorIs(t, err, passkey.ErrCredentialExists)
}

func TestCredentialStoreFindByCredentialID(t *testing.T) {
	db, mock := newMockDB(t)
	creds := NewCredentialStore(db)

	userID := uuid.New()
	created := time.Now().UTC()
	transport, _ := json.Marshal([]protocol.AuthenticatorTransport{protocol.Internal})
	flags, _ := json.Marshal(passkey.CredentialFlags{UserPresent: true})

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "public_key", "attestation_type", "transport", "flags",
		"sign_count", "created_at", "last_used_at",
	}).AddRow([]byte("cred-id-1"), userID.String(), []byte("public-key"), "none",
		transport, flags, int64(7), created, nil)

	mock.ExpectQuery("SELECT (.+) FROM credentials WHERE id").
		WithArgs([]byte("cred-id-1")).
		WillReturnRows(rows)

	cred, err := creds.FindByCredentialID(context.Background(), []byte("cred-id-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("cred-id-1"), cred.ID)
	assert.Equal(t, userID, cred.UserID)
	assert.Equal(t, uint32(7), cred.SignCount)
	assert.True(t, cred.Flags.UserPresent)
	assert.Equal(t, []protocol.AuthenticatorTransport{protocol.Internal}, cred.Transport)
	assert.True(t, cred.LastUsedAt.IsZero())
}

func TestCredentialStoreFindByCredentialIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	creds := NewCredentialStore(db)

	mock.ExpectQuery("SELECT (.+) FROM credentials WHERE id").
		WithArgs([]byte("missing")).
		WillReturnError(sql.ErrNoRows)

	_, err := creds.FindByCredentialID(context.Background(), []byte("missing"))
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)
}

func TestCredentialStoreListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	creds := NewCredentialStore(db)

	userID := uuid.New()
	created := time.Now().UTC()
	transport, _ := json.Marshal([]protocol.AuthenticatorTransport{protocol.USB})
	flags, _ := json.Marshal(passkey.CredentialFlags{})

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "public_key", "attestation_type", "transport", "flags",
		"sign_count", "created_at", "last_used_at",
	}).
		AddRow([]byte("cred-1"), userID.String(), []byte("pk-1"), "none", transport, flags, int64(0), created, nil).
		AddRow([]byte("cred-2"), userID.String(), []byte("pk-2"), "none", transport, flags, int64(3), created, created)

	mock.ExpectQuery("SELECT (.+) FROM credentials WHERE user_id").
		WithArgs(userID).
		WillReturnRows(rows)

	list, err := creds.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []byte("cred-1"), list[0].ID)
	assert.Equal(t, uint32(3), list[1].SignCount)
	assert.False(t, list[1].LastUsedAt.IsZero())
}

func TestCredentialStoreListByUserEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	creds := NewCredentialStore(db)

	userID := uuid.New()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "public_key", "attestation_type", "transport", "flags",
		"sign_count", "created_at", "last_used_at",
	})

	mock.ExpectQuery("SELECT (.+) FROM credentials WHERE user_id").
		WithArgs(userID).
		WillReturnRows(rows)

	list, err := creds.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCredentialStoreUpdateSignCount(t *testing.T) {
	db, mock := newMockDB(t)
	creds := NewCredentialStore(db)

	mock.ExpectExec("UPDATE credentials SET sign_count").
		WithArgs([]byte("cred-1"), int64(9), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, creds.UpdateSignCount(context.Background(), []byte("cred-1"), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStoreUpdateSignCountNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	creds := NewCredentialStore(db)

	mock.ExpectExec("UPDATE credentials SET sign_count").
		WithArgs([]byte("missing"), int64(9), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := creds.UpdateSignCount(context.Background(), []byte("missing"), 9)
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)
}

func testScan(userID uuid.UUID) *scan.Scan {
	now := time.Now().UTC()
	return &scan.Scan{
		ID:        uuid.New(),
		UserID:    userID,
		ObjectKey: "scans/u/s.png",
		Preferences: scan.Preferences{
			Style:    "casual",
			Color:    "navy",
			Material: "cotton",
			Features: "breathable",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestScanStoreCreate(t *testing.T) {
	db, mock := newMockDB(t)
	scans := NewScanStore(db)

	record := testScan(uuid.New())

	mock.ExpectExec("INSERT INTO scans").
		WithArgs(record.ID, record.UserID, record.ObjectKey, sql.NullString{},
			record.Preferences.Style, record.Preferences.Color,
			record.Preferences.Material, record.Preferences.Features,
			record.CreatedAt, record.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, scans.Create(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanStoreListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	scans := NewScanStore(db)

	userID := uuid.New()
	newer := time.Now().UTC()
	older := newer.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "object_key", "model_key", "style", "color", "material",
		"features", "created_at", "updated_at",
	}).
		AddRow(uuid.NewString(), userID.String(), "scans/u/b.png", "models/u/b.glb", "formal", "black", "wool", "", newer, newer).
		AddRow(uuid.NewString(), userID.String(), "scans/u/a.png", nil, "casual", "navy", "cotton", "stretch", older, older)

	mock.ExpectQuery("SELECT (.+) FROM scans WHERE user_id").
		WithArgs(userID).
		WillReturnRows(rows)

	list, err := scans.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "scans/u/b.png", list[0].ObjectKey)
	assert.Equal(t, "models/u/b.glb", list[0].ModelKey)
	assert.Equal(t, "", list[1].ModelKey)
	assert.Equal(t, "casual", list[1].Preferences.Style)
}

func TestScanStoreListByUserDBError(t *testing.T) {
	db, mock := newMockDB(t)
	scans := NewScanStore(db)

	userID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM scans WHERE user_id").
		WithArgs(userID).
		WillReturnError(errors.New("db down"))

	_, err := scans.ListByUser(context.Background(), userID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
