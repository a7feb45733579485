// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// UserStore persists identity records.
type UserStore interface {
	// FindByUsername looks a user up by exact, case-sensitive username.
	// Returns ErrUserNotFound when absent; absence is a valid result, not a
	// store failure.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// GetByID retrieves a user by id. Returns ErrUserNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Create inserts a new user. Returns ErrUserExists when the username is
	// already taken.
	Create(ctx context.Context, user *User) error
}

// CredentialStore persists registered authenticator credentials. Each
// mutation is atomic with respect to a single ceremony step: a concurrent
// reader never observes a credential without its public key or owner.
type CredentialStore interface {
	// Add inserts a new credential. Returns ErrCredentialExists when the
	// credential ID is already registered.
	Add(ctx context.Context, cred *Credential) error

	// ListByUser returns all credentials owned by a user. An empty slice is
	// a valid result.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Credential, error)

	// FindByCredentialID resolves the opaque credential identifier presented
	// in an assertion. The lookup must be keyed (unique index), not a scan:
	// it sits on the hot verification path. Returns ErrCredentialNotFound
	// when absent.
	FindByCredentialID(ctx context.Context, credID []byte) (*Credential, error)

	// UpdateSignCount sets the stored counter to exactly signCount and
	// stamps last use. Returns ErrCredentialNotFound when absent.
	UpdateSignCount(ctx context.Context, credID []byte, signCount uint32) error
}

// ChallengeStore holds at most one pending ceremony challenge per browser
// session. It is transient, per-session state and need not survive process
// restarts; the interface is the seam for swapping the in-memory map used in
// tests and development for a distributed cache in production.
type ChallengeStore interface {
	// Put stores the pending ceremony state for a session, overwriting any
	// prior pending challenge: only one ceremony per session is in flight.
	Put(ctx context.Context, sessionID string, data *webauthn.SessionData) error

	// Take atomically reads and clears the pending ceremony state. This is
	// the single-use guarantee: a challenge can never be presented twice,
	// even after a failed verification. Returns ErrNoPendingCeremony when
	// nothing is stored or the entry has expired.
	Take(ctx context.Context, sessionID string) (*webauthn.SessionData, error)
}
