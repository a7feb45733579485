// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// User is an identity record. Usernames are unique, case-sensitive and
// immutable; the UUID is the WebAuthn user handle.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Credential is one registered authenticator binding. ID is the opaque
// credential identifier assigned by the authenticator; it is globally unique
// and is the lookup key during authentication.
type Credential struct {
	ID              []byte                            `json:"id"`
	UserID          uuid.UUID                         `json:"user_id"`
	PublicKey       []byte                            `json:"public_key"`
	AttestationType string                            `json:"attestation_type"`
	Transport       []protocol.AuthenticatorTransport `json:"transport,omitempty"`
	Flags           CredentialFlags                   `json:"flags"`

	// SignCount is the authenticator's signature counter. It starts at the
	// value reported during registration and must strictly increase on every
	// successful authentication; a stalled or regressed counter is treated
	// as a cloned-authenticator signal.
	SignCount uint32 `json:"sign_count"`

	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags records the authenticator flags observed at registration.
type CredentialFlags struct {
	UserPresent    bool `json:"user_present"`
	UserVerified   bool `json:"user_verified"`
	BackupEligible bool `json:"backup_eligible"`
	BackupState    bool `json:"backup_state"`
}

// toWebAuthn converts a Credential into the go-webauthn representation.
func (c *Credential) toWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: c.SignCount,
		},
	}
}

// newCredential builds a Credential from a freshly verified registration.
func newCredential(userID uuid.UUID, wc *webauthn.Credential) *Credential {
	return &Credential{
		ID:              wc.ID,
		UserID:          userID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		SignCount: wc.Authenticator.SignCount,
		CreatedAt: time.Now().UTC(),
	}
}

// ceremonyUser adapts a User plus an explicitly loaded credential set to the
// webauthn.User interface consumed by the go-webauthn library. Credentials
// are always loaded up front by an indexed query; there is no lazy loading.
type ceremonyUser struct {
	user  *User
	creds []*Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	id := u.user.ID
	return id[:]
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.user.Username
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	if u.user.DisplayName == "" {
		return u.user.Username
	}
	return u.user.DisplayName
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, len(u.creds))
	for i, c := range u.creds {
		out[i] = c.toWebAuthn()
	}
	return out
}
