// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Service runs WebAuthn registration and authentication ceremonies.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	users      UserStore
	creds      CredentialStore
	challenges ChallengeStore
}

// ServiceParams contains the dependencies for a ceremony service.
type ServiceParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// UserStore is the identity persistence layer (required).
	UserStore UserStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// ChallengeStore holds per-session pending challenges (required).
	ChallengeStore ChallengeStore
}

// NewService creates a ceremony service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.toWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		users:      params.UserStore,
		creds:      params.CredentialStore,
		challenges: params.ChallengeStore,
	}, nil
}

// BeginRegistration starts the registration ceremony for a new username.
//
// The User row is created eagerly, before any attestation is verified; an
// abandoned or failed registration leaves a credential-less user holding the
// username. Returns the creation options to send to the client.
func (s *Service) BeginRegistration(ctx context.Context, sessionID, username, displayName string) (*protocol.CredentialCreation, error) {
	if sessionID == "" {
		return nil, wrap("begin registration", fmt.Errorf("%w: missing session", ErrInvalidRequest))
	}
	if username == "" || displayName == "" {
		return nil, wrap("begin registration", fmt.Errorf("%w: username and display name are required", ErrInvalidRequest))
	}

	// Username collision is rejected before any row is created.
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, wrap("begin registration", ErrUserExists)
	} else if !IsNotFound(err) {
		return nil, wrap("begin registration", err)
	}

	user := &User{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, wrap("create user", err)
	}

	options, session, err := s.webauthn.BeginRegistration(&ceremonyUser{user: user})
	if err != nil {
		return nil, wrap("begin registration", err)
	}

	if err := s.challenges.Put(ctx, sessionID, session); err != nil {
		return nil, wrap("store challenge", err)
	}
	return options, nil
}

// FinishRegistration completes the registration ceremony.
//
// The pending challenge is consumed before verification, whatever the
// outcome: a failed attestation cannot be retried against the same
// challenge. On success exactly one credential is persisted and the owning
// user is returned; registration doubles as login, so callers should
// establish an identity session for the returned user. On failure nothing is
// persisted beyond the user row created at Begin.
func (s *Service) FinishRegistration(ctx context.Context, sessionID string, response *protocol.ParsedCredentialCreationData) (*User, error) {
	session, err := s.challenges.Take(ctx, sessionID)
	if err != nil {
		return nil, wrap("finish registration", err)
	}

	userID, err := uuid.FromBytes(session.UserID)
	if err != nil {
		return nil, wrap("finish registration", fmt.Errorf("%w: malformed user handle", ErrInvalidRequest))
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrap("finish registration", err)
	}

	credential, err := s.webauthn.CreateCredential(&ceremonyUser{user: user}, *session, response)
	if err != nil {
		return nil, failVerification("verify attestation", err)
	}

	if err := s.creds.Add(ctx, newCredential(user.ID, credential)); err != nil {
		return nil, wrap("store credential", err)
	}
	return user, nil
}

// BeginLogin starts the authentication ceremony for a known username. The
// issued challenge is restricted to the user's registered credential IDs.
func (s *Service) BeginLogin(ctx context.Context, sessionID, username string) (*protocol.CredentialAssertion, error) {
	if sessionID == "" {
		return nil, wrap("begin login", fmt.Errorf("%w: missing session", ErrInvalidRequest))
	}
	if username == "" {
		return nil, wrap("begin login", fmt.Errorf("%w: username is required", ErrInvalidRequest))
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, wrap("begin login", err)
	}

	creds, err := s.creds.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, wrap("list credentials", err)
	}
	if len(creds) == 0 {
		return nil, wrap("begin login", ErrNoCredentials)
	}

	options, session, err := s.webauthn.BeginLogin(&ceremonyUser{user: user, creds: creds})
	if err != nil {
		return nil, wrap("begin login", err)
	}

	if err := s.challenges.Put(ctx, sessionID, session); err != nil {
		return nil, wrap("store challenge", err)
	}
	return options, nil
}

// FinishLogin completes the authentication ceremony.
//
// The credential ID inside the assertion, not a client-supplied username,
// determines which user is being authenticated; the library then checks the
// assertion against the session's user handle and allowed credential list,
// so an assertion for some other session's user cannot verify. A sign
// counter that fails to advance past the stored value fails the ceremony
// with ErrClonedAuthenticator and leaves the stored counter unchanged.
func (s *Service) FinishLogin(ctx context.Context, sessionID string, response *protocol.ParsedCredentialAssertionData) (*User, error) {
	session, err := s.challenges.Take(ctx, sessionID)
	if err != nil {
		return nil, wrap("finish login", err)
	}

	cred, err := s.creds.FindByCredentialID(ctx, response.RawID)
	if err != nil {
		return nil, wrap("finish login", err)
	}
	user, err := s.users.GetByID(ctx, cred.UserID)
	if err != nil {
		return nil, wrap("finish login", err)
	}

	creds, err := s.creds.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, wrap("list credentials", err)
	}

	verified, err := s.webauthn.ValidateLogin(&ceremonyUser{user: user, creds: creds}, *session, response)
	if err != nil {
		return nil, failVerification("verify assertion", err)
	}
	if verified.Authenticator.CloneWarning {
		return nil, wrap("verify assertion", ErrClonedAuthenticator)
	}

	if err := s.creds.UpdateSignCount(ctx, cred.ID, verified.Authenticator.SignCount); err != nil {
		return nil, wrap("update sign count", err)
	}
	return user, nil
}

// User returns the identity record for userID.
func (s *Service) User(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

// Credentials returns all credentials registered for a user.
func (s *Service) Credentials(ctx context.Context, userID uuid.UUID) ([]*Credential, error) {
	return s.creds.ListByUser(ctx, userID)
}

// Config returns the relying party configuration.
func (s *Service) Config() *Config {
	return s.config
}

// IsNotFound reports whether err indicates a missing user or credential.
func IsNotFound(err error) bool {
	return isAny(err, ErrUserNotFound, ErrCredentialNotFound)
}
