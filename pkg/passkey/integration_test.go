// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRP matches the relying party configured by newTestService.
var testRP = virtualwebauthn.RelyingParty{
	Name:   "TailorFit",
	ID:     "tailorfit.example",
	Origin: "https://tailorfit.example",
}

// register runs a full registration ceremony for username on the given
// session and returns the registered user.
func register(t *testing.T, svc *Service, sessionID, username string,
	auth *virtualwebauthn.Authenticator, cred *virtualwebauthn.Credential) *User {
	t.Helper()

	options, err := svc.BeginRegistration(context.Background(), sessionID, username, username)
	require.NoError(t, err)

	response := attest(t, auth, cred, options)
	user, err := svc.FinishRegistration(context.Background(), sessionID, response)
	require.NoError(t, err)

	auth.AddCredential(*cred)
	return user
}

// attest produces a parsed attestation response for the given options.
func attest(t *testing.T, auth *virtualwebauthn.Authenticator, cred *virtualwebauthn.Credential,
	options *protocol.CredentialCreation) *protocol.ParsedCredentialCreationData {
	t.Helper()

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(testRP, *auth, *cred, *parsedOptions)

	var ccr protocol.CredentialCreationResponse
	require.NoError(t, json.Unmarshal([]byte(attestation), &ccr))
	parsed, err := ccr.Parse()
	require.NoError(t, err)
	return parsed
}

// assertAgainst produces a parsed assertion response for the given options.
func assertAgainst(t *testing.T, auth *virtualwebauthn.Authenticator, cred *virtualwebauthn.Credential,
	options *protocol.CredentialAssertion) *protocol.ParsedCredentialAssertionData {
	t.Helper()

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(testRP, *auth, *cred, *parsedOptions)

	var car protocol.CredentialAssertionResponse
	require.NoError(t, json.Unmarshal([]byte(assertion), &car))
	parsed, err := car.Parse()
	require.NoError(t, err)
	return parsed
}

func TestCeremony_RegistrationThenLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	// Registration: challenge C1, credential K1.
	user := register(t, svc, "session-alice", "alice", &auth, &cred)
	assert.Equal(t, "alice", user.Username)

	creds, err := svc.Credentials(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, cred.ID, creds[0].ID)
	assert.NotEmpty(t, creds[0].PublicKey)

	// Authentication: fresh challenge C2, assertion with K1, counter
	// advanced past the registration value.
	options, err := svc.BeginLogin(ctx, "session-alice", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, options.Response.Challenge)
	assert.Equal(t, "tailorfit.example", options.Response.RelyingPartyID)
	require.Len(t, options.Response.AllowedCredentials, 1)

	cred.Counter++
	loggedIn, err := svc.FinishLogin(ctx, "session-alice", assertAgainst(t, &auth, &cred, options))
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	creds, err = svc.Credentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), creds[0].SignCount)
	assert.False(t, creds[0].LastUsedAt.IsZero())
}

func TestCeremony_ChallengeConsumedExactlyOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	options, err := svc.BeginRegistration(ctx, "s1", "alice", "Alice")
	require.NoError(t, err)
	response := attest(t, &auth, &cred, options)

	_, err = svc.FinishRegistration(ctx, "s1", response)
	require.NoError(t, err)

	// Replaying the same response must fail: the challenge was consumed.
	_, err = svc.FinishRegistration(ctx, "s1", response)
	assert.ErrorIs(t, err, ErrNoPendingCeremony)
}

func TestCeremony_FailedVerificationStillConsumesChallenge(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	// Two Begins on the same session: the second overwrites the first's
	// pending challenge, so an attestation over the first challenge fails.
	first, err := svc.BeginRegistration(ctx, "s1", "alice", "Alice")
	require.NoError(t, err)
	second, err := svc.BeginRegistration(ctx, "s1", "alice2", "Alice Two")
	require.NoError(t, err)
	assert.NotEqual(t, first.Response.Challenge, second.Response.Challenge)

	_, err = svc.FinishRegistration(ctx, "s1", attest(t, &auth, &cred, first))
	assert.ErrorIs(t, err, ErrVerificationFailed)

	// The failed attempt consumed the stored challenge; the second ceremony
	// can no longer complete either.
	_, err = svc.FinishRegistration(ctx, "s1", attest(t, &auth, &cred, second))
	assert.ErrorIs(t, err, ErrNoPendingCeremony)

	// Nothing was persisted.
	assert.Equal(t, 0, svc.creds.(*MemoryCredentialStore).Count())
}

func TestCeremony_StaleChallengeRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	register(t, svc, "s1", "alice", &auth, &cred)

	// Issue two login challenges on the same session; sign the stale one.
	stale, err := svc.BeginLogin(ctx, "s1", "alice")
	require.NoError(t, err)
	_, err = svc.BeginLogin(ctx, "s1", "alice")
	require.NoError(t, err)

	cred.Counter++
	_, err = svc.FinishLogin(ctx, "s1", assertAgainst(t, &auth, &cred, stale))
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestCeremony_SessionsAreIndependent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	authAlice := virtualwebauthn.NewAuthenticator()
	credAlice := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	authBob := virtualwebauthn.NewAuthenticator()
	credBob := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	alice := register(t, svc, "session-a", "alice", &authAlice, &credAlice)
	bob := register(t, svc, "session-b", "bob", &authBob, &credBob)

	// Interleaved logins on distinct sessions must not interfere.
	optsAlice, err := svc.BeginLogin(ctx, "session-a", "alice")
	require.NoError(t, err)
	optsBob, err := svc.BeginLogin(ctx, "session-b", "bob")
	require.NoError(t, err)

	credAlice.Counter++
	gotAlice, err := svc.FinishLogin(ctx, "session-a", assertAgainst(t, &authAlice, &credAlice, optsAlice))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, gotAlice.ID)

	credBob.Counter++
	gotBob, err := svc.FinishLogin(ctx, "session-b", assertAgainst(t, &authBob, &credBob, optsBob))
	require.NoError(t, err)
	assert.Equal(t, bob.ID, gotBob.ID)
}

func TestCeremony_SignCounterAdvances(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	user := register(t, svc, "s1", "alice", &auth, &cred)

	for i := 1; i <= 3; i++ {
		options, err := svc.BeginLogin(ctx, "s1", "alice")
		require.NoError(t, err)

		cred.Counter++
		_, err = svc.FinishLogin(ctx, "s1", assertAgainst(t, &auth, &cred, options))
		require.NoError(t, err)

		creds, err := svc.Credentials(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), creds[0].SignCount)
	}
}

func TestCeremony_NonMonotonicCounterDetected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	user := register(t, svc, "s1", "alice", &auth, &cred)

	// A successful login stores counter 1.
	options, err := svc.BeginLogin(ctx, "s1", "alice")
	require.NoError(t, err)
	cred.Counter++
	_, err = svc.FinishLogin(ctx, "s1", assertAgainst(t, &auth, &cred, options))
	require.NoError(t, err)

	// A valid signature whose counter did not advance is a clone signal:
	// the ceremony fails and the stored counter is left unchanged.
	options, err = svc.BeginLogin(ctx, "s1", "alice")
	require.NoError(t, err)
	_, err = svc.FinishLogin(ctx, "s1", assertAgainst(t, &auth, &cred, options))
	assert.ErrorIs(t, err, ErrClonedAuthenticator)

	creds, err := svc.Credentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), creds[0].SignCount)
}

func TestCeremony_UnknownCredentialRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	register(t, svc, "s1", "alice", &auth, &cred)

	options, err := svc.BeginLogin(ctx, "s1", "alice")
	require.NoError(t, err)

	// Sign the challenge with a credential the server has never seen.
	strangerAuth := virtualwebauthn.NewAuthenticator()
	strangerCred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	strangerAuth.AddCredential(strangerCred)
	strangerCred.Counter++

	_, err = svc.FinishLogin(ctx, "s1", assertAgainst(t, &strangerAuth, &strangerCred, options))
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}
