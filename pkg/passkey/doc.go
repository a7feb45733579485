// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package passkey implements the WebAuthn registration and authentication
// ceremonies used to sign in to TailorFit without passwords.
//
// The package owns the ceremony state machine and the challenge lifecycle;
// attestation and assertion parsing, signature verification, and origin /
// RP ID checks are delegated to github.com/go-webauthn/webauthn.
//
// A ceremony runs in two request/response steps. Begin allocates a fresh
// random challenge, stores it in a ChallengeStore keyed by the caller's
// browser session, and returns the ceremony options. Finish atomically takes
// the pending challenge back out of the store (a challenge is consumable
// exactly once, whatever the verification outcome), verifies the
// authenticator's response against it, and commits the credential or sign
// counter mutation. Only one ceremony per session may be in flight: a second
// Begin overwrites the pending challenge, and the first Finish then fails
// with ErrNoPendingCeremony.
//
// Persistence is abstracted behind UserStore, CredentialStore and
// ChallengeStore. In-memory implementations suitable for development and
// testing live in this package; durable Postgres-backed implementations live
// in internal/store/postgres.
package passkey
