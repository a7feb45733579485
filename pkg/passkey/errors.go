// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"errors"
	"fmt"
)

// Sentinel errors for ceremony operations.
var (
	// ErrInvalidRequest is returned when required ceremony inputs are
	// missing or malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUserNotFound is returned when a username cannot be resolved.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when registration is attempted for a
	// username that is already taken.
	ErrUserExists = errors.New("username already registered")

	// ErrCredentialNotFound is returned when the credential ID presented in
	// an assertion is not registered with any user.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists is returned when a credential ID is registered twice.
	ErrCredentialExists = errors.New("credential already registered")

	// ErrNoCredentials is returned when authentication is started for a
	// user with zero registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrNoPendingCeremony is returned when Finish is called and no
	// challenge is stored for the session: the ceremony was never begun,
	// already completed, expired, or overwritten by a newer Begin.
	ErrNoPendingCeremony = errors.New("no pending ceremony for session")

	// ErrVerificationFailed is returned when cryptographic verification of
	// an attestation or assertion fails: challenge mismatch, origin or RP ID
	// mismatch, bad signature, or unsatisfied user verification policy.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrClonedAuthenticator is returned when an otherwise valid assertion
	// carries a sign counter that did not advance past the stored value.
	ErrClonedAuthenticator = errors.New("cloned authenticator detected")
)

// CeremonyError wraps an underlying error with the ceremony operation that
// produced it. It is transparent to errors.Is and errors.As.
type CeremonyError struct {
	Op  string
	Err error
}

func (e *CeremonyError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// wrap annotates err with op, passing nil through untouched.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CeremonyError{Op: op, Err: err}
}

// isAny reports whether err matches any of the targets.
func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// IsCloneWarning reports whether err indicates a suspected cloned
// authenticator.
func IsCloneWarning(err error) bool {
	return errors.Is(err, ErrClonedAuthenticator)
}

// failVerification folds a go-webauthn protocol error into
// ErrVerificationFailed while preserving the library's diagnostic text.
func failVerification(op string, err error) error {
	return &CeremonyError{Op: op, Err: fmt.Errorf("%w: %v", ErrVerificationFailed, err)}
}
