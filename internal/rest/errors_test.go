// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tailorfit/tailorfit/internal/scan"
	"github.com/tailorfit/tailorfit/pkg/passkey"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{passkey.ErrUserExists, http.StatusConflict},
		{passkey.ErrUserNotFound, http.StatusNotFound},
		{passkey.ErrCredentialNotFound, http.StatusNotFound},
		{passkey.ErrNoCredentials, http.StatusNotFound},
		{scan.ErrScanNotFound, http.StatusNotFound},
		{passkey.ErrNoPendingCeremony, http.StatusUnauthorized},
		{passkey.ErrVerificationFailed, http.StatusUnauthorized},
		{passkey.ErrClonedAuthenticator, http.StatusUnauthorized},
		{passkey.ErrInvalidRequest, http.StatusBadRequest},
		{passkey.ErrCredentialExists, http.StatusBadRequest},
		{scan.ErrEmptyScan, http.StatusBadRequest},
		{scan.ErrUnsupportedFormat, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToStatusCode(tt.err))
		})
	}
}

func TestMapErrorToStatusCodeWrapped(t *testing.T) {
	// Service errors arrive wrapped with the ceremony operation.
	err := &passkey.CeremonyError{Op: "begin login", Err: passkey.ErrUserNotFound}
	assert.Equal(t, http.StatusNotFound, mapErrorToStatusCode(err))

	err = &passkey.CeremonyError{
		Op:  "verify assertion",
		Err: fmt.Errorf("%w: bad signature", passkey.ErrVerificationFailed),
	}
	assert.Equal(t, http.StatusUnauthorized, mapErrorToStatusCode(err))
}

func TestErrorMessageRedaction(t *testing.T) {
	// Verification detail never reaches the client.
	err := &passkey.CeremonyError{
		Op:  "verify assertion",
		Err: fmt.Errorf("%w: challenge mismatch at offset 3", passkey.ErrVerificationFailed),
	}
	assert.Equal(t, "ceremony verification failed", errorMessage(err, http.StatusUnauthorized))

	// Internal errors are fully opaque.
	assert.Equal(t, "internal server error",
		errorMessage(errors.New("pg: connection refused"), http.StatusInternalServerError))

	// Client errors keep the sentinel message but drop the operation.
	err = &passkey.CeremonyError{Op: "begin registration", Err: passkey.ErrUserExists}
	assert.Equal(t, "username already registered", errorMessage(err, http.StatusConflict))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, passkey.ErrUserExists, http.StatusConflict)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "username already registered")
}
