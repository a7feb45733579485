// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/tailorfit/tailorfit/internal/scan"
	"github.com/tailorfit/tailorfit/pkg/passkey"
)

// mapErrorToStatusCode maps service errors to HTTP status codes.
//
// Cryptographic verification failures, consumed or missing challenges, and
// clone detection all map to 401: the response never distinguishes why a
// ceremony was rejected.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, passkey.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, passkey.ErrUserNotFound),
		errors.Is(err, passkey.ErrCredentialNotFound),
		errors.Is(err, passkey.ErrNoCredentials),
		errors.Is(err, scan.ErrScanNotFound):
		return http.StatusNotFound
	case errors.Is(err, passkey.ErrNoPendingCeremony),
		errors.Is(err, passkey.ErrVerificationFailed),
		errors.Is(err, passkey.ErrClonedAuthenticator):
		return http.StatusUnauthorized
	case errors.Is(err, passkey.ErrInvalidRequest),
		errors.Is(err, passkey.ErrCredentialExists),
		errors.Is(err, scan.ErrEmptyScan),
		errors.Is(err, scan.ErrUnsupportedFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the client-facing message for an error. Internal
// failures and verification details are not echoed back.
func errorMessage(err error, statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return "ceremony verification failed"
	case http.StatusInternalServerError:
		return "internal server error"
	}

	// Strip the operation prefix; clients get the sentinel message only.
	var ce *passkey.CeremonyError
	if errors.As(err, &ce) {
		return ce.Err.Error()
	}
	return err.Error()
}

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: errorMessage(err, statusCode),
		Code:    statusCode,
	}, statusCode)
}

// handleError maps the error to a status code and writes the response.
func handleError(w http.ResponseWriter, err error) {
	writeError(w, err, mapErrorToStatusCode(err))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}
