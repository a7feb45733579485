// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"github.com/tailorfit/tailorfit/internal/scan"
	"github.com/tailorfit/tailorfit/pkg/health"
	"github.com/tailorfit/tailorfit/pkg/passkey"
)

// CeremonyCookie is the name of the short-lived cookie that keys pending
// ceremony state.
const CeremonyCookie = "tailorfit_ceremony"

// BeginRegistrationRequest is the body for POST /register/begin.
type BeginRegistrationRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// BeginLoginRequest is the body for POST /login/begin.
type BeginLoginRequest struct {
	Username string `json:"username"`
}

// AuthResponse is returned by a successful ceremony finish.
type AuthResponse struct {
	User *passkey.User `json:"user"`
}

// MeResponse is returned by GET /me.
type MeResponse struct {
	User        *passkey.User         `json:"user"`
	Credentials []*passkey.Credential `json:"credentials"`
}

// ScanListResponse is returned by GET /scans.
type ScanListResponse struct {
	Scans []*scan.Scan `json:"scans"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ReadyResponse is returned by GET /readyz.
type ReadyResponse struct {
	Status string          `json:"status"`
	Checks []health.Result `json:"checks"`
}
