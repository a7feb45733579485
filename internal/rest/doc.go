// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package rest exposes the HTTP API.
//
// All application endpoints live under /api/v1. The WebAuthn ceremony
// endpoints are anonymous; everything else requires the identity session
// cookie issued by a finished ceremony.
//
// Ceremony state is keyed by a separate short-lived ceremony cookie minted
// at begin time, so a challenge issued to one browser can never be finished
// by another.
//
//	POST /api/v1/register/begin   - start a registration ceremony
//	POST /api/v1/register/finish  - verify the attestation response
//	POST /api/v1/login/begin      - start an authentication ceremony
//	POST /api/v1/login/finish     - verify the assertion response
//	POST /api/v1/logout           - clear the identity session
//	GET  /api/v1/me               - current authenticated user
//	POST /api/v1/scans            - upload a body scan with preferences
//	GET  /api/v1/scans            - list the caller's scans
//	GET  /healthz                 - liveness probe
//	GET  /readyz                  - readiness probe with dependency checks
//	GET  /metrics                 - Prometheus metrics (when enabled)
package rest
