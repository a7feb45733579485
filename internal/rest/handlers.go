// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/tailorfit/tailorfit/internal/metrics"
	"github.com/tailorfit/tailorfit/internal/scan"
	"github.com/tailorfit/tailorfit/internal/session"
	"github.com/tailorfit/tailorfit/pkg/passkey"
)

// ceremonyCookieTTL bounds how long a minted ceremony cookie stays usable.
// The challenge itself expires sooner; the cookie just keys it.
const ceremonyCookieTTL = 10 * time.Minute

// HandlerContext bundles the services behind the HTTP surface.
type HandlerContext struct {
	passkeys     *passkey.Service
	scans        *scan.Service
	sessions     *session.Manager
	logger       *slog.Logger
	version      string
	maxScanBytes int64
	secure       bool
}

// NewHandlerContext creates the handler context.
func NewHandlerContext(passkeys *passkey.Service, scans *scan.Service, sessions *session.Manager, logger *slog.Logger, version string, maxScanBytes int64, secure bool) *HandlerContext {
	if logger == nil {
		logger = slog.Default()
	}
	if maxScanBytes <= 0 {
		maxScanBytes = 16 << 20
	}
	return &HandlerContext{
		passkeys:     passkeys,
		scans:        scans,
		sessions:     sessions,
		logger:       logger,
		version:      version,
		maxScanBytes: maxScanBytes,
		secure:       secure,
	}
}

// ceremonySession returns the ceremony session ID for the request, minting a
// fresh one and setting the cookie when absent. Begin handlers mint; finish
// handlers must find one already present.
func (h *HandlerContext) ceremonySession(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(CeremonyCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     CeremonyCookie,
		Value:    id,
		Path:     "/api/v1",
		MaxAge:   int(ceremonyCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// pendingCeremonySession returns the ceremony session ID already bound to
// the request, without minting one.
func (h *HandlerContext) pendingCeremonySession(r *http.Request) (string, bool) {
	c, err := r.Cookie(CeremonyCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// clearCeremonyCookie drops the ceremony cookie after a finished ceremony.
func (h *HandlerContext) clearCeremonyCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CeremonyCookie,
		Value:    "",
		Path:     "/api/v1",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// BeginRegistrationHandler handles POST /api/v1/register/begin.
//
// Request body:
//
//	{
//	    "username": "alice",
//	    "display_name": "Alice" // optional, defaults to username
//	}
//
// Response: WebAuthn PublicKeyCredentialCreationOptions. The pending
// ceremony is keyed by the ceremony cookie set on this response.
func (h *HandlerContext) BeginRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BeginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, passkey.ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	sessionID, err := h.ceremonySession(w, r)
	if err != nil {
		handleError(w, err)
		return
	}

	options, err := h.passkeys.BeginRegistration(r.Context(), sessionID, req.Username, displayName)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StepBegin,
			metrics.ResultFailure, time.Since(start).Seconds())
		h.logger.WarnContext(r.Context(), "registration begin rejected",
			"username", req.Username, "error", err)
		handleError(w, err)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StepBegin,
		metrics.ResultSuccess, time.Since(start).Seconds())
	writeJSON(w, options, http.StatusOK)
}

// FinishRegistrationHandler handles POST /api/v1/register/finish.
//
// Request body: attestation response from the authenticator.
// Response: AuthResponse; an identity session cookie is set, so a fresh
// registration doubles as a login.
func (h *HandlerContext) FinishRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sessionID, ok := h.pendingCeremonySession(r)
	if !ok {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StepFinish,
			metrics.ResultFailure, time.Since(start).Seconds())
		writeError(w, passkey.ErrNoPendingCeremony, http.StatusUnauthorized)
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StepFinish,
			metrics.ResultFailure, time.Since(start).Seconds())
		writeError(w, passkey.ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	user, err := h.passkeys.FinishRegistration(r.Context(), sessionID, response)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StepFinish,
			metrics.ResultFailure, time.Since(start).Seconds())
		h.logger.WarnContext(r.Context(), "registration finish rejected", "error", err)
		handleError(w, err)
		return
	}

	if err := h.sessions.Issue(w, user); err != nil {
		handleError(w, err)
		return
	}
	h.clearCeremonyCookie(w)

	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StepFinish,
		metrics.ResultSuccess, time.Since(start).Seconds())
	h.logger.InfoContext(r.Context(), "user registered",
		"user_id", user.ID, "username", user.Username)
	writeJSON(w, AuthResponse{User: user}, http.StatusOK)
}

// BeginLoginHandler handles POST /api/v1/login/begin.
//
// Request body:
//
//	{
//	    "username": "alice"
//	}
//
// Response: WebAuthn PublicKeyCredentialRequestOptions restricted to the
// user's registered credentials.
func (h *HandlerContext) BeginLoginHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BeginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, passkey.ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	sessionID, err := h.ceremonySession(w, r)
	if err != nil {
		handleError(w, err)
		return
	}

	options, err := h.passkeys.BeginLogin(r.Context(), sessionID, req.Username)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StepBegin,
			metrics.ResultFailure, time.Since(start).Seconds())
		h.logger.WarnContext(r.Context(), "login begin rejected",
			"username", req.Username, "error", err)
		handleError(w, err)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StepBegin,
		metrics.ResultSuccess, time.Since(start).Seconds())
	writeJSON(w, options, http.StatusOK)
}

// FinishLoginHandler handles POST /api/v1/login/finish.
//
// Request body: assertion response from the authenticator.
// Response: AuthResponse; an identity session cookie is set.
func (h *HandlerContext) FinishLoginHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sessionID, ok := h.pendingCeremonySession(r)
	if !ok {
		metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StepFinish,
			metrics.ResultFailure, time.Since(start).Seconds())
		writeError(w, passkey.ErrNoPendingCeremony, http.StatusUnauthorized)
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StepFinish,
			metrics.ResultFailure, time.Since(start).Seconds())
		writeError(w, passkey.ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	user, err := h.passkeys.FinishLogin(r.Context(), sessionID, response)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StepFinish,
			metrics.ResultFailure, time.Since(start).Seconds())
		if passkey.IsCloneWarning(err) {
			metrics.RecordCloneWarning()
			h.logger.ErrorContext(r.Context(), "possible cloned authenticator", "error", err)
		} else {
			h.logger.WarnContext(r.Context(), "login finish rejected", "error", err)
		}
		handleError(w, err)
		return
	}

	if err := h.sessions.Issue(w, user); err != nil {
		handleError(w, err)
		return
	}
	h.clearCeremonyCookie(w)

	metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StepFinish,
		metrics.ResultSuccess, time.Since(start).Seconds())
	h.logger.InfoContext(r.Context(), "user authenticated",
		"user_id", user.ID, "username", user.Username)
	writeJSON(w, AuthResponse{User: user}, http.StatusOK)
}

// LogoutHandler handles POST /api/v1/logout. Logout is idempotent; clearing
// an absent session succeeds.
func (h *HandlerContext) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler handles GET /api/v1/me. Requires an identity session.
func (h *HandlerContext) MeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, session.ErrNoIdentity, http.StatusUnauthorized)
		return
	}

	user, err := h.passkeys.User(r.Context(), id.UserID)
	if err != nil {
		handleError(w, err)
		return
	}
	creds, err := h.passkeys.Credentials(r.Context(), id.UserID)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, MeResponse{User: user, Credentials: creds}, http.StatusOK)
}

// CreateScanHandler handles POST /api/v1/scans. Requires an identity
// session.
//
// Request: multipart/form-data with a "scan" file part and optional
// "style", "color", "material", and "features" fields.
// Response: the stored scan record.
func (h *HandlerContext) CreateScanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, session.ErrNoIdentity, http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxScanBytes)
	if err := r.ParseMultipartForm(h.maxScanBytes); err != nil {
		metrics.RecordScan(metrics.ResultFailure, 0)
		writeError(w, scan.ErrEmptyScan, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("scan")
	if err != nil {
		metrics.RecordScan(metrics.ResultFailure, 0)
		writeError(w, scan.ErrEmptyScan, http.StatusBadRequest)
		return
	}
	defer file.Close()

	prefs := scan.Preferences{
		Style:    r.FormValue("style"),
		Color:    r.FormValue("color"),
		Material: r.FormValue("material"),
		Features: r.FormValue("features"),
	}

	record, err := h.scans.Submit(r.Context(), id.UserID, header.Filename, file, prefs)
	if err != nil {
		metrics.RecordScan(metrics.ResultFailure, 0)
		h.logger.WarnContext(r.Context(), "scan rejected",
			"user_id", id.UserID, "filename", header.Filename, "error", err)
		handleError(w, err)
		return
	}

	metrics.RecordScan(metrics.ResultSuccess, header.Size)
	h.logger.InfoContext(r.Context(), "scan stored",
		"user_id", id.UserID, "scan_id", record.ID, "object_key", record.ObjectKey)
	writeJSON(w, record, http.StatusCreated)
}

// ListScansHandler handles GET /api/v1/scans. Requires an identity session.
func (h *HandlerContext) ListScansHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, session.ErrNoIdentity, http.StatusUnauthorized)
		return
	}

	scans, err := h.scans.List(r.Context(), id.UserID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, ScanListResponse{Scans: scans}, http.StatusOK)
}

// HealthHandler handles GET /healthz.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Version: h.version}, http.StatusOK)
}
