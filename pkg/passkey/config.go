// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config configures the relying party for ceremony operations.
type Config struct {
	// RPID is the relying party identifier, typically the bare domain.
	RPID string `yaml:"rp_id" json:"rp_id"`

	// RPDisplayName is the human-readable relying party name shown by
	// authenticator UIs.
	RPDisplayName string `yaml:"rp_name" json:"rp_name"`

	// RPOrigins are the exact origins accepted in client data.
	RPOrigins []string `yaml:"origins" json:"origins"`

	// Timeout bounds a single ceremony. Default: 60s.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// UserVerification is the user verification policy: "required",
	// "preferred" or "discouraged". Default: "preferred".
	UserVerification string `yaml:"user_verification" json:"user_verification"`

	// Attestation is the attestation conveyance preference: "none",
	// "indirect", "direct" or "enterprise". Default: "none".
	Attestation string `yaml:"attestation" json:"attestation"`

	// Debug enables verbose logging inside the go-webauthn library.
	Debug bool `yaml:"debug" json:"debug"`
}

var (
	uvRequirements = map[string]protocol.UserVerificationRequirement{
		"required":    protocol.VerificationRequired,
		"preferred":   protocol.VerificationPreferred,
		"discouraged": protocol.VerificationDiscouraged,
	}
	attestationPreferences = map[string]protocol.ConveyancePreference{
		"none":       protocol.PreferNoAttestation,
		"indirect":   protocol.PreferIndirectAttestation,
		"direct":     protocol.PreferDirectAttestation,
		"enterprise": protocol.PreferEnterpriseAttestation,
	}
)

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.Attestation == "" {
		c.Attestation = "none"
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("rp_id is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("rp_name is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one origin is required")
	}
	if _, ok := uvRequirements[c.UserVerification]; !ok && c.UserVerification != "" {
		return fmt.Errorf("invalid user_verification: %q", c.UserVerification)
	}
	if _, ok := attestationPreferences[c.Attestation]; !ok && c.Attestation != "" {
		return fmt.Errorf("invalid attestation: %q", c.Attestation)
	}
	return nil
}

// toWebAuthnConfig translates the Config for the go-webauthn library.
func (c *Config) toWebAuthnConfig() *webauthn.Config {
	cfg := &webauthn.Config{
		RPID:                  c.RPID,
		RPDisplayName:         c.RPDisplayName,
		RPOrigins:             c.RPOrigins,
		AttestationPreference: attestationPreferences[c.Attestation],
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			UserVerification: uvRequirements[c.UserVerification],
		},
		Debug: c.Debug,
	}
	if c.Timeout > 0 {
		tc := webauthn.TimeoutConfig{
			Enforce:    true,
			Timeout:    c.Timeout,
			TimeoutUVD: c.Timeout,
		}
		cfg.Timeouts = webauthn.TimeoutsConfig{Login: tc, Registration: tc}
	}
	return cfg
}
