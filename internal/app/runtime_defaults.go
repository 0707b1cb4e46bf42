package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/adpulse/pkg/crypto"
)

// ephemeralSecret is a secret that may be generated at startup when unset. Generated
// values live only as long as the process, so they suit single-instance and local runs.
type ephemeralSecret struct {
	key      string
	needed   func(*Config) bool
	target   func(*Config) *string
	generate func() (string, error)
}

var ephemeralSecrets = []ephemeralSecret{
	{
		key:      "auth.jwt.secret",
		needed:   func(*Config) bool { return true },
		target:   func(c *Config) *string { return &c.Auth.JWT.Secret },
		generate: func() (string, error) { return crypto.GenerateToken(48) },
	},
	{
		// Only has to outlive one login round-trip.
		key:      "auth.google.state_key",
		needed:   func(c *Config) bool { return c.Auth.Google.Enabled },
		target:   func(c *Config) *string { return &c.Auth.Google.StateKey },
		generate: func() (string, error) { return crypto.GenerateHexToken(32) },
	},
}

// ApplyRuntimeDefaults fills unset secrets with random values and returns the config
// keys it generated, in a stable order, so callers can log them without the values.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string
	for _, secret := range ephemeralSecrets {
		target := secret.target(cfg)
		if !secret.needed(cfg) || strings.TrimSpace(*target) != "" {
			continue
		}
		value, err := secret.generate()
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", secret.key, err)
		}
		*target = value
		generated = append(generated, secret.key)
	}
	return generated, nil
}
