package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/charlesng35/adpulse/pkg/crypto"
)

// PKCEPair is the verifier/challenge material of an authorization code flow.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE produces a verifier and its S256 challenge.
func GeneratePKCE() (PKCEPair, error) {
	verifier, err := crypto.GenerateToken(48)
	if err != nil {
		return PKCEPair{}, fmt.Errorf("pkce: generate verifier: %w", err)
	}
	return PKCEPair{Verifier: verifier, Challenge: pkceChallenge(verifier)}, nil
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
