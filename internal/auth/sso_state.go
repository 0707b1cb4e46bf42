package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/adpulse/pkg/crypto"
)

var (
	// ErrStateExpired is returned for callbacks that arrive after the state lifetime.
	ErrStateExpired = errors.New("sso state: expired")
	// ErrStateInvalid is returned for tampered or undecodable state.
	ErrStateInvalid = errors.New("sso state: invalid")
)

// StateCodec seals the login state round-tripped through the identity provider.
type StateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// StatePayload carries what the callback needs to finish the login.
type StatePayload struct {
	Nonce    string    `json:"n"`
	PKCE     string    `json:"k"`
	ReturnTo string    `json:"r,omitempty"`
	IssuedAt time.Time `json:"iat"`
}

// NewStateCodec constructs a StateCodec with an AES key of 16, 24 or 32 bytes.
func NewStateCodec(key []byte, ttl time.Duration, now func() time.Time) (*StateCodec, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("sso state: key must be 16, 24, or 32 bytes, got %d", len(key))
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &StateCodec{key: key, ttl: ttl, now: now}, nil
}

// Encode seals payload, stamping its issue time.
func (c *StateCodec) Encode(payload StatePayload) (string, error) {
	if strings.TrimSpace(payload.Nonce) == "" || strings.TrimSpace(payload.PKCE) == "" {
		return "", errors.New("sso state: nonce and pkce verifier are required")
	}
	payload.IssuedAt = c.now().UTC()

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sso state: marshal payload: %w", err)
	}
	encoded, err := crypto.Encrypt(raw, c.key)
	if err != nil {
		return "", fmt.Errorf("sso state: encrypt payload: %w", err)
	}
	return encoded, nil
}

// Decode opens a state string and enforces its lifetime.
func (c *StateCodec) Decode(token string) (StatePayload, error) {
	var payload StatePayload
	if strings.TrimSpace(token) == "" {
		return payload, ErrStateInvalid
	}

	raw, err := crypto.Decrypt(token, c.key)
	if err != nil {
		return payload, ErrStateInvalid
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, ErrStateInvalid
	}
	if payload.Nonce == "" || payload.PKCE == "" || payload.IssuedAt.IsZero() {
		return payload, ErrStateInvalid
	}
	if c.now().UTC().After(payload.IssuedAt.Add(c.ttl)) {
		return payload, ErrStateExpired
	}
	return payload, nil
}
