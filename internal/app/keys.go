package app

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DecodeKey decodes an AES key given as hex or base64. Generated keys are hex.
func DecodeKey(value string) ([]byte, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, errors.New("key value is empty")
	}

	var decoded []byte
	if len(v)%2 == 0 {
		if raw, err := hex.DecodeString(v); err == nil {
			decoded = raw
		}
	}
	if decoded == nil {
		for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
			if raw, err := enc.DecodeString(v); err == nil {
				decoded = raw
				break
			}
		}
	}
	if decoded == nil {
		return nil, errors.New("key must be hex or base64 encoded")
	}

	switch len(decoded) {
	case 16, 24, 32:
		return decoded, nil
	default:
		return nil, fmt.Errorf("key must decode to 16, 24 or 32 bytes, got %d", len(decoded))
	}
}
