package app

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeKeyHex(t *testing.T) {
	raw := []byte(strings.Repeat("k", 32))
	key, err := DecodeKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, key)
}

func TestDecodeKeyBase64(t *testing.T) {
	raw := []byte(strings.Repeat("s", 16))

	key, err := DecodeKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, key)

	key, err = DecodeKey(base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.Equal(t, raw, key)
}

func TestDecodeKeyRejectsBadInput(t *testing.T) {
	_, err := DecodeKey("  ")
	require.Error(t, err)

	_, err = DecodeKey(hex.EncodeToString([]byte("short")))
	require.Error(t, err)

	_, err = DecodeKey("not*a*key")
	require.Error(t, err)
}
