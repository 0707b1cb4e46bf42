package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashingUsesConfiguredCost(t *testing.T) {
	hash, err := HashPasswordWithCost("secret", MinPasswordCost)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, MinPasswordCost, cost)

	require.True(t, VerifyPassword(hash, "secret"))
	require.False(t, VerifyPassword(hash, "incorrect"))
}

func TestPasswordCostFloor(t *testing.T) {
	_, err := HashPasswordWithCost("secret", 4)
	require.ErrorIs(t, err, ErrPasswordCostTooLow)
}

func TestGenerateHexToken(t *testing.T) {
	token, err := GenerateHexToken(32)
	require.NoError(t, err)
	require.Len(t, token, 64)
	require.Regexp(t, "^[0-9a-f]+$", token)

	other, err := GenerateHexToken(32)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateHexTokenPropagatesSourceFailure(t *testing.T) {
	original := randReader
	randReader = failingReader{}
	t.Cleanup(func() { randReader = original })

	token, err := GenerateHexToken(32)
	require.Error(t, err)
	require.Empty(t, token)
	require.Contains(t, err.Error(), "entropy exhausted")
}

func TestHashTokenIsStable(t *testing.T) {
	require.Equal(t, HashToken("abc"), HashToken("abc"))
	require.NotEqual(t, HashToken("abc"), HashToken("abd"))
	require.Len(t, HashToken("abc"), 64)
}

func TestEncryptDecrypt(t *testing.T) {
	key := bytes.Repeat([]byte{0x1}, 32)
	plaintext := []byte("sso state")

	encoded, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	decrypted, err := Decrypt(encoded, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)

	_, err = Decrypt(encoded, bytes.Repeat([]byte{0x2}, 32))
	require.Error(t, err)
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEmpty(t, token)
}
