package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	require.NoError(t, err)

	assert.Len(t, code, 6)
	assert.Empty(t, strings.TrimLeft(code, "0123456789"))

	_, err = GenerateNumericCode(0)
	assert.Error(t, err)
}

func TestGenerateSecureToken(t *testing.T) {
	first, err := GenerateSecureToken(32)
	require.NoError(t, err)
	second, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	// 32 bytes encode to 43 characters of unpadded URL-safe base64.
	assert.Len(t, first, 43)
	assert.NotContains(t, first, "=")

	_, err = GenerateSecureToken(-1)
	assert.Error(t, err)
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, err := GenerateBackupCodes(10, 8)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		assert.Len(t, code, 8)
		for _, r := range code {
			assert.Contains(t, backupCodeAlphabet, string(r))
		}
		assert.False(t, seen[code], "duplicate backup code %q", code)
		seen[code] = true
	}

	_, err = GenerateBackupCodes(0, 8)
	assert.Error(t, err)
}

func TestHashTokenIsDeterministic(t *testing.T) {
	a := HashToken("value")
	b := HashToken("value")
	c := HashToken("other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestIsDisposableEmail(t *testing.T) {
	cases := []struct {
		email string
		want  bool
	}{
		{"alice@mailinator.com", true},
		{"alice@MAILINATOR.COM", true},
		{"bob@10minutemail.com", true},
		{"alice@example.com", false},
		{"alice@gmail.com", false},
		{"not-an-email", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsDisposableEmail(tc.email), "email %q", tc.email)
	}
}

func TestPasswordHasherRoundTrip(t *testing.T) {
	hasher := NewPasswordHasher(MinBcryptCost)

	hash, err := hasher.Hash("Tr0ub4dor&3xpand!2024")
	require.NoError(t, err)
	assert.NotEqual(t, "Tr0ub4dor&3xpand!2024", hash)

	ok, err := hasher.Compare("Tr0ub4dor&3xpand!2024", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Compare("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasherEnforcesMinimumCost(t *testing.T) {
	hasher := NewPasswordHasher(4)

	hash, err := hasher.Hash("Tr0ub4dor&3xpand!2024")
	require.NoError(t, err)
	// bcrypt embeds the cost in the hash prefix.
	assert.True(t, strings.HasPrefix(hash, "$2a$12$"), "hash prefix: %s", hash[:7])
}
