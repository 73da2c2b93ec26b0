package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour, "verdict")
	actor := &Actor{UserID: 42, Username: "alice", Role: RoleModerator}

	token, err := ti.Issue(actor)
	require.NoError(t, err)

	claims, err := ti.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleModerator, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour, "verdict")
	actor := &Actor{UserID: 1, Username: "bob", Role: RoleUser}

	t.Run("anonymous issue", func(t *testing.T) {
		_, err := ti.Issue(nil)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewTokenIssuer("other", time.Hour, "verdict").Issue(actor)
		require.NoError(t, err)
		_, err = ti.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := NewTokenIssuer("secret", time.Hour, "someone-else").Issue(actor)
		require.NoError(t, err)
		_, err = ti.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokenIssuer("secret", time.Minute, "verdict")
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := past.Issue(actor)
		require.NoError(t, err)
		_, err = ti.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: "verdict"}})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ti.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ti.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected rune %q", c)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestCodeHasher(t *testing.T) {
	h := NewCodeHasher(bcrypt.MinCost)

	hash, err := h.Hash("Ab3dE9")
	require.NoError(t, err)
	assert.NotEqual(t, "Ab3dE9", hash)

	assert.True(t, h.Matches(hash, "Ab3dE9"))
	assert.False(t, h.Matches(hash, "ab3de9"))
	assert.False(t, h.Matches("", "Ab3dE9"))
	assert.False(t, h.Matches(hash, ""))

	assert.Equal(t, bcrypt.DefaultCost, NewCodeHasher(1).cost)
}
