package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("secret")
	now := time.Now()

	token, err := issuer.Issue(now)
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.WithinDuration(t, now.Add(TokenTTL), claims.ExpiresAt.Time, time.Second)
}

func TestVerifyFailuresAreUnauthorized(t *testing.T) {
	issuer := NewIssuer("secret")

	expired, err := issuer.Issue(time.Now().Add(-8 * 24 * time.Hour))
	require.NoError(t, err)

	foreign, err := NewIssuer("other-secret").Issue(time.Now())
	require.NoError(t, err)

	wrongRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "storekriti",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongRoleToken, err := wrongRole.SignedString([]byte("secret"))
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"expired":    expired,
		"bad secret": foreign,
		"wrong role": wrongRoleToken,
		"alg none":   noneToken,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Verify(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}

	t.Run("missing secret", func(t *testing.T) {
		valid, err := issuer.Issue(time.Now())
		require.NoError(t, err)

		_, err = NewIssuer("").Verify(valid)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestIssueWithoutSecret(t *testing.T) {
	_, err := NewIssuer("").Issue(time.Now())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCheckPassword(t *testing.T) {
	assert.NoError(t, CheckPassword("hunter2", "hunter2"))
	assert.ErrorIs(t, CheckPassword("hunter2", "hunter3"), ErrInvalidPassword)
	assert.ErrorIs(t, CheckPassword("hunter2", ""), ErrInvalidPassword)
	assert.ErrorIs(t, CheckPassword("", "anything"), ErrNotConfigured)

	t.Run("bcrypt hash", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
		require.NoError(t, err)

		assert.NoError(t, CheckPassword(string(hash), "hunter2"))
		assert.ErrorIs(t, CheckPassword(string(hash), "hunter3"), ErrInvalidPassword)
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "hunter2"))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
	assert.Equal(t, "", BearerToken("Bearer"))
}
