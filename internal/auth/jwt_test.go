package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestVerifier_RoundTrip(t *testing.T) {
	token, err := Issue(secret, 42, "ADMIN", time.Hour)
	require.NoError(t, err)

	id, err := NewVerifier(secret).VerifyHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestVerifier_NumericSubjectDefaultsToCustomer(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 7,
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	id, err := NewVerifier(secret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 7, Role: RoleCustomer}, id)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(secret)

	expired, err := Issue(secret, 1, RoleCustomer, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := Issue("other", 1, RoleCustomer, time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte(secret))
	require.NoError(t, err)
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte(secret))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "1"}).SignedString([]byte(secret))
	require.NoError(t, err)

	testCases := []struct {
		name   string
		header string
	}{
		{name: "empty", header: ""},
		{name: "no bearer prefix", header: expired},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong key", header: "Bearer " + wrongKey},
		{name: "no subject", header: "Bearer " + noSubject},
		{name: "non numeric subject", header: "Bearer " + badSubject},
		{name: "other algorithm", header: "Bearer " + hs512},
		{name: "garbage", header: "Bearer not.a.jwt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.VerifyHeader(tc.header)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: 3, Role: RoleCustomer})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), id.UserID)
}
