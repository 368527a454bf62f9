package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	ts := NewTokenService("test-secret")

	uid := uint(42)
	token, err := ts.Mint(RoleTeacher, &uid)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, claims.Role)
	require.NotNil(t, claims.UserID)
	assert.Equal(t, uid, *claims.UserID)
}

func TestTokenStaticAccounts(t *testing.T) {
	ts := NewTokenService("test-secret")

	token, err := ts.Mint(RoleAdmin, nil)
	require.NoError(t, err)

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Nil(t, claims.UserID)
}

func TestTokenParseRejectsGarbage(t *testing.T) {
	ts := NewTokenService("test-secret")

	_, err := ts.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ts.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenParseRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a").Mint(RoleUser, nil)
	require.NoError(t, err)

	_, err = NewTokenService("secret-b").Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
