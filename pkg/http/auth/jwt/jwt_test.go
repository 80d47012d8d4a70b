package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := GenSessionToken("user-1", "org-1", []byte("secret"), time.Hour)
	require.NoError(t, err)

	claims, err := ParseSessionToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrgID)
}

func TestParseSessionTokenWrongSecret(t *testing.T) {
	token, err := GenSessionToken("user-1", "org-1", []byte("secret"), time.Hour)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "other")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseSessionTokenExpired(t *testing.T) {
	token, err := GenSessionToken("user-1", "org-1", []byte("secret"), -time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "secret")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseSessionTokenGarbage(t *testing.T) {
	_, err := ParseSessionToken("not-a-token", "secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
