package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citybuild/maprelay/pkg/auth"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestHSVerifyAcceptsValidToken(t *testing.T) {
	v := auth.NewHS("secret")
	tok := sign(t, "secret", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	sub, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestHSVerifyRejectsWrongSecret(t *testing.T) {
	v := auth.NewHS("secret")
	tok := sign(t, "other-secret", jwt.MapClaims{"sub": "user-1"})

	_, err := v.Verify(tok)
	assert.Error(t, err)
}

func TestHSVerifyRejectsMissingSubject(t *testing.T) {
	v := auth.NewHS("secret")
	tok := sign(t, "secret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	_, err := v.Verify(tok)
	assert.Error(t, err)
}

func TestHSVerifyRejectsEmptyToken(t *testing.T) {
	v := auth.NewHS("secret")
	_, err := v.Verify("")
	assert.Error(t, err)
}

func TestNoopAcceptsAnything(t *testing.T) {
	var v auth.Verifier = auth.Noop{}
	_, err := v.Verify("not-even-a-jwt")
	assert.NoError(t, err)
}
