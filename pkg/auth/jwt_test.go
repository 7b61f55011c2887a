package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opschat/opschat/pkg/apperr"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("unit-test-secret", 30*time.Minute)

	token, err := issuer.Issue("alice@example.com", 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)
}

func TestParseExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("unit-test-secret", 30*time.Minute)

	expired, err := issuer.Issue("alice@example.com", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = issuer.Parse(expired)
	require.Error(t, err)
	uerr, ok := apperr.AsUnauthorized(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeTokenExpired, uerr.Code)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("unit-test-secret", 30*time.Minute)
	other := NewTokenIssuer("different-secret", 30*time.Minute)

	token, err := issuer.Issue("alice@example.com", 0)
	require.NoError(t, err)

	_, err = other.Parse(token)
	require.Error(t, err)
	uerr, ok := apperr.AsUnauthorized(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidCredentials, uerr.Code)
}

func TestParseRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("unit-test-secret", 30*time.Minute)

	_, err := issuer.Parse("not.a.token")
	require.Error(t, err)
	_, ok := apperr.AsUnauthorized(err)
	assert.True(t, ok)
}
