package jwtauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "canlaw/pkg/domain-errors"
)

func TestIssueAndValidate(t *testing.T) {
	svc := New("test-signing-key", "canlaw", "canlaw-api")

	token, err := svc.IssueToken("svc-interview", time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "svc-interview", claims.Service)
	assert.Equal(t, "canlaw", claims.Issuer)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := New("test-signing-key", "canlaw", "canlaw-api")

	token, err := svc.IssueToken("svc-interview", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := New("key-one", "canlaw", "canlaw-api")
	verifier := New("key-two", "canlaw", "canlaw-api")

	token, err := issuer.IssueToken("svc-interview", time.Minute)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsWrongAudience(t *testing.T) {
	issuer := New("test-signing-key", "canlaw", "other-api")
	verifier := New("test-signing-key", "canlaw", "canlaw-api")

	token, err := issuer.IssueToken("svc-interview", time.Minute)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := New("test-signing-key", "canlaw", "canlaw-api")
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
