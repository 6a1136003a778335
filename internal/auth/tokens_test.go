package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("shelf-test-secret-32-bytes-long!")

func TestTokensIssueAndParse(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	issued, err := tokens.Issue("google:42", "user@domain.ext")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.False(t, issued.ExpiresAt.IsZero())

	parsed, err := tokens.Parse(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "google:42", parsed.UserID)
	assert.Equal(t, "user@domain.ext", parsed.Email)
	assert.True(t, parsed.ExpiresAt.Equal(issued.ExpiresAt))
}

func TestTokensWithoutTTL(t *testing.T) {
	tokens := NewTokens(testSecret, 0)

	issued, err := tokens.Issue("u1", "")
	require.NoError(t, err)
	assert.True(t, issued.ExpiresAt.IsZero())

	_, err = tokens.Parse(issued.Token)
	assert.NoError(t, err)
}

func TestTokensParseRejects(t *testing.T) {
	good := NewTokens(testSecret, time.Hour)
	other := NewTokens([]byte("another-secret-another-secret!!!"), time.Hour)

	foreign, err := other.Issue("u1", "")
	require.NoError(t, err)

	expired := NewTokens(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue("u1", "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong secret", token: foreign.Token},
		{name: "expired", token: old.Token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := good.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestDecodeSecret(t *testing.T) {
	padded, err := DecodeSecret("c2hlbGYtdGVzdC1zZWNyZXQtMzItYnl0ZXMtbG9uZyE=")
	require.NoError(t, err)
	assert.Equal(t, "shelf-test-secret-32-bytes-long!", string(padded))

	raw, err := DecodeSecret("c2hlbGYtdGVzdC1zZWNyZXQtMzItYnl0ZXMtbG9uZyE")
	require.NoError(t, err)
	assert.Equal(t, padded, raw)

	_, err = DecodeSecret("***")
	assert.Error(t, err)
}
