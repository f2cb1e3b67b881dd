package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43) // 32 bytes, unpadded base64url
	assert.NotContains(t, a, "=")
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"alice@example.com",
		"a.b+tag@sub.example.co",
		"under_score@example.org",
	}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}

	invalid := []string{
		"",
		"no-at-sign",
		"@example.com",
		"alice@",
		"alice@@example.com",
		"alice@localhost",
		"alice@example.c",
		"alice@-bad-.example..com",
		"spa ce@example.com",
		strings.Repeat("a", 65) + "@example.com",
	}
	for _, email := range invalid {
		assert.Error(t, ValidateEmail(email), email)
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	ck := SessionCookie("session_id", "abc", 7200, true)
	assert.True(t, ck.HTTPOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, 7200, ck.MaxAge)
}

func TestCSRFCookieReadable(t *testing.T) {
	ck := CSRFCookie("csrf_token", "abc", false)
	assert.False(t, ck.HTTPOnly)
}

func TestExpiredCookie(t *testing.T) {
	ck := ExpiredCookie("session_id")
	assert.Empty(t, ck.Value)
	assert.Negative(t, ck.MaxAge)
}
