package libs

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyTOTPAtAcceptsAdjacentSteps(t *testing.T) {
	secret, _, err := GenerateTOTPSecret("alice@example.com", "PolyLab")
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	at := time.Date(2026, 8, 1, 12, 0, 15, 0, time.UTC)
	code, err := totp.GenerateCode(secret, at)
	require.NoError(t, err)

	assert.True(t, VerifyTOTPAt(secret, code, at))
	// one step of drift either way is tolerated
	assert.True(t, VerifyTOTPAt(secret, code, at.Add(30*time.Second)))
	assert.True(t, VerifyTOTPAt(secret, code, at.Add(-30*time.Second)))
	// two steps away is rejected
	assert.False(t, VerifyTOTPAt(secret, code, at.Add(90*time.Second)))
	assert.False(t, VerifyTOTPAt(secret, code, at.Add(-90*time.Second)))
}

func TestVerifyTOTPRejectsGarbage(t *testing.T) {
	secret, _, err := GenerateTOTPSecret("alice@example.com", "PolyLab")
	require.NoError(t, err)

	assert.False(t, VerifyTOTP(secret, "000000"))
	assert.False(t, VerifyTOTP(secret, "not-a-code"))
	assert.False(t, VerifyTOTP("", "123456"))
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("JBSWY3DPEHPK3PXP", "alice@example.com", "PolyLab")
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=PolyLab")
	assert.Contains(t, uri, "PolyLab:alice@example.com")
}

func TestGenerateTOTPSecretURIMatchesSecret(t *testing.T) {
	secret, uri, err := GenerateTOTPSecret("bob@example.com", "PolyLab")
	require.NoError(t, err)
	assert.Contains(t, uri, "secret="+secret)
}

func TestQRCodeDataURL(t *testing.T) {
	data, err := QRCodeDataURL("otpauth://totp/PolyLab:alice@example.com?secret=JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data, "data:image/png;base64,"))
}
