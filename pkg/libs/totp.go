package libs

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpSecretSize = 20 // 160-bit shared secret, 32 base32 chars
	totpPeriod     = 30
	totpSkew       = 1 // accept the adjacent step on either side
)

// GenerateTOTPSecret creates a fresh 160-bit base32 secret for the
// account and returns it with the otpauth provisioning URI.
func GenerateTOTPSecret(accountLabel, issuer string) (secret, otpauthURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountLabel,
		SecretSize:  totpSecretSize,
		Period:      totpPeriod,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate TOTP key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// ProvisioningURI formats an otpauth://totp URI for an existing secret.
// Pure formatting, no I/O.
func ProvisioningURI(secret, accountLabel, issuer string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("period", fmt.Sprintf("%d", totpPeriod))
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuer + ":" + accountLabel,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// VerifyTOTP checks a 6-digit code against the current 30-second step
// and one adjacent step in each direction for clock-skew tolerance.
// Replay of the same code within that window is not prevented here.
func VerifyTOTP(secret, code string) bool {
	return VerifyTOTPAt(secret, code, time.Now())
}

// VerifyTOTPAt is VerifyTOTP with an explicit evaluation time.
func VerifyTOTPAt(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// QRCodeDataURL renders the provisioning URI as a PNG data URL suitable
// for direct embedding in an <img> tag.
func QRCodeDataURL(otpauthURI string) (string, error) {
	png, err := qrcode.Encode(otpauthURI, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
