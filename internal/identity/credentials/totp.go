package credentials

import (
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// VerifyTOTP checks a six-digit code against secret at time at, allowing one step of skew.
func VerifyTOTP(secret, code string, at time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, totpOpts)
	return err == nil && ok
}

// GenerateTOTP returns the code for secret at time at. Used by bootstrap tooling and tests.
func GenerateTOTP(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, totpOpts)
}

// NewTOTPSecret creates a base32 secret for accountName.
func NewTOTPSecret(issuer, accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: accountName})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// NormalizeTOTPSecret strips spaces from a provisioned base32 secret, upper-cases it and
// checks that codes can be derived from it.
func NormalizeTOTPSecret(secret string) (string, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	if normalized == "" {
		return "", errors.New("totp secret is empty")
	}
	if _, err := totp.GenerateCodeCustom(normalized, time.Unix(0, 0), totpOpts); err != nil {
		return "", err
	}
	return normalized, nil
}
