package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters shared by enrollment and verification. Authenticator apps
// assume these values when the provisioning URI omits them.
const (
	TOTPPeriod     = 30
	TOTPSkew       = 1
	TOTPSecretSize = 20
	TOTPDigits     = otp.DigitsSix
)

// TOTPEnrollment is the result of generating a new shared secret.
type TOTPEnrollment struct {
	// Secret is the base32-encoded shared secret.
	Secret string
	// ProvisioningURI is the otpauth:// URI used to enroll an authenticator app.
	ProvisioningURI string
}

// TOTPEngine generates shared secrets and verifies codes against server time.
type TOTPEngine struct {
	issuer string
	now    func() time.Time
}

// NewTOTPEngine returns an engine that labels secrets with issuer.
func NewTOTPEngine(issuer string) *TOTPEngine {
	if issuer == "" {
		issuer = "MFA Auth Service"
	}
	return &TOTPEngine{issuer: issuer, now: time.Now}
}

func (e *TOTPEngine) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    TOTPPeriod,
		Skew:      TOTPSkew,
		Digits:    TOTPDigits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Generate creates a fresh 20-byte secret for accountName.
func (e *TOTPEngine) Generate(accountName string) (TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      TOTPPeriod,
		SecretSize:  TOTPSecretSize,
		Digits:      TOTPDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("generate TOTP secret: %w", err)
	}
	return TOTPEnrollment{Secret: key.Secret(), ProvisioningURI: key.URL()}, nil
}

// Verify reports whether code matches secret at the current time step or one
// step either side. Codes of the wrong length are invalid, not errors.
func (e *TOTPEngine) Verify(secret, code string) (bool, error) {
	if secret == "" || code == "" {
		return false, nil
	}
	valid, err := totp.ValidateCustom(code, secret, e.now().UTC(), e.validateOpts())
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, fmt.Errorf("verify TOTP: %w", err)
	}
	return valid, nil
}

// CodeAt computes the code for secret at t. Used by tooling and tests that
// act as an authenticator app.
func (e *TOTPEngine) CodeAt(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, t.UTC(), e.validateOpts())
	if err != nil {
		return "", fmt.Errorf("generate TOTP code: %w", err)
	}
	return code, nil
}
