package authntest

import (
	"fmt"
	"time"

	"github.com/otherjamesbrown/mfa-auth-service/internal/security"
)

// CurrentCode returns the TOTP code for secret at the current time step.
func CurrentCode(secret string) (string, error) {
	return security.NewTOTPEngine("").CodeAt(secret, time.Now())
}

// InvalidCode returns a six-digit code that does not match secret in any step
// within two periods of now, so it stays invalid across a step boundary.
func InvalidCode(secret string) (string, error) {
	engine := security.NewTOTPEngine("")
	now := time.Now()
	taken := make(map[string]bool)
	for step := -2; step <= 2; step++ {
		code, err := engine.CodeAt(secret, now.Add(time.Duration(step)*security.TOTPPeriod*time.Second))
		if err != nil {
			return "", err
		}
		taken[code] = true
	}
	for i := 0; i < 10; i++ {
		candidate := fmt.Sprintf("%06d", i*111111)
		if !taken[candidate] {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no invalid code found")
}
