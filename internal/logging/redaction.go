package logging

import (
	"regexp"

	"go.uber.org/zap"
)

const redacted = "***REDACTED***"

var (
	passwordPattern   = regexp.MustCompile(`(?i)("?password"?\s*[=:]\s*"?)([^\s"',}]+)`)
	bearerPattern     = regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9\-_.]{20,})`)
	connStringPattern = regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@`)
	otpauthPattern    = regexp.MustCompile(`(?i)(secret=)([A-Z2-7]+=*)`)
)

// RedactString masks passwords, bearer tokens, TOTP secrets and connection
// string credentials in s.
func RedactString(s string) string {
	if s == "" {
		return s
	}
	s = passwordPattern.ReplaceAllString(s, "${1}"+redacted)
	s = bearerPattern.ReplaceAllString(s, "${1}"+redacted)
	s = otpauthPattern.ReplaceAllString(s, "${1}"+redacted)
	s = connStringPattern.ReplaceAllString(s, "://"+redacted+"@")
	return s
}

// RedactedString is a zap field whose value passes through RedactString.
func RedactedString(key, value string) zap.Field {
	return zap.String(key, RedactString(value))
}
