// Package metrics provides Prometheus collectors for the MFA auth service.
//
// Collectors are registered on the default registry when the package is
// imported and are exposed through the server's /metrics endpoint:
//
//	metrics.RecordRegister("success")
//	metrics.RecordLoginFailure("password", "invalid_credentials")
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "mfa_auth_service"
	subsystem = "auth"
)

var (
	// RegisterTotal counts registration attempts by result.
	RegisterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "register_total",
			Help:      "Total number of account registrations by result",
		},
		[]string{"result"}, // result: success, validation, conflict, error
	)

	// LoginAttemptsTotal counts login attempts by method and result.
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by method and result",
		},
		[]string{"method", "result"}, // method: password, totp, password+totp
	)

	// LoginFailuresTotal counts login failures by method and reason.
	LoginFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "login_failures_total",
			Help:      "Total number of login failures by method and reason",
		},
		[]string{"method", "reason"}, // reason: invalid_credentials, not_found, account_locked, validation, internal
	)

	// OTPAttemptsTotal counts TOTP verification attempts by result.
	OTPAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "otp_attempts_total",
			Help:      "Total number of TOTP verification attempts by result",
		},
		[]string{"result"},
	)

	// OTPAttemptDurationSeconds measures TOTP verification duration.
	OTPAttemptDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "otp_attempt_duration_seconds",
			Help:      "Duration of TOTP verification attempts in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// SessionsIssuedTotal counts session tokens issued.
	SessionsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_issued_total",
			Help:      "Total number of session tokens issued",
		},
	)

	// LockoutsTotal counts identities locked after repeated failures.
	LockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lockouts_total",
			Help:      "Total number of identities locked after repeated failures",
		},
	)
)

// RecordRegister records a registration outcome.
func RecordRegister(result string) {
	RegisterTotal.WithLabelValues(result).Inc()
}

// RecordLoginSuccess records a successful login.
func RecordLoginSuccess(method string) {
	LoginAttemptsTotal.WithLabelValues(method, "success").Inc()
}

// RecordLoginFailure records a failed login.
func RecordLoginFailure(method, reason string) {
	LoginAttemptsTotal.WithLabelValues(method, "failure").Inc()
	LoginFailuresTotal.WithLabelValues(method, reason).Inc()
}

// RecordOTPSuccess records a successful TOTP verification.
func RecordOTPSuccess(durationSeconds float64) {
	OTPAttemptsTotal.WithLabelValues("success").Inc()
	OTPAttemptDurationSeconds.WithLabelValues("success").Observe(durationSeconds)
}

// RecordOTPFailure records a failed TOTP verification.
func RecordOTPFailure(durationSeconds float64) {
	OTPAttemptsTotal.WithLabelValues("failure").Inc()
	OTPAttemptDurationSeconds.WithLabelValues("failure").Observe(durationSeconds)
}

// RecordSessionIssued records a session token issuance.
func RecordSessionIssued() {
	SessionsIssuedTotal.Inc()
}

// RecordLockout records an identity being locked out.
func RecordLockout() {
	LockoutsTotal.Inc()
}
