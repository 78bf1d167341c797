package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otherjamesbrown/mfa-auth-service/internal/audit"
	apperrors "github.com/otherjamesbrown/mfa-auth-service/internal/errors"
	"github.com/otherjamesbrown/mfa-auth-service/internal/metrics"
	"github.com/otherjamesbrown/mfa-auth-service/internal/storage/postgres"
)

// Caller-facing failures.
var (
	ErrMissingRegisterFields = apperrors.Validation("all fields are required")
	ErrInvalidProfileFields  = apperrors.Validation("grado and grupo must be strings")
	ErrPasswordTooLong       = apperrors.Validation("password must be at most 72 bytes")
	ErrMissingLoginFields    = apperrors.Validation("email and at least one credential (password or token) are required")
	ErrMissingOTPFields      = apperrors.Validation("email and token are required")
	ErrUserExists            = apperrors.Conflict("user already exists")
	ErrUserNotFound          = apperrors.NotFound("user not found")
	ErrInvalidCredentials    = apperrors.Authentication("invalid credentials")
	ErrInvalidOTP            = apperrors.Authentication("invalid OTP code")
)

// RegisteredMessage is returned on successful registration.
const RegisteredMessage = "user registered successfully"

// MaxPasswordBytes is the longest password that can be registered.
const MaxPasswordBytes = 72

// RegisterInput carries registration fields as received from the caller.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Grado    string
	Grupo    string
}

// RegisterResult is returned after an account is created.
type RegisterResult struct {
	AccountID       uuid.UUID
	Message         string
	ProvisioningURI string
}

// LoginInput carries login credentials. At least one of Password or Token is required.
type LoginInput struct {
	Email    string
	Password string
	Token    string
}

// VerifyOTPInput carries a TOTP code for standalone verification.
type VerifyOTPInput struct {
	Email string
	Token string
}

// Session is the result of a successful authentication.
type Session struct {
	Token     string
	ExpiresAt time.Time
	AccountID uuid.UUID
	Stages    []Stage
}

// Dependencies wires the Service collaborators. Lockout, Audit and Logger are optional.
type Dependencies struct {
	Store   AccountStore
	Hasher  PasswordHasher
	TOTP    TOTPProvider
	Tokens  TokenIssuer
	Lockout LockoutTracker
	Audit   audit.Emitter
	Logger  *zap.Logger
}

// Service implements register, login and OTP verification.
type Service struct {
	store   AccountStore
	hasher  PasswordHasher
	totp    TOTPProvider
	tokens  TokenIssuer
	lockout LockoutTracker
	audit   audit.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewService validates deps and returns a ready Service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("authn: store is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("authn: password hasher is required")
	}
	if deps.TOTP == nil {
		return nil, errors.New("authn: totp provider is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("authn: token issuer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	emitter := deps.Audit
	if emitter == nil {
		emitter = audit.NewNoopEmitter()
	}
	return &Service{
		store:   deps.Store,
		hasher:  deps.Hasher,
		totp:    deps.TOTP,
		tokens:  deps.Tokens,
		lockout: deps.Lockout,
		audit:   emitter,
		logger:  logger.With(zap.String("component", "authn")),
		now:     time.Now,
	}, nil
}

// Register creates an account and returns the TOTP provisioning URI. The
// account's MFA secret is generated here and never rotated.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Username == "" || in.Password == "" || in.Grado == "" || in.Grupo == "" {
		metrics.RecordRegister("validation")
		return RegisterResult{}, ErrMissingRegisterFields
	}
	if len(in.Password) > MaxPasswordBytes {
		metrics.RecordRegister("validation")
		return RegisterResult{}, ErrPasswordTooLong
	}

	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return RegisterResult{}, s.registerInternal("check existing account", err)
	}
	if exists {
		return RegisterResult{}, s.registerConflict(ctx, email)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return RegisterResult{}, s.registerInternal("hash password", err)
	}

	enrollment, err := s.totp.Generate(email)
	if err != nil {
		return RegisterResult{}, s.registerInternal("generate totp secret", err)
	}

	account, err := s.store.CreateAccount(ctx, postgres.CreateAccountParams{
		Email:        email,
		Username:     in.Username,
		PasswordHash: hash,
		MFASecret:    enrollment.Secret,
		Grado:        in.Grado,
		Grupo:        in.Grupo,
	})
	if err != nil {
		if errors.Is(err, postgres.ErrDuplicateEmail) {
			return RegisterResult{}, s.registerConflict(ctx, email)
		}
		return RegisterResult{}, s.registerInternal("create account", err)
	}

	metrics.RecordRegister("success")
	s.emit(ctx, audit.BuildEvent(audit.ActionAccountRegister, audit.OutcomeSuccess, email, &account.ID))
	s.logger.Info("account registered",
		zap.String("account_id", account.ID.String()),
		zap.String("email", email),
	)

	return RegisterResult{
		AccountID:       account.ID,
		Message:         RegisteredMessage,
		ProvisioningURI: enrollment.ProvisioningURI,
	}, nil
}

func (s *Service) registerConflict(ctx context.Context, email string) error {
	metrics.RecordRegister("conflict")
	event := audit.BuildEvent(audit.ActionAccountRegister, audit.OutcomeFailure, email, nil)
	event.Reason = "duplicate_email"
	s.emit(ctx, audit.Seal(event))
	return ErrUserExists
}

func (s *Service) registerInternal(step string, err error) error {
	metrics.RecordRegister("error")
	s.logger.Error("registration failed", zap.String("step", step), zap.Error(err))
	return apperrors.Internal(fmt.Errorf("%s: %w", step, err))
}

// Login authenticates with a password, a TOTP code or both. The password is
// checked first; the TOTP code is only consulted when the password is absent
// or wrong. Either factor alone is sufficient.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	method := loginMethod(in)
	email := NormalizeEmail(in.Email)
	if email == "" || (in.Password == "" && in.Token == "") {
		metrics.RecordLoginFailure(method, "validation")
		return Session{}, ErrMissingLoginFields
	}

	att := newAttempt()
	account, err := s.lookup(ctx, email)
	if err != nil {
		return Session{}, s.loginFailure(ctx, att, method, email, nil, reasonFor(err), err)
	}

	if s.isLocked(ctx, email) {
		return Session{}, s.loginFailure(ctx, att, method, email, &account.ID, "account_locked", ErrInvalidCredentials)
	}

	authenticated := false
	if in.Password != "" {
		ok, err := s.hasher.Verify(in.Password, account.PasswordHash)
		if err != nil {
			return Session{}, s.loginFailure(ctx, att, method, email, &account.ID, "internal",
				apperrors.Internal(fmt.Errorf("verify password: %w", err)))
		}
		if ok {
			att.advance(StagePasswordChecked)
			authenticated = true
		}
	}

	if !authenticated && in.Token != "" {
		ok, err := s.verifyTOTP(account.MFASecret, in.Token)
		if err != nil {
			return Session{}, s.loginFailure(ctx, att, method, email, &account.ID, "internal", err)
		}
		if ok {
			att.advance(StageMFAChecked)
			authenticated = true
		}
	}

	if !authenticated {
		s.trackFailure(ctx, email)
		return Session{}, s.loginFailure(ctx, att, method, email, &account.ID, "invalid_credentials", ErrInvalidCredentials)
	}

	session, err := s.issue(ctx, att, account)
	if err != nil {
		return Session{}, s.loginFailure(ctx, att, method, email, &account.ID, "internal", err)
	}

	metrics.RecordLoginSuccess(method)
	s.emitOutcome(ctx, audit.ActionLogin, audit.OutcomeSuccess, email, &account.ID, att, "")
	s.logger.Info("login succeeded",
		zap.String("account_id", account.ID.String()),
		zap.String("method", method),
		zap.Stringer("stages", att),
	)
	return session, nil
}

// VerifyOTP authenticates with a TOTP code alone.
func (s *Service) VerifyOTP(ctx context.Context, in VerifyOTPInput) (Session, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Token == "" {
		return Session{}, ErrMissingOTPFields
	}

	att := newAttempt()
	account, err := s.lookup(ctx, email)
	if err != nil {
		return Session{}, s.otpFailure(ctx, att, email, nil, reasonFor(err), err)
	}

	if s.isLocked(ctx, email) {
		return Session{}, s.otpFailure(ctx, att, email, &account.ID, "account_locked", ErrInvalidOTP)
	}

	ok, err := s.verifyTOTP(account.MFASecret, in.Token)
	if err != nil {
		return Session{}, s.otpFailure(ctx, att, email, &account.ID, "internal", err)
	}
	if !ok {
		s.trackFailure(ctx, email)
		return Session{}, s.otpFailure(ctx, att, email, &account.ID, "invalid_otp", ErrInvalidOTP)
	}
	att.advance(StageMFAChecked)

	session, err := s.issue(ctx, att, account)
	if err != nil {
		return Session{}, s.otpFailure(ctx, att, email, &account.ID, "internal", err)
	}

	s.emitOutcome(ctx, audit.ActionVerifyOTP, audit.OutcomeSuccess, email, &account.ID, att, "")
	s.logger.Info("otp verification succeeded",
		zap.String("account_id", account.ID.String()),
		zap.Stringer("stages", att),
	)
	return session, nil
}

func (s *Service) lookup(ctx context.Context, email string) (postgres.Account, error) {
	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return postgres.Account{}, ErrUserNotFound
		}
		return postgres.Account{}, apperrors.Internal(fmt.Errorf("lookup account: %w", err))
	}
	return account, nil
}

func (s *Service) verifyTOTP(secret, code string) (bool, error) {
	start := s.now()
	ok, err := s.totp.Verify(secret, code)
	elapsed := s.now().Sub(start).Seconds()
	if err != nil {
		metrics.RecordOTPFailure(elapsed)
		return false, apperrors.Internal(fmt.Errorf("verify totp: %w", err))
	}
	if ok {
		metrics.RecordOTPSuccess(elapsed)
	} else {
		metrics.RecordOTPFailure(elapsed)
	}
	return ok, nil
}

func (s *Service) issue(ctx context.Context, att *attempt, account postgres.Account) (Session, error) {
	issued, err := s.tokens.Issue(account.ID.String(), account.Username, account.Email)
	if err != nil {
		return Session{}, apperrors.Internal(fmt.Errorf("issue token: %w", err))
	}
	att.advance(StageTokenIssued)
	metrics.RecordSessionIssued()

	if s.lockout != nil {
		if err := s.lockout.Reset(ctx, account.Email); err != nil {
			s.logger.Warn("failed to clear lockout counter", zap.String("email", account.Email), zap.Error(err))
		}
	}

	return Session{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		AccountID: account.ID,
		Stages:    att.stages(),
	}, nil
}

// isLocked reports the tracker state. Tracker errors are logged and treated as unlocked.
func (s *Service) isLocked(ctx context.Context, email string) bool {
	if s.lockout == nil {
		return false
	}
	locked, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		s.logger.Warn("lockout check failed", zap.String("email", email), zap.Error(err))
		return false
	}
	return locked
}

func (s *Service) trackFailure(ctx context.Context, email string) {
	if s.lockout == nil {
		return
	}
	count, locked, err := s.lockout.RegisterFailure(ctx, email)
	if err != nil {
		s.logger.Warn("failed to track failed attempt", zap.String("email", email), zap.Error(err))
		return
	}
	if locked {
		metrics.RecordLockout()
		s.logger.Warn("identity locked after repeated failures", zap.String("email", email), zap.Int("attempts", count))
	}
}

func (s *Service) loginFailure(ctx context.Context, att *attempt, method, email string, accountID *uuid.UUID, reason string, err error) error {
	att.reject()
	metrics.RecordLoginFailure(method, reason)
	s.emitOutcome(ctx, audit.ActionLogin, audit.OutcomeFailure, email, accountID, att, reason)
	s.logFailure("login rejected", email, reason, att, err)
	return err
}

func (s *Service) otpFailure(ctx context.Context, att *attempt, email string, accountID *uuid.UUID, reason string, err error) error {
	att.reject()
	s.emitOutcome(ctx, audit.ActionVerifyOTP, audit.OutcomeFailure, email, accountID, att, reason)
	s.logFailure("otp verification rejected", email, reason, att, err)
	return err
}

func (s *Service) logFailure(msg, email, reason string, att *attempt, err error) {
	fields := []zap.Field{
		zap.String("email", email),
		zap.String("reason", reason),
		zap.Stringer("stages", att),
	}
	if apperrors.KindOf(err) == apperrors.KindInternal {
		s.logger.Error(msg, append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info(msg, fields...)
}

func (s *Service) emitOutcome(ctx context.Context, action, outcome, email string, accountID *uuid.UUID, att *attempt, reason string) {
	event := audit.BuildEvent(action, outcome, email, accountID)
	event.Stage = string(att.current())
	event.Reason = reason
	s.emit(ctx, audit.Seal(event))
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.audit.Emit(ctx, audit.Enrich(ctx, event)); err != nil {
		s.logger.Warn("failed to emit audit event",
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
}

func loginMethod(in LoginInput) string {
	switch {
	case in.Password != "" && in.Token != "":
		return "password+totp"
	case in.Token != "":
		return "totp"
	default:
		return "password"
	}
}

func reasonFor(err error) string {
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return "not_found"
	}
	return "internal"
}
