package authn

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/otherjamesbrown/mfa-auth-service/internal/audit"
	"github.com/otherjamesbrown/mfa-auth-service/internal/authn/authntest"
	apperrors "github.com/otherjamesbrown/mfa-auth-service/internal/errors"
	"github.com/otherjamesbrown/mfa-auth-service/internal/security"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (e *recordingEmitter) Emit(ctx context.Context, event audit.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) last() audit.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events[len(e.events)-1]
}

type fixture struct {
	svc     *Service
	store   *authntest.Store
	tokens  *security.TokenIssuer
	emitter *recordingEmitter
}

func newFixture(t *testing.T, lockout LockoutTracker) *fixture {
	t.Helper()
	tokens, err := security.NewTokenIssuer(testSigningKey, "test", security.DefaultTokenTTL)
	require.NoError(t, err)

	store := authntest.NewStore()
	emitter := &recordingEmitter{}
	deps := Dependencies{
		Store:  store,
		Hasher: security.NewPasswordHasher(bcrypt.MinCost),
		TOTP:   security.NewTOTPEngine("Test"),
		Tokens: tokens,
		Audit:  emitter,
	}
	if lockout != nil {
		deps.Lockout = lockout
	}
	svc, err := NewService(deps)
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, tokens: tokens, emitter: emitter}
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:    "a@x.com",
		Username: "a",
		Password: "p1",
		Grado:    "1A",
		Grupo:    "G1",
	}
}

func (f *fixture) register(t *testing.T) (RegisterResult, string) {
	t.Helper()
	res, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	account, err := f.store.GetAccountByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	return res, account.MFASecret
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Dependencies{})
	require.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com \t"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestRegisterCreatesAccount(t *testing.T) {
	f := newFixture(t, nil)

	res, secret := f.register(t)
	assert.Equal(t, RegisteredMessage, res.Message)
	assert.True(t, strings.HasPrefix(res.ProvisioningURI, "otpauth://totp/"))
	assert.Contains(t, res.ProvisioningURI, "secret="+secret)
	assert.Equal(t, 1, f.store.Len())

	account, err := f.store.GetAccountByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "p1", account.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("p1")))
	assert.Equal(t, "1A", account.Grado)
	assert.Equal(t, "G1", account.Grupo)

	event := f.emitter.last()
	assert.Equal(t, audit.ActionAccountRegister, event.Action)
	assert.Equal(t, audit.OutcomeSuccess, event.Outcome)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := newFixture(t, nil)
	in := validRegistration()
	in.Email = "  Mixed@Case.COM "

	_, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)

	_, err = f.store.GetAccountByEmail(context.Background(), "mixed@case.com")
	require.NoError(t, err)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string]func(*RegisterInput){
		"email":    func(in *RegisterInput) { in.Email = "  " },
		"username": func(in *RegisterInput) { in.Username = "" },
		"password": func(in *RegisterInput) { in.Password = "" },
		"grado":    func(in *RegisterInput) { in.Grado = "" },
		"grupo":    func(in *RegisterInput) { in.Grupo = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validRegistration()
			mutate(&in)
			_, err := f.svc.Register(context.Background(), in)
			require.ErrorIs(t, err, ErrMissingRegisterFields)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}
	assert.Zero(t, f.store.Len())
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	f := newFixture(t, nil)

	in := validRegistration()
	in.Password = strings.Repeat("p", MaxPasswordBytes+1)
	_, err := f.svc.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrPasswordTooLong)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(apperrors.KindOf(err)))
	assert.Zero(t, f.store.Len())

	in.Password = strings.Repeat("p", MaxPasswordBytes)
	_, err = f.svc.Register(context.Background(), in)
	require.NoError(t, err)
}

func TestRegisterDuplicateAnyCase(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t)

	in := validRegistration()
	in.Email = "A@X.COM"
	_, err := f.svc.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Equal(t, 1, f.store.Len())
}

type racingStore struct {
	*authntest.Store
}

func (s racingStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func TestRegisterMapsUniqueViolationToConflict(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t)
	f.svc.store = racingStore{Store: f.store}

	_, err := f.svc.Register(context.Background(), validRegistration())
	require.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Err = errors.New("connection refused")

	_, err := f.svc.Register(context.Background(), validRegistration())
	require.Error(t, err)
	appErr := apperrors.From(err)
	assert.Equal(t, apperrors.KindInternal, appErr.Kind)
	assert.Equal(t, "internal server error", appErr.Message)
}

func TestLoginWithPassword(t *testing.T) {
	f := newFixture(t, nil)
	res, _ := f.register(t)

	session, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)
	assert.Equal(t, res.AccountID, session.AccountID)
	assert.Equal(t, []Stage{StageUnauthenticated, StagePasswordChecked, StageTokenIssued}, session.Stages)

	claims, err := f.tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, res.AccountID.String(), claims.AccountID)
	assert.Equal(t, "a", claims.Username)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.WithinDuration(t, claims.IssuedAt.Add(2*time.Hour), claims.ExpiresAt.Time, 0)
}

func TestLoginNormalizesEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: " A@X.com", Password: "p1"})
	require.NoError(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))

	event := f.emitter.last()
	assert.Equal(t, audit.ActionLogin, event.Action)
	assert.Equal(t, audit.OutcomeFailure, event.Outcome)
	assert.Equal(t, string(StageRejected), event.Stage)
	assert.Equal(t, "invalid_credentials", event.Reason)
}

func TestLoginOverlongPasswordIsInvalidCredentials(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: strings.Repeat("p", MaxPasswordBytes+1)})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
}

func TestLoginWithTOTPOnly(t *testing.T) {
	f := newFixture(t, nil)
	_, secret := f.register(t)

	code, err := authntest.CurrentCode(secret)
	require.NoError(t, err)

	session, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Token: code})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageUnauthenticated, StageMFAChecked, StageTokenIssued}, session.Stages)
}

func TestLoginWrongPasswordFallsBackToTOTP(t *testing.T) {
	f := newFixture(t, nil)
	_, secret := f.register(t)

	code, err := authntest.CurrentCode(secret)
	require.NoError(t, err)

	session, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "wrong", Token: code})
	require.NoError(t, err)
	assert.Equal(t, StageTokenIssued, session.Stages[len(session.Stages)-1])
}

func TestLoginInvalidTOTP(t *testing.T) {
	f := newFixture(t, nil)
	_, secret := f.register(t)

	code, err := authntest.InvalidCode(secret)
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Token: code})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com"})
	require.ErrorIs(t, err, ErrMissingLoginFields)

	_, err = f.svc.Login(context.Background(), LoginInput{Password: "p1"})
	require.ErrorIs(t, err, ErrMissingLoginFields)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "nobody@x.com", Password: "p1"})
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestVerifyOTP(t *testing.T) {
	f := newFixture(t, nil)
	res, secret := f.register(t)

	code, err := authntest.CurrentCode(secret)
	require.NoError(t, err)

	session, err := f.svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "A@x.com", Token: code})
	require.NoError(t, err)
	assert.Equal(t, res.AccountID, session.AccountID)

	claims, err := f.tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestVerifyOTPFailures(t *testing.T) {
	f := newFixture(t, nil)
	_, secret := f.register(t)

	_, err := f.svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "a@x.com"})
	require.ErrorIs(t, err, ErrMissingOTPFields)

	_, err = f.svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "nobody@x.com", Token: "123456"})
	require.ErrorIs(t, err, ErrUserNotFound)

	bad, err := authntest.InvalidCode(secret)
	require.NoError(t, err)
	_, err = f.svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "a@x.com", Token: bad})
	require.ErrorIs(t, err, ErrInvalidOTP)

	_, err = f.svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "a@x.com", Token: "12"})
	require.ErrorIs(t, err, ErrInvalidOTP)
}

func newRedisLockout(t *testing.T, maxAttempts int) *security.LockoutTracker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return security.NewLockoutTracker(client, security.LockoutConfig{
		MaxAttempts:     maxAttempts,
		Window:          time.Minute,
		LockoutDuration: time.Minute,
	})
}

func TestLoginLocksOutAfterRepeatedFailures(t *testing.T) {
	lockout := newRedisLockout(t, 3)
	f := newFixture(t, lockout)
	f.register(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "p1"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "account_locked", f.emitter.last().Reason)
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	lockout := newRedisLockout(t, 3)
	f := newFixture(t, lockout)
	f.register(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong"})
		require.Error(t, err)
	}
	_, err := f.svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)

	count, err := lockout.FailedAttempts(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAttemptStateMachine(t *testing.T) {
	att := newAttempt()
	assert.Equal(t, StageUnauthenticated, att.current())

	att.advance(StagePasswordChecked)
	att.reject()
	att.advance(StageTokenIssued)

	assert.Equal(t, StageRejected, att.current())
	assert.Equal(t, "UNAUTHENTICATED -> PASSWORD_CHECKED -> REJECTED", att.String())
}
