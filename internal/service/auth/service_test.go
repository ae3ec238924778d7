package auth

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/minglehq/mingle/internal/mail"
	"github.com/minglehq/mingle/internal/repository"
	"github.com/minglehq/mingle/internal/repository/memory"
	"github.com/minglehq/mingle/internal/session"
	"github.com/minglehq/mingle/pkg/config"
	"github.com/minglehq/mingle/pkg/token"
)

type captureMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	fail     bool
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("relay unreachable")
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *captureMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatalf("no mail captured")
	}
	return m.messages[len(m.messages)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		TokenSecret:     "test-secret",
		SessionTokenTTL: time.Hour,
		VerifyTokenTTL:  time.Hour,
		ResetTokenTTL:   time.Hour,
		BcryptCost:      10,
		PublicBaseURL:   "http://localhost:3000",
	}
}

type fixture struct {
	svc     Service
	users   *memory.Repository
	mailer  *captureMailer
	revoker session.Revoker
	issuer  token.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig()
	users := memory.New()
	mailer := &captureMailer{}
	revoker := session.NewMemoryRevoker()
	t.Cleanup(revoker.Close)
	issuer := token.NewIssuer(cfg.TokenSecret)
	return &fixture{
		svc:     New(users, issuer, revoker, mailer, newLogger(), cfg),
		users:   users,
		mailer:  mailer,
		revoker: revoker,
		issuer:  issuer,
	}
}

// mailToken pulls the signed token out of a verification or reset link.
func mailToken(t *testing.T, msg mail.Message) string {
	t.Helper()
	_, rest, ok := strings.Cut(msg.Body, "token=")
	if !ok {
		t.Fatalf("no token in mail body: %q", msg.Body)
	}
	if idx := strings.IndexByte(rest, '<'); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}

func register(t *testing.T, f *fixture, username, password, email string) {
	t.Helper()
	if _, err := f.svc.Register(context.Background(), RegisterInput{Username: username, Password: password, Email: email}); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

func TestRegisterCreatesUnverifiedAccount(t *testing.T) {
	f := newFixture(t)
	msg, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "pw1secret", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(msg, "alice") {
		t.Fatalf("confirmation does not name the user: %q", msg)
	}

	user, err := f.users.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if user.EmailVerified {
		t.Fatalf("new account must start unverified")
	}
	if string(user.PasswordHash) == "pw1secret" {
		t.Fatalf("plaintext password persisted")
	}

	sent := f.mailer.last(t)
	if sent.To != "a@x.com" {
		t.Fatalf("mail sent to %q", sent.To)
	}
	if !strings.Contains(sent.Body, "/users/email_verify?token=") {
		t.Fatalf("mail has no verification link: %q", sent.Body)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	register(t, f, "alice", "pw1secret", "a@x.com")
	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "pw2secret", Email: "other@x.com"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if f.mailer.count() != 1 {
		t.Fatalf("no mail expected for rejected registration, got %d", f.mailer.count())
	}
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.fail = true
	if _, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "pw1secret", Email: "a@x.com"}); err != nil {
		t.Fatalf("mail delivery is best-effort, register failed: %v", err)
	}
	if _, err := f.users.GetUserByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("account missing after mail failure: %v", err)
	}
}

func TestVerifyEmailFlipsFlagAndPurgesSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "alice", "pw1secret", "a@x.com")
	aliceToken := mailToken(t, f.mailer.last(t))
	register(t, f, "alice2", "pw2secret", "a@x.com")

	msg, err := f.svc.VerifyEmail(ctx, aliceToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if msg != "Email verification successful!" {
		t.Fatalf("unexpected message: %q", msg)
	}

	alice, err := f.users.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("lookup alice: %v", err)
	}
	if !alice.EmailVerified {
		t.Fatalf("alice not verified")
	}
	if _, err := f.users.GetUserByUsername(ctx, "alice2"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected unverified sibling purged, got %v", err)
	}

	// The token is still unexpired; a second click succeeds with nothing
	// left to purge.
	if _, err := f.svc.VerifyEmail(ctx, aliceToken); err != nil {
		t.Fatalf("second verify: %v", err)
	}
}

func TestVerifyEmailRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	register(t, f, "alice", "pw1secret", "a@x.com")
	expired, err := f.issuer.Issue("alice", token.PurposeVerifyEmail, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = f.svc.VerifyEmail(context.Background(), expired)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("reason should mention expiry: %q", err.Error())
	}
}

func TestVerifyEmailRejectsWrongPurpose(t *testing.T) {
	f := newFixture(t)
	register(t, f, "alice", "pw1secret", "a@x.com")
	sessionToken, err := f.issuer.Issue("alice", token.PurposeSession, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.svc.VerifyEmail(context.Background(), sessionToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLoginIssuesSessionToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "alice", "pw1secret", "a@x.com")

	user, signed, err := f.svc.Login(ctx, "alice", "pw1secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %q", user.Username)
	}
	claims, err := f.issuer.Parse(signed)
	if err != nil {
		t.Fatalf("parse session token: %v", err)
	}
	if claims.Purpose != token.PurposeSession {
		t.Fatalf("unexpected purpose: %q", claims.Purpose)
	}

	// Email also works as the login identifier.
	if _, _, err := f.svc.Login(ctx, "a@x.com", "pw1secret"); err != nil {
		t.Fatalf("login by email: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "alice", "pw1secret", "a@x.com")

	if _, _, err := f.svc.Login(ctx, "alice", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := f.svc.Login(ctx, "ghost", "pw1secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "alice", "pw1secret", "a@x.com")
	_, signed, err := f.svc.Login(ctx, "alice", "pw1secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := f.svc.Authorize(ctx, signed); err != nil {
		t.Fatalf("authorize before logout: %v", err)
	}

	if err := f.svc.Logout(ctx, signed); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := f.svc.Authorize(ctx, signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked session to be rejected, got %v", err)
	}
}

func TestLogoutIsLenientAboutBadTokens(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Logout(context.Background(), "not-a-token"); err != nil {
		t.Fatalf("logout must not fail on invalid input: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, "alice", "pw1secret", "a@x.com")

	msg, err := f.svc.ForgotPassword(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if !strings.Contains(msg, "reset") {
		t.Fatalf("unexpected message: %q", msg)
	}
	sent := f.mailer.last(t)
	if !strings.Contains(sent.Body, "/users/password_reset?token=") {
		t.Fatalf("mail has no reset link: %q", sent.Body)
	}

	resetToken := mailToken(t, sent)
	if err := f.svc.ResetPassword(ctx, resetToken, "newsecret1"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, _, err := f.svc.Login(ctx, "alice", "newsecret1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := f.svc.Login(ctx, "alice", "pw1secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.ForgotPassword(context.Background(), "ghost@x.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.mailer.count() != 0 {
		t.Fatalf("no mail expected for unknown email")
	}
}

func TestResetPasswordRejectsVerificationToken(t *testing.T) {
	f := newFixture(t)
	register(t, f, "alice", "pw1secret", "a@x.com")
	verifyToken := mailToken(t, f.mailer.last(t))
	if err := f.svc.ResetPassword(context.Background(), verifyToken, "newsecret1"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
