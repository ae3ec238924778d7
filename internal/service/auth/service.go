package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/minglehq/mingle/internal/domain"
	"github.com/minglehq/mingle/internal/mail"
	"github.com/minglehq/mingle/internal/repository"
	"github.com/minglehq/mingle/internal/session"
	"github.com/minglehq/mingle/pkg/config"
	"github.com/minglehq/mingle/pkg/crypto"
	"github.com/minglehq/mingle/pkg/token"
)

var (
	// ErrInvalidToken marks signature, expiry, purpose and revocation
	// failures. Surfaced as a 401 by the HTTP layer.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidCredentials is returned on any login mismatch. Deliberately
	// generic so callers cannot probe which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUsernameTaken rejects registration against an existing username.
	ErrUsernameTaken = errors.New("username already taken")
)

// tokenError carries the underlying verification failure reason while still
// matching ErrInvalidToken.
type tokenError struct {
	reason string
}

func (e *tokenError) Error() string        { return e.reason }
func (e *tokenError) Is(target error) bool { return target == ErrInvalidToken }

func invalidToken(reason string) error {
	return &tokenError{reason: reason}
}

// Service handles registration, email verification, sessions and password
// resets.
type Service struct {
	users   repository.UserRepository
	tokens  token.Issuer
	revoker session.Revoker
	mailer  mail.Sender
	logger  *slog.Logger
	cfg     config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, tokens token.Issuer, revoker session.Revoker, mailer mail.Sender, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, tokens: tokens, revoker: revoker, mailer: mailer, logger: logger, cfg: cfg}
}

// RegisterInput is the already shape-validated signup payload.
type RegisterInput struct {
	Username string
	Password string
	Email    string
}

// Register creates an unverified account and dispatches a verification mail.
// The account write is awaited: no token is issued and no mail sent unless
// the row exists. Mail delivery itself stays best-effort.
func (s Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	hash, err := crypto.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", ErrUsernameTaken
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	s.sendVerification(ctx, user.Username, user.Email)
	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return fmt.Sprintf("Account created for '%s'. Verification e-mail sent...", in.Username), nil
}

// VerifyEmail validates a verification token, marks the account verified and
// purges unverified accounts sharing its email.
func (s Service) VerifyEmail(ctx context.Context, raw string) (string, error) {
	claims, err := s.parse(raw, token.PurposeVerifyEmail)
	if err != nil {
		return "", err
	}
	user, purged, err := s.users.VerifyEmail(ctx, claims.Username)
	if err != nil {
		return "", fmt.Errorf("verify email: %w", err)
	}
	s.logger.Info("email verified", "user_id", user.ID, "username", user.Username, "purged", purged)
	return "Email verification successful!", nil
}

// Login authenticates by username or email and returns the user with a fresh
// session token.
func (s Service) Login(ctx context.Context, login, password string) (*domain.User, string, error) {
	user, err := s.users.GetUserByUsername(ctx, login)
	if errors.Is(err, repository.ErrNotFound) && strings.Contains(login, "@") {
		user, err = s.users.GetUserByEmail(ctx, login)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	signed, err := s.tokens.Issue(user.Username, token.PurposeSession, s.cfg.SessionTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}
	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return user, signed, nil
}

// Logout revokes the presented session token until its natural expiry.
// Lenient: an absent or already-invalid token is not an error, the cookie is
// cleared either way.
func (s Service) Logout(ctx context.Context, raw string) error {
	claims, err := s.parse(raw, token.PurposeSession)
	if err != nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logger.Info("user logged out", "username", claims.Username)
	return nil
}

// Authorize validates a session token, rejects revoked ones, and loads the
// account it names.
func (s Service) Authorize(ctx context.Context, raw string) (*domain.User, *token.Claims, error) {
	claims, err := s.parse(raw, token.PurposeSession)
	if err != nil {
		return nil, nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, nil, invalidToken("session has been logged out")
	}
	user, err := s.users.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, invalidToken("account no longer exists")
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, claims, nil
}

// ForgotPassword issues a password-reset token for the account registered
// under email and mails the reset link.
func (s Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}
	signed, err := s.tokens.Issue(user.Username, token.PurposePasswordReset, s.cfg.ResetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	link := s.cfg.PublicBaseURL + "/users/password_reset?token=" + url.QueryEscape(signed)
	if err := s.mailer.Send(ctx, mail.PasswordResetMessage(user.Email, user.Username, link)); err != nil {
		s.logger.Warn("password reset mail failed", "username", user.Username, "error", err)
	}
	s.logger.Info("password reset initiated", "user_id", user.ID, "username", user.Username)
	return "Password reset e-mail sent...", nil
}

// ResetPassword completes a reset: validates the token and stores the new
// password hash.
func (s Service) ResetPassword(ctx context.Context, raw, newPassword string) error {
	claims, err := s.parse(raw, token.PurposePasswordReset)
	if err != nil {
		return err
	}
	hash, err := crypto.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, claims.Username, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info("password reset completed", "username", claims.Username)
	return nil
}

// SendVerification mails a fresh verification link, used on registration and
// after an email change.
func (s Service) SendVerification(ctx context.Context, username, email string) {
	s.sendVerification(ctx, username, email)
}

func (s Service) sendVerification(ctx context.Context, username, email string) {
	signed, err := s.tokens.Issue(username, token.PurposeVerifyEmail, s.cfg.VerifyTokenTTL)
	if err != nil {
		s.logger.Error("issue verification token failed", "username", username, "error", err)
		return
	}
	link := s.cfg.PublicBaseURL + "/users/email_verify?token=" + url.QueryEscape(signed)
	if err := s.mailer.Send(ctx, mail.VerificationMessage(email, username, link)); err != nil {
		s.logger.Warn("verification mail failed", "username", username, "error", err)
	}
}

func (s Service) parse(raw string, purpose token.Purpose) (*token.Claims, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidToken("token required")
	}
	claims, err := s.tokens.Parse(trimmed)
	if err != nil {
		return nil, invalidToken(err.Error())
	}
	if claims.Purpose != purpose {
		return nil, invalidToken("token issued for a different purpose")
	}
	return claims, nil
}
