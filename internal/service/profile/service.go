package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/minglehq/mingle/internal/domain"
	"github.com/minglehq/mingle/internal/repository"
	"github.com/minglehq/mingle/internal/service/auth"
	"github.com/minglehq/mingle/internal/validate"
)

const searchLimit = 25

var errNothingToEdit = errors.New("nothing to edit")

// Service handles profile reads, edits, user search and account deletion.
type Service struct {
	users  repository.UserRepository
	auth   auth.Service
	logger *slog.Logger
}

// New constructs a Service. The auth service is used to dispatch a fresh
// verification mail when an email address changes.
func New(users repository.UserRepository, authSvc auth.Service, logger *slog.Logger) Service {
	return Service{users: users, auth: authSvc, logger: logger}
}

// Get returns the profile of the account identified by userID.
func (s Service) Get(ctx context.Context, userID string) (domain.Profile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return user.Profile(), nil
}

// EditInput carries the optional profile mutations.
type EditInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Edit updates username and/or email. Changing the email demotes the account
// to unverified and sends a new verification mail.
func (s Service) Edit(ctx context.Context, userID string, in EditInput) (domain.Profile, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" && email == "" {
		return domain.Profile{}, errNothingToEdit
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}

	if username != "" && username != user.Username {
		if err := validate.Username(username); err != nil {
			return domain.Profile{}, err
		}
		user.Username = username
	}
	emailChanged := email != "" && email != user.Email
	if emailChanged {
		if err := validate.Email(email); err != nil {
			return domain.Profile{}, err
		}
		user.Email = email
		user.EmailVerified = false
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Profile{}, auth.ErrUsernameTaken
		}
		return domain.Profile{}, fmt.Errorf("update user: %w", err)
	}
	if emailChanged {
		s.auth.SendVerification(ctx, user.Username, user.Email)
	}
	s.logger.Info("profile updated", "user_id", user.ID, "email_changed", emailChanged)
	return user.Profile(), nil
}

// Search returns public profiles whose username contains query.
func (s Service) Search(ctx context.Context, query string) ([]domain.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	users, err := s.users.SearchUsers(ctx, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	profiles := make([]domain.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	return profiles, nil
}

// DeleteAccount removes the account identified by userID.
func (s Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("account deleted", "user_id", userID)
	return nil
}
