package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minglehq/mingle/internal/domain"
	"github.com/minglehq/mingle/internal/repository"
)

func newUser(id, username, email string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: []byte("$2a$10$fakehash"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	repo := New()
	ctx := context.Background()
	if err := repo.CreateUser(ctx, newUser("1", "alice", "a@x.com")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.CreateUser(ctx, newUser("2", "alice", "other@x.com"))
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateUserAllowsUnverifiedEmailSiblings(t *testing.T) {
	repo := New()
	ctx := context.Background()
	if err := repo.CreateUser(ctx, newUser("1", "alice", "a@x.com")); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if err := repo.CreateUser(ctx, newUser("2", "alice2", "a@x.com")); err != nil {
		t.Fatalf("create alice2: %v", err)
	}
}

func TestVerifyEmailPurgesUnverifiedSiblings(t *testing.T) {
	repo := New()
	ctx := context.Background()
	for _, u := range []*domain.User{
		newUser("1", "alice", "a@x.com"),
		newUser("2", "alice2", "a@x.com"),
		newUser("3", "bob", "b@x.com"),
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Username, err)
		}
	}

	verified, purged, err := repo.VerifyEmail(ctx, "alice")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.EmailVerified {
		t.Fatalf("expected alice to be verified")
	}
	if purged != 1 {
		t.Fatalf("expected one purged sibling, got %d", purged)
	}
	if _, err := repo.GetUserByUsername(ctx, "alice2"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected alice2 to be deleted, got %v", err)
	}
	if _, err := repo.GetUserByUsername(ctx, "bob"); err != nil {
		t.Fatalf("bob must be untouched: %v", err)
	}

	// Second verification succeeds with nothing left to purge.
	_, purged, err = repo.VerifyEmail(ctx, "alice")
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if purged != 0 {
		t.Fatalf("expected zero purged on re-verify, got %d", purged)
	}
}

func TestVerifyEmailUnknownUser(t *testing.T) {
	repo := New()
	if _, _, err := repo.VerifyEmail(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByEmailPrefersVerifiedRow(t *testing.T) {
	repo := New()
	ctx := context.Background()
	first := newUser("1", "alice", "a@x.com")
	first.CreatedAt = first.CreatedAt.Add(-time.Hour)
	second := newUser("2", "alice2", "a@x.com")
	second.EmailVerified = true
	for _, u := range []*domain.User{first, second} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Username, err)
		}
	}
	got, err := repo.GetUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.Username != "alice2" {
		t.Fatalf("expected verified row to win, got %q", got.Username)
	}
}

func TestSearchUsersMatchesSubstring(t *testing.T) {
	repo := New()
	ctx := context.Background()
	for _, u := range []*domain.User{
		newUser("1", "alice", "a@x.com"),
		newUser("2", "malicia", "m@x.com"),
		newUser("3", "bob", "b@x.com"),
	} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Username, err)
		}
	}
	users, err := repo.SearchUsers(ctx, "ALI", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(users))
	}
	if users[0].Username != "alice" || users[1].Username != "malicia" {
		t.Fatalf("unexpected order: %q, %q", users[0].Username, users[1].Username)
	}
}

func TestUpdateUserEnforcesVerifiedEmailUniqueness(t *testing.T) {
	repo := New()
	ctx := context.Background()
	verified := newUser("1", "alice", "a@x.com")
	verified.EmailVerified = true
	if err := repo.CreateUser(ctx, verified); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	other := newUser("2", "bob", "b@x.com")
	other.EmailVerified = true
	if err := repo.CreateUser(ctx, other); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	other.Email = "a@x.com"
	if err := repo.UpdateUser(ctx, other); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
