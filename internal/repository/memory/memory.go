package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minglehq/mingle/internal/domain"
	"github.com/minglehq/mingle/internal/repository"
)

// Repository is an in-memory UserRepository used by tests and local runs
// without a database. It enforces the same uniqueness rules as the Postgres
// schema: unique usernames, and at most one verified account per email.
type Repository struct {
	mu    sync.RWMutex
	users map[string]domain.User // keyed by ID
}

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{users: make(map[string]domain.User)}
}

var _ repository.UserRepository = (*Repository)(nil)

func (r *Repository) violates(candidate domain.User) bool {
	for id, u := range r.users {
		if id == candidate.ID {
			continue
		}
		if u.Username == candidate.Username {
			return true
		}
		if candidate.EmailVerified && u.EmailVerified && u.Email == candidate.Email {
			return true
		}
	}
	return false
}

// CreateUser inserts an account.
func (r *Repository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.violates(*user) {
		return repository.ErrDuplicate
	}
	r.users[user.ID] = *user
	return nil
}

// GetUserByID retrieves an account by identifier.
func (r *Repository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

// GetUserByUsername fetches an account by username.
func (r *Repository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetUserByEmail fetches an account by email, preferring the verified row.
func (r *Repository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var match *domain.User
	for _, u := range r.users {
		if u.Email != email {
			continue
		}
		u := u
		switch {
		case match == nil:
			match = &u
		case u.EmailVerified && !match.EmailVerified:
			match = &u
		case u.EmailVerified == match.EmailVerified && u.CreatedAt.Before(match.CreatedAt):
			match = &u
		}
	}
	if match == nil {
		return nil, repository.ErrNotFound
	}
	return match, nil
}

// VerifyEmail marks username verified and purges unverified same-email rows.
func (r *Repository) VerifyEmail(_ context.Context, username string) (*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *domain.User
	for id := range r.users {
		if r.users[id].Username == username {
			u := r.users[id]
			target = &u
			break
		}
	}
	if target == nil {
		return nil, 0, repository.ErrNotFound
	}

	target.EmailVerified = true
	target.UpdatedAt = time.Now().UTC()
	if r.violates(*target) {
		return nil, 0, repository.ErrDuplicate
	}
	r.users[target.ID] = *target

	var purged int64
	for id, u := range r.users {
		if id != target.ID && u.Email == target.Email && !u.EmailVerified {
			delete(r.users, id)
			purged++
		}
	}
	return target, purged, nil
}

// UpdateUser rewrites the mutable account fields.
func (r *Repository) UpdateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Username = user.Username
	stored.Email = user.Email
	stored.EmailVerified = user.EmailVerified
	stored.UpdatedAt = time.Now().UTC()
	if r.violates(stored) {
		return repository.ErrDuplicate
	}
	r.users[user.ID] = stored
	return nil
}

// UpdatePassword stores a new password hash for username.
func (r *Repository) UpdatePassword(_ context.Context, username string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.Username == username {
			u.PasswordHash = append([]byte(nil), hash...)
			u.UpdatedAt = time.Now().UTC()
			r.users[id] = u
			return nil
		}
	}
	return repository.ErrNotFound
}

// DeleteUser removes an account by identifier.
func (r *Repository) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// SearchUsers returns accounts whose username contains query, case-insensitively.
func (r *Repository) SearchUsers(_ context.Context, query string, limit int) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(query)
	var users []domain.User
	for _, u := range r.users {
		if strings.Contains(strings.ToLower(u.Username), needle) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
