package domain

import "time"

// User represents a registered account. PasswordHash holds the bcrypt hash;
// the plaintext never reaches this struct.
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  []byte
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile is the externally visible view of a User.
type Profile struct {
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile returns the public view of the user.
func (u *User) Profile() Profile {
	return Profile{
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}
