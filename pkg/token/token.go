package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes a token to the single flow it was minted for. A verification
// token can never be presented as a session and vice versa.
type Purpose string

const (
	PurposeSession       Purpose = "session"
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposePasswordReset Purpose = "password_reset"
)

// Claims defines the JWT payload carried by every Mingle token.
type Claims struct {
	Username string  `json:"username"`
	Purpose  Purpose `json:"purpose"`
	jwtlib.RegisteredClaims
}

// Issuer signs and verifies tokens with a process-wide secret handed in at
// construction.
type Issuer struct {
	secret []byte
	name   string
}

// NewIssuer constructs an Issuer for the given signing secret.
func NewIssuer(secret string) Issuer {
	return Issuer{secret: []byte(secret), name: "mingle"}
}

// Issue produces a signed HS256 token for username, scoped to purpose and
// expiring after ttl. Each token carries a unique ID so it can be revoked.
func (i Issuer) Issue(username string, purpose Purpose, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Purpose:  purpose,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.name,
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

// Parse validates signature and expiry and extracts claims from raw. Malformed
// input is reported as an error, never a panic.
func (i Issuer) Parse(raw string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(raw, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return i.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}
