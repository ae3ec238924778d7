package crypto

import "golang.org/x/crypto/bcrypt"

// MinCost is the lowest accepted bcrypt work factor. Configured costs below
// this are raised to it so a misconfigured environment never weakens hashes.
const MinCost = 10

// HashPassword hashes plaintext using bcrypt with the given cost.
func HashPassword(plain string, cost int) ([]byte, error) {
	if cost < MinCost {
		cost = MinCost
	}
	return bcrypt.GenerateFromPassword([]byte(plain), cost)
}

// ComparePassword compares plaintext to hashed secret.
func ComparePassword(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}
