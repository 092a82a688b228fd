package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost applied when none is configured.
const DefaultHashCost = 12

// Hasher hashes and verifies passwords using bcrypt with a fixed,
// deployment-time cost factor.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. Out-of-range costs fall back to
// DefaultHashCost.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return Hasher{cost: cost}
}

// Hash produces a salted one-way hash of the plaintext.
func (h Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(hash), nil
}

// Compare checks the plaintext against a stored hash. It returns false
// on malformed input instead of an error so callers cannot leak hash
// state through error shapes.
func (h Hasher) Compare(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
