// Package hasher hashes and verifies passwords using bcrypt.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/layer-3/keeper/ports"
)

var _ ports.PasswordHasher = (*Bcrypt)(nil)

// Bcrypt hashes and verifies passwords. Callers must not log or persist plaintext passwords.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a Bcrypt hasher with cost clamped to the range bcrypt accepts.
// Zero or negative cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Bcrypt{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *Bcrypt) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against hash in constant time. It returns nil on a match
// and bcrypt.ErrMismatchedHashAndPassword (or a hash format error) otherwise.
func (h *Bcrypt) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
