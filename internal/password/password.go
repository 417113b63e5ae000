package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the fixed bcrypt work factor used for every stored hash.
const Cost = 12

// Hasher hashes and verifies account passwords.
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher creates a Hasher with the fixed Cost.
func NewHasher() (*Hasher, error) {
	return newHasher(Cost)
}

func newHasher(cost int) (*Hasher, error) {
	// Compared against when the account does not exist, so that lookups of
	// unknown usernames take as long as wrong passwords.
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-0"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &Hasher{cost: cost, dummy: dummy}, nil
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash.
func (h *Hasher) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// VerifyDummy burns one comparison and always reports false.
func (h *Hasher) VerifyDummy(password string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return false
}

// NeedsRehash reports whether hash was produced with a different cost.
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}
