// Package auth — PIN hashing utilities.
//
// WHY BCRYPT FOR A 4-DIGIT PIN?
// A PIN has only 10,000 possible values, so the hash function being slow is
// the entire defense of a leaked database: at cost 12 (~250ms per attempt)
// exhausting one user's PIN space takes tens of minutes of dedicated CPU,
// versus microseconds with a fast hash. bcrypt also salts automatically —
// two users with the same PIN get different hashes, so one cracked hash
// reveals nothing about the rest of the table.
//
// The online guessing surface is handled separately by the rate limiter on
// the login endpoint.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor: verification on the order of
// hundreds of milliseconds on current server hardware.
const defaultCost = 12

// PINService provides bcrypt hashing and verification of user PINs.
//
// It's a struct (not free functions) so the cost can be injected: tests use
// bcrypt.MinCost and skip the ~250ms per operation.
type PINService struct {
	cost int
}

// NewPINService creates a PINService with the production cost.
func NewPINService() *PINService {
	return &PINService{cost: defaultCost}
}

// NewPINServiceWithCost creates a PINService with a custom cost.
// Tests pass bcrypt.MinCost; anything below defaultCost is too weak for
// production use.
func NewPINServiceWithCost(cost int) *PINService {
	return &PINService{cost: cost}
}

// Hash hashes the given cleartext PIN with bcrypt. The output embeds the
// salt and cost, so it is stored directly as the user's pin_hash column.
func (p *PINService) Hash(pin string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing pin: %w", err)
	}
	return string(hashed), nil
}

// ErrPINMismatch is returned by Verify when the PIN doesn't match the hash.
// Callers translate it into the same error as an unknown username.
var ErrPINMismatch = errors.New("auth: pin does not match")

// Verify re-hashes the cleartext against the stored hash's salt and
// compares. The PIN is never recoverable from the hash.
//
// bcrypt.CompareHashAndPassword is constant-time internally, so response
// timing doesn't reveal how close a guess was.
func (p *PINService) Verify(hash, pin string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPINMismatch
		}
		return fmt.Errorf("auth: comparing pin hash: %w", err)
	}
	return nil
}
