package auth

import (
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher is the default PasswordHasher
type BcryptHasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     string
}

// NewBcryptHasher returns a hasher with the given cost. A cost outside the
// bcrypt range falls back to the build default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &BcryptHasher{Cost: cost}
}

func (b *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", validationError(map[string]string{"password": "Please enter your password"})
	}

	cost := b.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", validationError(map[string]string{"password": passwordTooLongMessage})
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// Compare runs in constant time with respect to the password. A mismatch
// returns ErrInvalidPassword.
func (b *BcryptHasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return sentinelError(ErrInvalidPassword, nil)
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to compare password hash")
	}
	return nil
}

// burn compares password against a throwaway hash of the same cost so a
// lookup miss takes as long as a wrong password.
func (b *BcryptHasher) burn(password string) {
	b.dummyOnce.Do(func() {
		b.dummy, _ = b.Hash(uuid.NewString())
	})
	if b.dummy != "" {
		_ = bcrypt.CompareHashAndPassword([]byte(b.dummy), []byte(password))
	}
}

type timingEqualizer interface {
	burn(password string)
}
