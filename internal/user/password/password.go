package password

import (
	"errors"

	"github.com/smallbiznis/proppass/internal/config"
	"golang.org/x/crypto/bcrypt"
)

const MinLength = 8

var ErrTooShort = errors.New("invalid_password")

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

type bcryptHasher struct {
	cost int
}

// NewHasher returns a bcrypt hasher using the configured work factor.
func NewHasher(cfg config.Config) Hasher {
	return NewBcrypt(cfg.PasswordBcryptCost)
}

func NewBcrypt(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrTooShort
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *bcryptHasher) Verify(password, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}
