package security

import (
	"fmt"

	"github.com/cwrk-planet/meeting-service/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt молча обрезает вход длиннее 72 байт, поэтому такие пароли не принимаем.
const maxPasswordBytes = 72

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plain string) (string, error) {
	if len(plain) > maxPasswordBytes {
		return "", fmt.Errorf("%w: password longer than %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Matches сравнивает пароль с хешем; время сравнения не зависит от позиции расхождения.
func (h *PasswordHasher) Matches(hash, plain string) bool {
	if hash == "" || len(plain) > maxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
