package security

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// алфавит без похожих символов (0/O, 1/l/I), код диктуют голосом
const codeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// MeetingCode генерирует короткий код встречи длины n.
func MeetingCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("meeting code length must be > 0, got %d", n)
	}
	code, err := gonanoid.Generate(codeAlphabet, n)
	if err != nil {
		return "", fmt.Errorf("generate meeting code: %w", err)
	}

	return code, nil
}

func NewID() string {
	return uuid.NewString()
}
