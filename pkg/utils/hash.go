package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const specialSymbols = "!@#$%^&*()_+-={}[]|\\:;\"'<>,.?/~`"

// HashPassword derives a bcrypt hash from the plain password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// StrongPassword requires at least 8 characters and 2 or more special
// symbols.
func StrongPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	special := 0
	for _, ch := range password {
		if strings.ContainsRune(specialSymbols, ch) {
			special++
		}
	}
	return special >= 2
}
