package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost    = 10
	SaltLength           = 22
	MinStrongPasswordLen = 12

	// Characters used by GenerateStrongPassword: digits, lower and upper
	// case letters, and a handful of symbols.
	strongPasswordChars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!@#$%^&*?"

	// Resampling in GenerateStrongPassword converges in a handful of
	// rounds; the cap exists so a broken format rule cannot spin forever.
	maxGenerateAttempts = 100
)

// ErrWeakPasswordGeneration is returned when GenerateStrongPassword cannot
// produce a password satisfying the format rules within its attempt bound.
var ErrWeakPasswordGeneration = errors.New("could not generate a password meeting format requirements")

// HashPassword hashes a password with bcrypt at the given cost. The salt
// and cost are embedded in the output, so verification is self-describing.
// A cost of 0 selects DefaultBcryptCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword verifies a password against a bcrypt hash. The comparison
// is constant-time with respect to the password. Returns nil on match.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// RandomString returns length characters drawn from the base64 alphabet
// using a cryptographically secure source. length is clamped to a minimum
// of 1.
func RandomString(length int) (string, error) {
	if length < 1 {
		length = 1
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	// base64 yields a longer string than needed; cut it to size
	return base64.StdEncoding.EncodeToString(bytes)[:length], nil
}

// MakeSalt returns a 22-character salt suitable for bcrypt. bcrypt's salt
// alphabet has no '+', so it is mapped to '.'.
func MakeSalt() (string, error) {
	randStr, err := RandomString(SaltLength)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(randStr, "+", "."), nil
}

// GenerateStrongPassword samples length characters uniformly from a fixed
// alphabet until the result passes HasValidPasswordFormat. Returns
// ErrWeakPasswordGeneration if no acceptable password is found within the
// attempt bound.
func GenerateStrongPassword(length int) (string, error) {
	if length < 1 {
		length = MinStrongPasswordLen
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		var sb strings.Builder
		sb.Grow(length)
		for i := 0; i < length; i++ {
			idx, err := cryptoRandIntn(len(strongPasswordChars))
			if err != nil {
				return "", fmt.Errorf("failed to generate password: %w", err)
			}
			sb.WriteByte(strongPasswordChars[idx])
		}
		password := sb.String()
		if HasValidPasswordFormat(password) {
			return password, nil
		}
	}

	return "", ErrWeakPasswordGeneration
}

// HasValidPasswordFormat reports whether a password meets the minimum
// format requirements: at least MinStrongPasswordLen characters with at
// least one uppercase letter, one lowercase letter, one digit, and one
// symbol.
func HasValidPasswordFormat(password string) bool {
	if len(password) < MinStrongPasswordLen {
		return false
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSymbol := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	return hasUpper && hasLower && hasDigit && hasSymbol
}

// cryptoRandIntn returns a secure random number in [0, max).
// Uses crypto/rand instead of math/rand for security-sensitive operations.
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}
