package helper

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes    = 16
	pbkdf2Rounds = 10000
	derivedBytes = 64
)

// Alphabet for generated passphrases: letters and digits only, visually
// ambiguous characters excluded.
const passphraseAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// PolicyError enumerates every strength rule a candidate password violated.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return strings.Join(e.Reasons, " ")
}

// StrengthPolicy mirrors the owasp password strength rules: length bounds,
// no repeated-character runs, and character-class diversity for anything
// shorter than a passphrase.
type StrengthPolicy struct {
	MinLength           int
	MaxLength           int
	PassphraseMinLength int // at or above this length, class rules are waived
}

func DefaultStrengthPolicy() StrengthPolicy {
	return StrengthPolicy{
		MinLength:           10,
		MaxLength:           128,
		PassphraseMinLength: 20,
	}
}

// Check validates raw against the policy. On failure it returns a *PolicyError
// listing every violated rule; callers must not derive a hash for a password
// that fails this check.
func (p StrengthPolicy) Check(raw string) error {
	var reasons []string

	if raw == "" {
		return &PolicyError{Reasons: []string{"The password may not be empty."}}
	}
	if len(raw) < p.MinLength {
		reasons = append(reasons, fmt.Sprintf("The password must be at least %d characters long.", p.MinLength))
	}
	if len(raw) > p.MaxLength {
		reasons = append(reasons, fmt.Sprintf("The password must be fewer than %d characters.", p.MaxLength))
	}
	if hasRepeatRun(raw, 3) {
		reasons = append(reasons, "The password may not contain sequences of three or more repeated characters.")
	}

	if len(raw) < p.PassphraseMinLength {
		var lower, upper, digit, special bool
		for _, r := range raw {
			switch {
			case unicode.IsLower(r):
				lower = true
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsDigit(r):
				digit = true
			default:
				special = true
			}
		}
		if !lower {
			reasons = append(reasons, "The password must contain at least one lowercase letter.")
		}
		if !upper {
			reasons = append(reasons, "The password must contain at least one uppercase letter.")
		}
		if !digit {
			reasons = append(reasons, "The password must contain at least one number.")
		}
		if !special {
			reasons = append(reasons, "The password must contain at least one special character.")
		}
	}

	if len(reasons) > 0 {
		return &PolicyError{Reasons: reasons}
	}
	return nil
}

// DerivePassword generates a fresh random salt and derives a slow salted hash
// from raw. Both return values are base64 for storage. Call this only when a
// raw password is being set or changed.
func DerivePassword(raw string) (salt string, hash string, err error) {
	if raw == "" {
		return "", "", errors.New("password is required")
	}

	sb := make([]byte, saltBytes)
	if _, err := rand.Read(sb); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt = base64.StdEncoding.EncodeToString(sb)

	hash, err = HashWithSalt(raw, salt)
	if err != nil {
		return "", "", err
	}
	return salt, hash, nil
}

// HashWithSalt recomputes the stored-form hash of raw under an existing
// base64 salt.
func HashWithSalt(raw string, salt string) (string, error) {
	sb, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	key := pbkdf2.Key([]byte(raw), sb, pbkdf2Rounds, derivedBytes, sha512.New)
	return base64.StdEncoding.EncodeToString(key), nil
}

// VerifyPassword re-derives the hash with the stored salt and compares it to
// the stored hash in constant time.
func VerifyPassword(raw string, salt string, storedHash string) bool {
	if raw == "" || salt == "" || storedHash == "" {
		return false
	}
	candidate, err := HashWithSalt(raw, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}

// GenerateRandomPassphrase produces a passphrase of length in [20,40] made of
// letters and digits, with no run of three identical characters, validated
// against the default strength policy. Used for seeded accounts only.
func GenerateRandomPassphrase() (string, error) {
	policy := DefaultStrengthPolicy()

	for attempt := 0; attempt < 100; attempt++ {
		length, err := randInt(21)
		if err != nil {
			return "", err
		}
		length += 20

		buf := make([]byte, 0, length)
		for len(buf) < length {
			i, err := randInt(len(passphraseAlphabet))
			if err != nil {
				return "", err
			}
			c := passphraseAlphabet[i]
			if len(buf) >= 2 && buf[len(buf)-1] == c && buf[len(buf)-2] == c {
				continue
			}
			buf = append(buf, c)
		}

		pass := string(buf)
		if err := policy.Check(pass); err != nil {
			continue
		}
		return pass, nil
	}
	return "", errors.New("unable to generate a random passphrase")
}

func hasRepeatRun(s string, n int) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func randInt(max int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
