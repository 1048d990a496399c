// Package access implements password gates for encrypted posts and albums.
//
// A visitor who enters the right password receives a token bound to the
// item's password_updated_at timestamp. Changing the password moves the
// timestamp, so every previously issued token stops matching without any
// revocation bookkeeping.
package access

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Kinds of gated content.
const (
	KindPost  = "post"
	KindAlbum = "album"
)

// HashPassword hashes a content password with bcrypt.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash content password: %w", err)
	}
	return string(hashed), nil
}

// IsHashed reports whether s already looks like a bcrypt hash.
func IsHashed(s string) bool {
	if len(s) != 60 {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// VerifyPassword checks plain against a stored hash.
func VerifyPassword(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// SessionKey is the session entry holding the verification token for an item.
func SessionKey(kind string, id uint) string {
	return fmt.Sprintf("verified_%s_%d", kind, id)
}

// SessionToken derives the token proving a visitor unlocked an item.
func SessionToken(secret, kind string, id uint, passwordUpdatedAt *time.Time) string {
	var msg string
	if passwordUpdatedAt == nil {
		msg = fmt.Sprintf("%s_%d_none", kind, id)
	} else {
		msg = fmt.Sprintf("%s_%d_%d", kind, id, passwordUpdatedAt.UTC().UnixNano())
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// TokenMatches compares a stored token against the current one in constant time.
func TokenMatches(stored, current string) bool {
	if stored == "" {
		return false
	}
	return hmac.Equal([]byte(stored), []byte(current))
}

// PasswordChange is the outcome of applying a password update to an item.
type PasswordChange struct {
	Hash    string
	Changed bool
}

// ApplyPassword computes the stored password after an update.
//
// encrypted=false clears any password. An empty input keeps the current
// hash. A plaintext input that already verifies against the current hash is
// not treated as a change; anything else is hashed and reported as changed.
func ApplyPassword(currentHash string, encrypted bool, input *string) (PasswordChange, error) {
	if !encrypted {
		return PasswordChange{Hash: "", Changed: currentHash != ""}, nil
	}
	if input == nil || strings.TrimSpace(*input) == "" {
		return PasswordChange{Hash: currentHash}, nil
	}
	in := *input
	if IsHashed(in) {
		return PasswordChange{Hash: in, Changed: in != currentHash}, nil
	}
	if VerifyPassword(currentHash, in) {
		return PasswordChange{Hash: currentHash}, nil
	}
	hashed, err := HashPassword(in)
	if err != nil {
		return PasswordChange{}, err
	}
	return PasswordChange{Hash: hashed, Changed: true}, nil
}
