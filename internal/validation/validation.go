// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxCommentLength = 1000
	MaxBioLength     = 500
	maxFilenameBytes = 255
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	colorRegex    = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	filenameStrip = regexp.MustCompile(`[\\/:"*?<>|]`)
)

// ValidatePassword checks that an account password is at least 8 characters
// and mixes letters with digits.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if len(password) > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}
	if !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}
	if len(username) > 30 {
		return fmt.Errorf("username must not exceed 30 characters")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}
	first, last := username[0], username[len(username)-1]
	if first == '_' || first == '-' || last == '_' || last == '-' {
		return fmt.Errorf("username cannot start or end with underscore or hyphen")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("url must include a host")
	}
	return nil
}

// ValidateOptionalURL is ValidateURL that also accepts an empty string or a
// site-relative path such as "/media/logo.png".
func ValidateOptionalURL(raw string) error {
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return nil
	}
	return ValidateURL(raw)
}

// ValidateColor checks a #rgb or #rrggbb color.
func ValidateColor(color string) error {
	if !colorRegex.MatchString(color) {
		return fmt.Errorf("color must be a hex value like #409eff")
	}
	return nil
}

// CleanComment trims and escapes comment text. Comments are plain text only.
func CleanComment(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", fmt.Errorf("comment content cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxCommentLength {
		return "", fmt.Errorf("comment content cannot exceed %d characters", MaxCommentLength)
	}
	return html.EscapeString(trimmed), nil
}

// CleanBio escapes a user bio. Input that is already escaped comes back
// unchanged, and the length limit applies to the stored form.
func CleanBio(bio string) (string, error) {
	if bio == "" {
		return "", nil
	}
	escaped := html.EscapeString(html.UnescapeString(bio))
	if utf8.RuneCountInString(escaped) > MaxBioLength {
		return "", fmt.Errorf("bio cannot exceed %d characters once escaped", MaxBioLength)
	}
	return escaped, nil
}

// SanitizeFilename strips path separators and leading dots, keeping the
// extension when the name has to be shortened.
func SanitizeFilename(name string) string {
	name = filenameStrip.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if len(name) <= maxFilenameBytes {
		return name
	}
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name[:maxFilenameBytes]
	}
	ext := name[dot+1:]
	if len(ext) >= maxFilenameBytes-1 {
		return name[:maxFilenameBytes]
	}
	return name[:maxFilenameBytes-len(ext)-1] + "." + ext
}
