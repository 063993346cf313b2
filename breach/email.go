package breach

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// ValidateEmail trims surrounding whitespace and checks that the remainder
// looks like local@domain.tld. It returns the trimmed address or an
// *InvalidInputError
func ValidateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", &InvalidInputError{Input: raw, Reason: "email is required"}
	}
	if !emailPattern.MatchString(email) {
		return "", &InvalidInputError{Input: raw, Reason: "malformed email address"}
	}
	return email, nil
}

// MaskEmail hides most of the local part so addresses can be logged:
// "alice@example.com" becomes "a***@example.com"
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// maxUsernameLen bounds usernames sent to providers
const maxUsernameLen = 128

// ValidateUsername trims surrounding whitespace and rejects empty, overlong
// or space-containing usernames
func ValidateUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", &InvalidInputError{Input: raw, Reason: "username is required"}
	case utf8.RuneCountInString(name) > maxUsernameLen:
		return "", &InvalidInputError{Input: raw, Reason: "username is too long"}
	case strings.IndexFunc(name, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0:
		return "", &InvalidInputError{Input: raw, Reason: "username must not contain whitespace"}
	}
	return name, nil
}

// MaskUsername keeps only the first character: "alice" becomes "a***"
func MaskUsername(name string) string {
	if name == "" {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(name)
	return name[:size] + "***"
}
