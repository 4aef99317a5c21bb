// Package validate holds the input validation and sanitisation primitives
// used at the request boundary. Every function is pure: it either returns a
// normalised value or reports the input as invalid, and never panics on
// malformed input.
package validate

import (
	"crypto/subtle"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)
	slugStrip       = regexp.MustCompile(`[^a-z0-9\-_]`)
	slugCollapse    = regexp.MustCompile(`[\-_]+`)
	phoneStrip      = regexp.MustCompile(`[^0-9+\s\-()]`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9\s\-()]{10,15}$`)
)

// Username reports whether s is a well-formed username: 3-30 characters from
// [A-Za-z0-9_].
func Username(s string) bool {
	return usernamePattern.MatchString(s)
}

// Email validates and normalises an email address. The local part is kept
// as-is; the address must parse as a bare RFC 5322 address (no display name).
func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", false
	}
	return addr.Address, true
}

// URL validates an absolute http(s) URL.
func URL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// Integer parses a base-10 integer.
func Integer(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// IntegerInRange parses a base-10 integer and checks min <= n <= max.
func IntegerInRange(s string, min, max int) (int, bool) {
	n, ok := Integer(s)
	if !ok || n < min || n > max {
		return 0, false
	}
	return n, true
}

// Slug normalises s into a URL-friendly slug: lower-cased, restricted to
// [a-z0-9-_], runs of separators collapsed to a single hyphen, leading and
// trailing separators trimmed. Returns false for an empty result or one
// longer than 200 characters.
func Slug(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-_")
	if s == "" || len(s) > 200 {
		return "", false
	}
	return s, true
}

// Phone validates a phone number: 10-15 digits/formatting characters with an
// optional leading +. Returns the stripped form.
func Phone(s string) (string, bool) {
	s = strings.TrimSpace(phoneStrip.ReplaceAllString(s, ""))
	if !phonePattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// Date validates a strict YYYY-MM-DD date: it must parse and format back to
// the identical string, which rejects shapes like 2024-2-30.
func Date(s string) (string, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil || t.Format("2006-01-02") != s {
		return "", false
	}
	return s, true
}

// Textarea sanitises free-form content and enforces a length cap on the
// sanitised result.
func Textarea(s string, maxLength int, allowHTML bool) (string, bool) {
	s = Sanitize(s, allowHTML)
	if len(s) > maxLength {
		return "", false
	}
	return s, true
}

// TokensEqual compares two tokens in constant time. Used for CSRF token
// validation; an empty candidate never matches a non-empty token.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
