// Package validation implements the platform's request validation layer
// (spec.md §4.4): struct-tag validation for every inbound payload shape, a
// suspicious-content heuristic that runs before sanitization, and a
// bluemonday-backed sanitizer applied to persisted free-text fields.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("platformusername", validateUsername)
	v.RegisterValidation("platformphone", validatePhone)
	v.RegisterValidation("platformemail", validateEmail)
	return v
}

// ValidateStruct validates s against its `validate` struct tags and returns a
// single human-readable message describing the first offending field, per
// spec.md §4.4 ("a single human-readable message describing the first
// offending field").
func ValidateStruct(s interface{}) string {
	err := validate.Struct(s)
	if err == nil {
		return ""
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return "invalid request"
	}

	return formatFieldError(validationErrs[0])
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email", "platformemail":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters/units", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters/units", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "platformusername":
		return "username must be 2-100 characters, letters/digits/underscore only"
	case "platformphone":
		return "phone must be 7-20 characters of digits, spaces, and +-()"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validateUsername enforces spec.md §4.4: 2-100 chars, [A-Za-z0-9_]+.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{2,100}$`)

func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

// validatePhone enforces spec.md §4.4: digits/spaces/+-() only, 7-20 chars.
var phonePattern = regexp.MustCompile(`^[0-9 +\-()]{7,20}$`)

func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

// validateEmail enforces spec.md §4.4's literal lite pattern (not the
// validator library's stricter RFC 5322 "email" tag) plus the 255-char cap.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateEmail(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) <= 255 && emailPattern.MatchString(s)
}

// Suspicious-content heuristic, spec.md §4.4: reject descriptions containing
// <script, javascript:, onerror=, or 100+ consecutive identical characters.
// Runs on the raw payload, before sanitization.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)onerror\s*=`),
}

// IsSuspicious reports whether s trips the suspicious-content heuristic.
func IsSuspicious(s string) bool {
	for _, p := range suspiciousPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return hasLongRun(s, 100)
}

func hasLongRun(s string, run int) bool {
	var prev rune
	count := 0
	for _, r := range s {
		if r == prev {
			count++
			if count >= run {
				return true
			}
		} else {
			prev = r
			count = 1
		}
	}
	return false
}

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips all HTML from free-text fields before persistence, as
// defense-in-depth independent of the suspicious-content verdict.
func Sanitize(s string) string {
	return sanitizer.Sanitize(s)
}

// TrimOrEmpty trims s and returns "" if the trimmed result is empty, per
// spec.md §4.4 ("empty after trimming = missing").
func TrimOrEmpty(s string) string {
	return strings.TrimSpace(s)
}

// WordCount splits s on Unicode whitespace and counts tokens, the
// server-side word-count computation spec.md §4.4/§4.7 mandates (the
// client-supplied count is always ignored).
func WordCount(s string) int {
	return len(strings.Fields(s))
}
