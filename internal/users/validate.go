// Package users implements user registration and lookup on top of the
// database layer: input validation, the recently-active tracker and the
// service that ties them together.
package users

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxNameLength is the name length cap applied when no explicit
// limit is configured.
const DefaultMaxNameLength = 255

// ValidationError describes why a submitted value was rejected
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateName checks a decoded request value and returns the cleaned name.
// Checks run in a fixed order so the first failing rule is the one reported:
// presence (nil or empty before trimming), type, emptiness after trimming,
// length, character set. Length is counted in codepoints, not bytes. Control
// characters below 32 are rejected except tab, newline and carriage return.
func ValidateName(raw any, maxLength int) (string, error) {
	if raw == nil || raw == "" {
		return "", &ValidationError{Field: "name", Message: "Name is required"}
	}

	name, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Field: "name", Message: "Name must be a string"}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Message: "Name cannot be empty"}
	}

	if utf8.RuneCountInString(name) > maxLength {
		return "", &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("Name must be no longer than %d characters", maxLength),
		}
	}

	for _, r := range name {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return "", &ValidationError{Field: "name", Message: "Name contains invalid characters"}
		}
	}

	return name, nil
}
