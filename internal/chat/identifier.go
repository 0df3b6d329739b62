package chat

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NormalizeID canonicalizes a participant identifier: trimmed and lowercased.
// All lookups, writes and comparisons go through this, so records written by
// different clients converge on one spelling.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ValidateID checks that id (already normalized) is a plausible email-shaped
// identifier.
func ValidateID(id string) error {
	if err := validate.Var(id, "required,email"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}
