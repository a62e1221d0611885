package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var tagSerialPattern = regexp.MustCompile(`^[A-Z0-9-]{1,64}$`)

// NormalizeTag trims and upper-cases a compliance serial and checks its shape.
func NormalizeTag(raw string) (string, error) {
	tag := strings.ToUpper(strings.TrimSpace(raw))
	if !tagSerialPattern.MatchString(tag) {
		return "", fmt.Errorf("%w: malformed tag serial %q", ErrInvalidInput, raw)
	}
	return tag, nil
}

// Assignable reports whether the tag can be bound to a plant.
func (t MetrcTag) Assignable() bool {
	return t.Status == TagStatusAvailable
}
