package registry

import (
	"fmt"
	"strings"
	"unicode"
)

// Delimiter separates the segments of a component id.
const Delimiter = "/"

// NormalizeID converts backslash delimiters to forward slashes so that
// "App\Welcome" and "App/Welcome" address the same component.
func NormalizeID(id string) string {
	return strings.ReplaceAll(id, `\`, Delimiter)
}

// ValidateID reports whether id is a well-formed component id: non-empty,
// free of whitespace, with no empty, "." or ".." segment.
func ValidateID(id string) error {
	normalized := NormalizeID(id)
	if normalized == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRegistration)
	}
	if strings.IndexFunc(normalized, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: id %q contains whitespace", ErrInvalidRegistration, id)
	}
	for _, segment := range strings.Split(normalized, Delimiter) {
		switch segment {
		case "":
			return fmt.Errorf("%w: id %q has an empty segment", ErrInvalidRegistration, id)
		case ".", "..":
			return fmt.Errorf("%w: id %q has a relative segment", ErrInvalidRegistration, id)
		}
	}
	return nil
}

// Segments splits an id into its path segments.
func Segments(id string) []string {
	return strings.Split(NormalizeID(id), Delimiter)
}
