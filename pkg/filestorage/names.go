package filestorage

import (
	"errors"
	"strings"
)

// ErrInvalidFileName is returned when a name fails the rules the
// requested operation enforces (basic or portable).
var ErrInvalidFileName = errors.New("filestorage: invalid name")

// validateBasic enforces the rules every name must satisfy regardless of
// operation: no leading/trailing separator, no consecutive separators, and
// no "." or ".." components. The empty name passes, since it denotes the
// base directory; operations that need a file name reject it themselves.
func validateBasic(name string) error {
	if name == "" {
		return nil // "" denotes the base directory itself; callers special-case it
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return ErrInvalidFileName
	}
	if strings.Contains(name, "//") {
		return ErrInvalidFileName
	}
	for _, c := range strings.Split(name, "/") {
		if c == "" || c == "." || c == ".." {
			return ErrInvalidFileName
		}
	}
	return nil
}

// validatePortable additionally requires every component to use only
// portable characters, matching the stricter rule Create, Rename
// destinations, and CreateDirectory enforce.
func validatePortable(name string) error {
	if err := validateBasic(name); err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	for _, c := range strings.Split(name, "/") {
		if err := validatePortableComponent(c); err != nil {
			return err
		}
	}
	return nil
}

func validatePortableComponent(c string) error {
	if strings.HasPrefix(c, "-") || strings.HasPrefix(c, " ") {
		return ErrInvalidFileName
	}
	if strings.HasSuffix(c, ".") || strings.HasSuffix(c, " ") {
		return ErrInvalidFileName
	}
	if strings.Contains(c, "  ") {
		return ErrInvalidFileName
	}
	for _, r := range c {
		if !isPortableRune(r) {
			return ErrInvalidFileName
		}
	}
	return nil
}

func isPortableRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == '.' || r == ' ':
		return true
	default:
		return false
	}
}
