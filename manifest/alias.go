package manifest

import (
	"fmt"
	"strings"
	"unicode"
)

// ToAlias converts a dependency name to its default import root:
// lower case words joined by hyphens.
// "MyLib" -> "my-lib", "geo_shapes" -> "geo-shapes", "models" -> "models"
func ToAlias(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
			prevLower = false
			continue
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ValidateAlias checks that alias can serve as the first segment of an
// import path.
func ValidateAlias(alias string) error {
	switch {
	case alias == "":
		return fmt.Errorf("empty alias")
	case alias == "." || alias == "..":
		return fmt.Errorf("alias %q is a relative path", alias)
	case strings.ContainsAny(alias, `/\:`):
		return fmt.Errorf("alias %q contains a path separator", alias)
	}
	return nil
}
