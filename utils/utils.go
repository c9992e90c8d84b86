package utils

import "strings"

func ToPtr[T any](v T) *T {
	return &v
}

// NormalizeEmail returns the identity key for an email address.
// An empty result means the address is absent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringValue dereferences s, returning "" for nil
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
