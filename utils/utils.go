// Package utils provides small shared helpers used across the service.
package utils

// ToPtr returns a pointer to the given value
func ToPtr[T any](v T) *T {
	return &v
}

// IsTrue reports whether a nullable bool is set and true
func IsTrue(b *bool) bool {
	return b != nil && *b
}
