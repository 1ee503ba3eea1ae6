package util

// Ptr returns &v, for the optional pointer fields of protocol structs.
func Ptr[T any](v T) *T {
	return &v
}
