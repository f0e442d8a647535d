package lazyjson

import "os"

// Option is a functional option for configuring a Manager.
type Option[T any] func(*options[T])

// WithIndent sets the indentation string for JSON output.
// Use "" for compact JSON. Default is two spaces.
func WithIndent[T any](indent string) Option[T] {
	return func(o *options[T]) {
		o.indent = indent
	}
}

// WithFileMode sets the file permissions for the JSON file.
// Default is 0644.
func WithFileMode[T any](mode os.FileMode) Option[T] {
	return func(o *options[T]) {
		o.fileMode = mode
	}
}

// WithDefaultValue provides the value used when the file doesn't exist.
// If not provided, the zero value of type T is used.
func WithDefaultValue[T any](fn func() *T) Option[T] {
	return func(o *options[T]) {
		o.defaultValue = fn
	}
}

// WithRemoveWhenEmpty makes Save delete the file instead of writing it
// whenever empty reports true for the current data.
func WithRemoveWhenEmpty[T any](empty func(*T) bool) Option[T] {
	return func(o *options[T]) {
		o.isEmpty = empty
	}
}
