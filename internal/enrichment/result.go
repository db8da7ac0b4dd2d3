// Package enrichment collects best-effort dashboard data from sources that
// are allowed to fail: EC2 instance metadata and a text file on disk. No
// function here returns an error; failures become advisory values.
package enrichment

// Result is either a value or the reason it is unavailable.
type Result[T any] struct {
	value  T
	reason string
	ok     bool
}

func OK[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

func Unavailable[T any](reason string) Result[T] {
	return Result[T]{reason: reason}
}

func (r Result[T]) Available() bool { return r.ok }

// Value returns the value, or the zero value when unavailable.
func (r Result[T]) Value() T { return r.value }

// Reason is the advisory shown in place of the value.
func (r Result[T]) Reason() string { return r.reason }
