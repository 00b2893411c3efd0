package calendar

import (
	"fmt"
)

// ErrFilteredOut is the error reported when the privacy filter rejects an event
const ErrFilteredOut = "Event filtered out by privacy settings"

// Result is the tagged outcome of a provider mapping.
// Mappers report failures through Result instead of returning errors or panicking.
type Result[T any] struct {
	Success  bool     `json:"success"`
	Data     T        `json:"data,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK builds a successful result
func OK[T any](data T, warnings ...string) Result[T] {
	return Result[T]{Success: true, Data: data, Warnings: warnings}
}

// Fail builds a failed result
func Fail[T any](format string, args ...interface{}) Result[T] {
	return Result[T]{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Filtered reports whether the result is a privacy filter rejection
func (r Result[T]) Filtered() bool {
	return !r.Success && r.Error == ErrFilteredOut
}

// Guard runs fn and converts a panic inside it into a failed result
func Guard[T any](fn func() Result[T]) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = Fail[T]("transformation failed: %v", r)
		}
	}()
	return fn()
}
