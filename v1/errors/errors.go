// Package errors defines the shared error values of go-redlock.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput reports an empty resource name or a non-positive TTL.
	// It is detected before any network activity and is never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoInstances reports coordinator construction without storage instances.
	ErrNoInstances = errors.New("no instances configured")
	// ErrInvalidLock reports a malformed lock handle passed to Unlock or Extend.
	ErrInvalidLock = errors.New("invalid lock")

	// ErrUnableToAcquire reports that no attempt reached quorum with positive
	// validity within the retry budget.
	ErrUnableToAcquire = errors.New("unable to acquire lock")
	// ErrUnableToExtend reports that a lease extension never reached quorum
	// within the retry budget.
	ErrUnableToExtend = errors.New("unable to extend lock")

	// ErrResourceLocked is returned by an instance when the resource key is
	// already held by another token.
	ErrResourceLocked = errors.New("resource locked")
	// ErrInvalidLease is returned by an instance when the resource key does not
	// hold the caller's token, typically after expiry and re-acquisition.
	ErrInvalidLease = errors.New("invalid or expired lease")
)

// MultiError aggregates the per-instance errors of a single quorum attempt.
type MultiError struct {
	Errors []error
}

// Push appends err to the aggregate.
func (m *MultiError) Push(err error) {
	m.Errors = append(m.Errors, err)
}

// Reset drops all collected errors.
func (m *MultiError) Reset() {
	m.Errors = m.Errors[:0]
}

// Len reports the number of collected errors.
func (m *MultiError) Len() int {
	return len(m.Errors)
}

// Includes reports whether any collected error matches target per errors.Is.
func (m *MultiError) Includes(target error) bool {
	for _, err := range m.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (m *MultiError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:", len(m.Errors))
	for _, err := range m.Errors {
		fmt.Fprintf(&b, "\n\t* %s", err)
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
