package configuration

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by stores when the tenant/id pair is absent or soft-deleted
	ErrNotFound = errors.New("configuration not found")

	// ErrInvalidConfiguration wraps every validation failure
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownRequestType is returned when the request type does not exist for the tenant
	ErrUnknownRequestType = errors.New("unknown request type")

	// ErrInvalidTransition is returned for a status change the lifecycle does not allow
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError lists every problem found in a configuration
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidConfiguration.Error() + ": " + strings.Join(e.Errors, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfiguration
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}
