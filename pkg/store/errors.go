package store

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNotForm is returned when a body field is added to a request whose
	// body type is not form-data or x-www-form-urlencoded.
	ErrNotForm = errors.New("body fields need a form body type")
	ErrNoProxy = errors.New("no proxy configured")
)

// ValidationError lists every problem found in user input, such as an
// imported collections file or a collection name.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func invalid(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}
