// FILE: typeconf/errors.go
package typeconf

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every error returned by the package wraps exactly one of these.
var (
	// ErrRegistration marks programming mistakes in schema or variant definitions.
	ErrRegistration = errors.New("registration error")
	// ErrParse marks malformed command-line input.
	ErrParse = errors.New("parse error")
	// ErrResolution marks select fields whose concrete variant cannot be determined.
	ErrResolution = errors.New("resolution error")
	// ErrMerge marks structural conflicts between configuration trees.
	ErrMerge = errors.New("merge error")
	// ErrInterpolation marks ${scheme:arg} tokens that cannot be evaluated.
	ErrInterpolation = errors.New("interpolation error")
)

// Registration and schema errors.
var (
	ErrDuplicateName = fmt.Errorf("%w: name already registered", ErrRegistration)
	ErrWrongBase     = fmt.Errorf("%w: variant declares a different base", ErrRegistration)
	ErrUnknownBase   = fmt.Errorf("%w: base not defined", ErrRegistration)
	ErrDuplicateDest = fmt.Errorf("%w: destination already defined", ErrRegistration)
	ErrInvalidSchema = fmt.Errorf("%w: invalid schema", ErrRegistration)
)

// Parse errors.
var (
	ErrPositional   = fmt.Errorf("%w: positional arguments are not supported", ErrParse)
	ErrMissingValue = fmt.Errorf("%w: flag requires a value", ErrParse)
	ErrExtraValue   = fmt.Errorf("%w: flag takes a single value", ErrParse)
	ErrUnknownDest  = fmt.Errorf("%w: unknown destination", ErrParse)
)

// Resolution errors.
var (
	ErrMissingName    = fmt.Errorf("%w: select config requires a name", ErrResolution)
	ErrUnknownVariant = fmt.Errorf("%w: unknown option", ErrResolution)
)

// Merge and interpolation errors.
var (
	ErrCollision       = fmt.Errorf("%w: value collides with a table", ErrMerge)
	ErrUnknownScheme   = fmt.Errorf("%w: unknown scheme", ErrInterpolation)
	ErrPresetNotFound  = fmt.Errorf("%w: preset not found", ErrInterpolation)
	ErrUnknownVariable = fmt.Errorf("%w: unknown system variable", ErrInterpolation)
)

// File errors.
var (
	ErrConfigNotFound    = errors.New("configuration file not found")
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)

// ParseError reports the offending token and destination of a command-line failure.
type ParseError struct {
	Token string
	Dest  string
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Dest != "" {
		return fmt.Sprintf("%v (destination %q, token %q)", e.Err, e.Dest, e.Token)
	}
	return fmt.Sprintf("%v (token %q)", e.Err, e.Token)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResolveError reports which select slot failed and why.
type ResolveError struct {
	Path  string
	Base  string
	Value any
	Err   error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	if errors.Is(e.Err, ErrUnknownVariant) {
		return fmt.Sprintf("unknown option for %s at %s: %v", e.Base, path, e.Value)
	}
	return fmt.Sprintf("%v: %s at %s", e.Err, e.Base, path)
}

// Unwrap returns the underlying error.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// MergeError reports the key path where a table and a value met.
type MergeError struct {
	Path []string
	Err  error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	return fmt.Sprintf("%v at %q", e.Err, strings.Join(e.Path, "."))
}

// Unwrap returns the underlying error.
func (e *MergeError) Unwrap() error {
	return e.Err
}
