package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every error produced while resolving, decoding or encoding
// a message matches exactly one of these with errors.Is.
var (
	ErrMalformedFrame     = errors.New("malformed frame")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrUnsupportedVariant = errors.New("unsupported variant")
	ErrSchemaViolation    = errors.New("schema violation")
	ErrSynthesisFailure   = errors.New("synthesis failure")
	ErrMigrationFailure   = errors.New("migration failure")
)

// ErrRegistration is returned for invalid schema definitions at startup.
var ErrRegistration = errors.New("schema registration")

// Error carries enough context to diagnose a failure without the original bytes.
type Error struct {
	Class        error // one of the Err* classes above
	Kind         Kind
	Version      int32
	Field        string
	Namespace    string
	ID           int32
	Discriminant string
	Reason       string
	Cause        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Class.Error())
	if e.Kind != "" {
		fmt.Fprintf(&b, ": kind=%s", e.Kind)
	}
	if e.Version != 0 {
		fmt.Fprintf(&b, " version=%d", e.Version)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	if e.Namespace != "" {
		fmt.Fprintf(&b, " namespace=%s id=%d", e.Namespace, e.ID)
	}
	if e.Discriminant != "" {
		fmt.Fprintf(&b, " discriminant=%q", e.Discriminant)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Cause}
}

// withMessage fills in message identity on errors raised deep in the codec.
func withMessage(err error, kind Kind, version int32) error {
	var se *Error
	if errors.As(err, &se) {
		if se.Kind == "" {
			se.Kind = kind
		}
		if se.Version == 0 {
			se.Version = version
		}
		return se
	}
	return &Error{Class: ErrMalformedFrame, Kind: kind, Version: version, Cause: err}
}

func malformed(field string, cause error) error {
	return &Error{Class: ErrMalformedFrame, Field: field, Cause: cause}
}

func violation(field, reason string) error {
	return &Error{Class: ErrSchemaViolation, Field: field, Reason: reason}
}

func registrationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRegistration, fmt.Sprintf(format, args...))
}
