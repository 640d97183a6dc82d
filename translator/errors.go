package translator

import (
	"errors"
	"fmt"

	"github.com/Mmx233/ProtoBridge/schema"
)

var (
	ErrClosed          = errors.New("translator: closed")
	ErrNotNegotiated   = errors.New("translator: version not negotiated")
	ErrUnknownProtocol = errors.New("translator: protocol version not supported")
)

// FatalError ends the connection. Once returned, every later call on the
// same translator returns it again.
type FatalError struct {
	Direction schema.Direction
	Kind      schema.Kind
	Err       error
}

func (e *FatalError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("translator: fatal %s failure: %v", e.Direction, e.Err)
	}
	return fmt.Sprintf("translator: fatal %s failure on %s: %v", e.Direction, e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// reason names the failure class of err for logs and metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, schema.ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(err, schema.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, schema.ErrUnsupportedVariant):
		return "unsupported_variant"
	case errors.Is(err, schema.ErrSchemaViolation):
		return "schema_violation"
	case errors.Is(err, schema.ErrSynthesisFailure):
		return "synthesis_failure"
	case errors.Is(err, schema.ErrMigrationFailure):
		return "migration_failure"
	default:
		return "handler"
	}
}
