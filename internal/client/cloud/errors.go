package cloud

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrZoneNotFound       = errors.New("zone not found")
	ErrUnavailable        = errors.New("cloud service unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAccountUnavailable = errors.New("cloud account not available")
	ErrMalformedDocument  = errors.New("malformed document")
)

// AccountError reports an account that cannot be written to.
type AccountError struct {
	Status AccountStatus
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("cloud account not available (status: %s)", e.Status)
}

func (e *AccountError) Is(target error) bool {
	return target == ErrAccountUnavailable
}

// SchemaError means the backend refused to create a record type because it
// runs with a locked production schema.
type SchemaError struct {
	RecordType string
	Err        error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("cloud schema is not provisioned for record type %q: deploy the schema to production "+
		"or run the server in the development environment (%v)", e.RecordType, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaNotProvisioned reports whether err carries the backend's
// schema-not-provisioned message.
func IsSchemaNotProvisioned(err error) bool {
	if err == nil {
		return false
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Cannot create new type") && strings.Contains(msg, "production schema")
}

// EnrichError wraps a schema-not-provisioned failure in *SchemaError and
// returns anything else unchanged.
func EnrichError(err error, recordType string) error {
	if err == nil {
		return nil
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return err
	}
	if IsSchemaNotProvisioned(err) {
		return &SchemaError{RecordType: recordType, Err: err}
	}
	return err
}
