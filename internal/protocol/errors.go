package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the protocol package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, protocol.ErrUnknownProtocol) {
//	    // reject the payload
//	}
var (
	// ErrLoad is returned when a catalog cannot be read or parsed.
	ErrLoad = errors.New("protocol: catalog load failed")

	// ErrMissingProtocol is returned when a payload has no protocol field.
	ErrMissingProtocol = errors.New("protocol: no protocol specified")

	// ErrUnknownProtocol is returned when the protocol field names a protocol
	// that is not in the catalog.
	ErrUnknownProtocol = errors.New("protocol: unknown protocol")

	// ErrSchemaViolation is returned when a payload does not match the
	// compiled schema of its protocol.
	ErrSchemaViolation = errors.New("protocol: schema violation")
)

// Violation describes a single field that failed validation.
type Violation struct {
	Field    string `json:"field"`
	Reason   string `json:"reason"`
	Expected string `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
}

func (v Violation) String() string {
	if v.Expected == "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Reason)
	}
	return fmt.Sprintf("%s: %s (expected %s, got %s)", v.Field, v.Reason, v.Expected, describe(v.Actual))
}

// Violation reasons.
const (
	ReasonRequired   = "required field missing"
	ReasonMismatch   = "discriminator mismatch"
	ReasonWrongType  = "value does not match declared type"
	ReasonUndeclared = "field not declared by protocol"
)

// SchemaError is returned by Validate when a payload breaks its protocol's
// schema. It lists every violation found, ordered by field name.
type SchemaError struct {
	Protocol   string
	Violations []Violation
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s for %q: %s", ErrSchemaViolation, e.Protocol, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrSchemaViolation.
func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}

// describe renders an observed value with its dynamic type for messages.
func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T(%v)", v, v)
}
