package gateway

import "errors"

// Domain errors for the gateway package.
var (
	// ErrUnknownDirection is returned for a direction other than send or receive.
	ErrUnknownDirection = errors.New("gateway: unknown direction")

	// ErrMalformedPayload is returned when a message is not a JSON object.
	ErrMalformedPayload = errors.New("gateway: payload is not a JSON object")
)
