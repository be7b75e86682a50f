package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/nerrad567/pilight-gateway/internal/gateway"
	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// validateResponse is returned for an accepted payload.
type validateResponse struct {
	Protocol string           `json:"protocol"`
	Payload  protocol.Payload `json:"payload"`
}

// handleValidate validates one payload against the active catalog.
//
// Query parameters:
//   - protocol_as_list: emit the protocol as a single-element list (default true)
//
// Responses: 200 validated payload, 400 malformed or missing protocol,
// 404 unknown protocol, 422 schema violation with the violation list.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	asList := true
	if v := r.URL.Query().Get("protocol_as_list"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "protocol_as_list must be true or false")
			return
		}
		asList = b
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	payload, err := gateway.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeMalformed, "request body must be a JSON object")
		return
	}

	validated, err := s.holder.Validate(payload, asList)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	name, _ := protocol.Discriminator(payload)
	writeJSON(w, http.StatusOK, validateResponse{Protocol: name, Payload: validated})
}

// writeValidationError maps a validation failure to its HTTP response.
func writeValidationError(w http.ResponseWriter, err error) {
	var schemaErr *protocol.SchemaError
	switch {
	case errors.Is(err, protocol.ErrNoRegistry):
		writeUnavailable(w, "no protocol catalog loaded")
	case errors.Is(err, protocol.ErrMissingProtocol):
		writeError(w, http.StatusBadRequest, ErrCodeMissingProtocol, err.Error())
	case errors.Is(err, protocol.ErrUnknownProtocol):
		writeError(w, http.StatusNotFound, ErrCodeUnknownProtocol, err.Error())
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusUnprocessableEntity, Error{
			Status:     http.StatusUnprocessableEntity,
			Code:       ErrCodeSchemaViolation,
			Message:    err.Error(),
			Violations: schemaErr.Violations,
		})
	default:
		writeError(w, http.StatusBadRequest, ErrCodeMalformed, err.Error())
	}
}

// readBody reads the full request body. On failure it writes the error
// response and returns false.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge,
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return nil, false
		}
		writeBadRequest(w, "reading request body failed")
		return nil, false
	}
	return body, true
}
