package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/pilight-gateway/internal/audit"
)

// handleListRejections returns paginated rejected payloads with optional filters.
//
// Query parameters:
//   - direction: send or receive
//   - protocol: filter by protocol name
//   - kind: missing_protocol, unknown_protocol, schema_violation or malformed
//   - since: RFC 3339 timestamp
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListRejections(w http.ResponseWriter, r *http.Request) {
	if s.rejections == nil {
		writeUnavailable(w, "rejection audit not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Direction: q.Get("direction"),
		Protocol:  q.Get("protocol"),
		Kind:      audit.Kind(q.Get("kind")),
	}

	if filter.Kind != "" && !filter.Kind.Valid() {
		writeBadRequest(w, "unknown rejection kind "+q.Get("kind"))
		return
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.rejections.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list rejections", "error", err)
		writeInternalError(w, "failed to list rejections")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
