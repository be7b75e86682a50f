package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/pilight-gateway/internal/catalogstore"
	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// defaultRevisionLimit caps the revision list when no limit is given.
const defaultRevisionLimit = 20

// replaceCatalogResponse describes the catalog that became active.
type replaceCatalogResponse struct {
	Protocols int                    `json:"protocols"`
	Revision  *catalogstore.Revision `json:"revision,omitempty"`
}

// handleReplaceCatalog parses an uploaded catalog, compiles it, stores it
// as a revision and makes it the active registry.
//
// Query parameters:
//   - format: json, yaml, toml or auto (default auto)
//
// A catalog that fails to parse or compile leaves the active registry untouched.
func (s *Server) handleReplaceCatalog(w http.ResponseWriter, r *http.Request) {
	format, err := protocol.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	cat, err := protocol.ParseCatalog(body, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidCatalog, err.Error())
		return
	}

	reg, err := protocol.NewRegistry(r.Context(), cat,
		protocol.WithLogger(s.logger),
		protocol.WithStrict(s.strict),
	)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		return
	}

	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	resp := replaceCatalogResponse{Protocols: reg.Len()}
	if s.catalogs != nil {
		rev, saveErr := s.catalogs.Save(r.Context(), reg.Catalog(), catalogstore.SourceAPI)
		if saveErr != nil {
			s.logger.Error("failed to store catalog revision", "error", saveErr)
			writeInternalError(w, "failed to store catalog revision")
			return
		}
		rev.Catalog = nil
		resp.Revision = rev
	}

	s.holder.Swap(reg)
	if s.metrics != nil {
		s.metrics.WriteCatalogLoad(reg.Len(), catalogstore.SourceAPI)
	}

	s.logger.Info("protocol catalog replaced",
		"protocols", reg.Len(),
		"subject", subjectFrom(r.Context()),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, http.StatusOK, resp)
}

// handleListRevisions returns stored catalog revisions, newest first.
//
// Query parameters:
//   - limit: max results (default 20)
func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	if s.catalogs == nil {
		writeUnavailable(w, "catalog store not configured")
		return
	}

	limit := defaultRevisionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	revs, err := s.catalogs.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list catalog revisions", "error", err)
		writeInternalError(w, "failed to list catalog revisions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"revisions": revs,
		"count":     len(revs),
	})
}
