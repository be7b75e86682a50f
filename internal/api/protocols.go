package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// protocolSummary is one entry of the protocol list.
type protocolSummary struct {
	Name    string   `json:"name"`
	Devices []string `json:"devices"`
	Options []string `json:"options"`
}

// handleListProtocols returns every protocol of the active catalog, sorted by name.
func (s *Server) handleListProtocols(w http.ResponseWriter, _ *http.Request) {
	reg := s.holder.Registry()
	if reg == nil {
		writeUnavailable(w, "no protocol catalog loaded")
		return
	}

	protocols := make([]protocolSummary, 0, reg.Len())
	for _, name := range reg.Names() {
		v, _ := reg.Lookup(name)
		protocols = append(protocols, protocolSummary{
			Name:    name,
			Devices: v.Devices(),
			Options: v.Options(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"protocols": protocols,
		"count":     len(protocols),
	})
}

// handleGetProtocol returns the catalog definition of one protocol.
func (s *Server) handleGetProtocol(w http.ResponseWriter, r *http.Request) {
	reg := s.holder.Registry()
	if reg == nil {
		writeUnavailable(w, "no protocol catalog loaded")
		return
	}

	name := chi.URLParam(r, "name")
	def, ok := reg.Definition(name)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeUnknownProtocol, "unknown protocol "+name)
		return
	}

	writeJSON(w, http.StatusOK, def)
}

// handleGetCatalog returns the active catalog as a document that can be
// uploaded again.
func (s *Server) handleGetCatalog(w http.ResponseWriter, _ *http.Request) {
	reg := s.holder.Registry()
	if reg == nil {
		writeUnavailable(w, "no protocol catalog loaded")
		return
	}
	writeJSON(w, http.StatusOK, reg.Catalog())
}
