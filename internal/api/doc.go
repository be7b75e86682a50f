// Package api implements the HTTP REST API of the pilight gateway.
//
// This package provides:
//   - Catalog inspection (protocol list and single definitions)
//   - One-shot payload validation with structured violations
//   - Catalog replacement, persisted as a revision and swapped in atomically
//   - Rejection audit queries and runtime metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Security
//
// Catalog replacement requires an HS256 bearer token with the
// catalog:write scope when api.auth.secret is set. Read endpoints and
// validation are open.
//
// # Graceful Degradation
//
// The store, audit repository and gateway are optional. Endpoints that
// need a missing dependency answer 503; everything else keeps working.
package api
