// Package http implements the HTTP handlers of the index service. Handlers
// parse and validate requests, delegate to the services package and render
// JSON or RFC 7807 problem responses.
//
// Routes:
//
//	POST /api/v1/indices              compute every index over the request body
//	GET  /api/v1/indices/catalog      list the declared indices
//	GET  /api/v1/indices/catalog/{id} describe one index
//	GET  /api/health                  liveness with runtime and cache stats
//
// Request bodies may be CSV (text/csv), JSON (application/json, an array of
// flat objects) or XLSX. The run can be tuned with the base_start, base_end
// and ranking_limit query parameters.
package http
