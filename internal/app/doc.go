// Package app wires the index service together: telemetry, the engine,
// services, HTTP handlers and middleware, and the server lifecycle.
//
// Initialization order:
//
//	1. Telemetry providers and business metrics
//	2. Engine built from the engine configuration
//	3. Index and health services
//	4. Router with middleware and handlers
//	5. HTTP server with graceful shutdown
package app
