// Package services sits between the HTTP handlers and the index engine.
// Handlers parse requests and render responses; services turn validated
// requests into engine runs and assemble health information.
package services
