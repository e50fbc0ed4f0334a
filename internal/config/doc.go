// Package config loads the application configuration.
//
// Values are layered, lowest precedence first:
//
//	1. Default()
//	2. a YAML file (explicit path, or config.yaml / configs/config.yaml)
//	3. environment variables prefixed LAE_
//
// Environment variables follow the struct nesting:
//
//	LAE_SERVER_PORT=9000
//	LAE_ENGINE_MAX_CONCURRENCY=4
//	LAE_ENGINE_REDUCER_TIMEOUT=2s
//	LAE_ENGINE_BASE_START=2024-01-01
//	LAE_LOGGING_LEVEL=debug
//
// Load validates the merged result with struct tags and rejects out-of-range
// values, unknown timezones and inverted base periods.
package config
