// Package api implements the read-only HTTP status API for the Eve door simulator.
//
// This package provides:
//   - Health endpoint reporting the platform state and backend connectivity
//   - History endpoint exposing the aggregate and persisted entries
//   - Device endpoint exposing the door's current attributes
//   - Prometheus scrape endpoint for the simulator metrics
//   - Middleware stack (request ID, logging, recovery)
//
// # Graceful Degradation
//
// The server starts before the door exists. Until the platform has been
// started, device and history endpoints answer 503 and health reports the
// lifecycle state as-is.
//
// The API has no write surface. Commands reach the door over MQTT only.
package api
