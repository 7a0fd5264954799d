// Package internal holds the coachbook server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses and routing
// - domain: bookings, users and dashboard services with their repository interfaces
// - storage: PostgreSQL repositories and embedded migrations
// - auth, audit, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
