// Package store provides a SQLite-backed catalog of compiled plans, the
// hand-off point to an execution engine.
//
// The catalog holds:
//   - Plans: name, fingerprint, canonical JSON document
//   - Plan nodes: operator kind and canonical config per arena index
//   - Plan edges: endpoints, input port and payload per insertion position
//
// # Critical Patterns
//
// Content addressing:
//   - UNIQUE(fingerprint) on plans
//   - Writing an isomorphic plan again returns the stored record
//
// Logical identity and time:
//   - Plans are ordered by seq INTEGER (logical clock), never timestamps
//   - Plan ids are UUIDv7 in production, fixed in tests
//
// Deterministic query results:
//   - Listing uses ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Fingerprints and canonical JSON come from internal/plan (RFC 8785 and
// SHA-256 with domain separation).
package store
