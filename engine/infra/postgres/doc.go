// Package postgres provides the PostgreSQL driver implementation for the
// storage layer. This package intentionally contains only driver-specific
// code (connection pool management, scanning helpers, and one repository
// file per domain entity) and must not leak pgx or driver types outside of
// its public API.
package postgres
