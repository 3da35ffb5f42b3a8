// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package.
// It handles query execution, JSONB encoding of free-form agent config and
// task payloads, the mapping of driver errors to store errors, and the
// embedded goose migrations that create the schema.
package postgres
