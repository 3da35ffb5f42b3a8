// Package testdb provides utilities for database integration tests.
// Tests that need PostgreSQL call GetTestDBWithT, which skips the test when
// no database URL is configured and applies the embedded migrations
// otherwise. WithTx gives each test an isolated transaction that is always
// rolled back.
package testdb
