// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the registry and task queue, allowing orchestration logic to remain
// independent of specific database technologies or persistence details.
package store
