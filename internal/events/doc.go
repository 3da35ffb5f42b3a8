// Package events fans out platform state changes to live subscribers.
//
// The primary components are:
// - Message: the wire messages (init, agents_update, task_update,
//   metrics_update, pong)
// - Channel: a single subscriber connection, such as a WebSocket
// - Broadcaster: the subscriber table, delivering each message to every
//   live channel and pruning channels whose sends fail
//
// Delivery is best-effort and at most once. Each Channel is responsible for
// serializing its own writes.
package events
