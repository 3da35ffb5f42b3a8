// Package metrics derives platform-wide counts and rates from the agent
// registry and task queue, and periodically publishes them to subscribers.
package metrics
