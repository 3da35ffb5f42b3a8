// Package api handles incoming HTTP and WebSocket requests: routing
// parameters, request validation and response formatting. It adapts the
// agent registry, task dispatcher and event broadcaster to the wire.
package api
