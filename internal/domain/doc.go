// Package domain contains the core entities of the workforce service: agents,
// tasks and the aggregate metrics derived from them. It holds the task state
// machine and the sentinel errors shared by every layer, and has no
// dependency on storage, transport or the capability implementations.
package domain
