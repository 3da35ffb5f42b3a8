package task

import "errors"

// Admission errors returned by the WorkerPool and Dispatcher.
var (
	// ErrQueueFull is returned when the worker pool backlog is at capacity.
	ErrQueueFull = errors.New("task backlog is full")

	// ErrPoolStopped is returned when work is submitted after Stop.
	ErrPoolStopped = errors.New("worker pool is stopped")
)
