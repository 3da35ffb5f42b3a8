package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownAgent is returned when an operation references an agent id
	// that is not in the live set.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnknownAgentType is returned when a deploy request names a type
	// that has no capability implementation.
	ErrUnknownAgentType = errors.New("unknown agent type")

	// ErrAgentTypeNotEnabled is returned when a deploy request names a known
	// type that is disabled by configuration.
	ErrAgentTypeNotEnabled = errors.New("agent type is not enabled")

	// ErrUnknownTaskType is returned by a capability asked to run an
	// operation it does not support. It surfaces as a failed task.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrCapabilityFault wraps unexpected faults (panics) raised while a
	// capability was executing.
	ErrCapabilityFault = errors.New("capability fault")

	// ErrInvalidTransition is returned when a status update would violate
	// the task state machine.
	ErrInvalidTransition = errors.New("invalid task status transition")
)
