// Package mocks provides centralized mock implementations for testing.
//
// Each mock exposes a function field per interface method (for example
// UpsertAgentFn) that a test can set to override behavior, and records the
// calls it receives. The store mocks fall back to a small in-memory
// implementation when no function is set, so tests that only care about
// orchestration can use them without configuration.
//
// Usage:
//
//	agents := mocks.NewMockAgentStore()
//	agents.UpsertAgentFn = func(ctx context.Context, a *domain.Agent) error {
//	    return errors.New("database down")
//	}
//
//	registry := agent.NewRegistry(agents, logger, agent.RegistryConfig{})
package mocks
