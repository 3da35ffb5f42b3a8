package capability

import (
	"context"
	"fmt"
	"sort"

	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/generation"
)

// Capability executes task operations for one agent.
type Capability interface {
	// Execute runs the operation named by taskType. Returns an error wrapping
	// domain.ErrUnknownTaskType when the operation does not exist.
	Execute(ctx context.Context, taskType string, payload map[string]any) (any, error)

	// Operations lists the supported task types in lexical order.
	Operations() []string
}

// Operation is a single entry of an operation table.
type Operation func(ctx context.Context, payload Values) (map[string]any, error)

// Dependencies carries the collaborators some agent types need.
type Dependencies struct {
	// Generator backs the software_engineer operations. Nil means text
	// generation is unavailable and a placeholder is returned instead.
	Generator generation.Generator

	// ModelName is reported alongside generated output.
	ModelName string
}

// table is a Capability backed by a fixed map of operations.
type table struct {
	agentType domain.AgentType
	ops       map[string]Operation
}

// New builds the capability for agentType using the agent's config.
// Returns domain.ErrUnknownAgentType for unsupported types.
func New(agentType domain.AgentType, config map[string]any, deps Dependencies) (Capability, error) {
	cfg := Values(config)

	var ops map[string]Operation
	switch agentType {
	case domain.AgentTypeDataEntry:
		ops = newDataEntry(cfg).operations()
	case domain.AgentTypeCustomerSupport:
		ops = newCustomerSupport(cfg).operations()
	case domain.AgentTypeSoftwareEngineer:
		ops = newSoftwareEngineer(cfg, deps).operations()
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAgentType, agentType)
	}

	return &table{agentType: agentType, ops: ops}, nil
}

// Execute implements Capability.
func (t *table) Execute(ctx context.Context, taskType string, payload map[string]any) (any, error) {
	op, ok := t.ops[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTaskType, taskType)
	}
	return op(ctx, Values(payload))
}

// Operations implements Capability.
func (t *table) Operations() []string {
	names := make([]string, 0, len(t.ops))
	for name := range t.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultDescription returns the description used when a deploy request
// leaves it empty.
func DefaultDescription(agentType domain.AgentType) string {
	switch agentType {
	case domain.AgentTypeDataEntry:
		return "Extracts, validates, transforms, and enriches structured data"
	case domain.AgentTypeCustomerSupport:
		return "Handles customer tickets, triage, response drafting, and social media customer engagement"
	case domain.AgentTypeSoftwareEngineer:
		return "Generates code, reviews PRs, writes tests, and detects bugs"
	}
	return ""
}
