package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/workforce-api/internal/capability"
	"github.com/phrazzld/workforce-api/internal/domain"
)

// DeployRequest describes an agent to create.
type DeployRequest struct {
	Name        string
	AgentType   string
	Config      map[string]any
	Description string
}

// Factory builds agent instances for the enabled agent types.
type Factory struct {
	allowed map[domain.AgentType]struct{}
	deps    capability.Dependencies
	now     func() time.Time
}

// NewFactory creates a Factory that accepts only allowedTypes.
// Unknown names in allowedTypes are ignored.
func NewFactory(allowedTypes []string, deps capability.Dependencies) *Factory {
	allowed := make(map[domain.AgentType]struct{}, len(allowedTypes))
	for _, name := range allowedTypes {
		if t, err := domain.ParseAgentType(name); err == nil {
			allowed[t] = struct{}{}
		}
	}
	return &Factory{
		allowed: allowed,
		deps:    deps,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Build validates req and returns a new running instance.
// Returns domain.ErrUnknownAgentType if the type has no capability and
// domain.ErrAgentTypeNotEnabled if the type is disabled.
func (f *Factory) Build(req DeployRequest) (*Instance, error) {
	agentType, err := domain.ParseAgentType(req.AgentType)
	if err != nil {
		return nil, err
	}
	if _, ok := f.allowed[agentType]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentTypeNotEnabled, agentType)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: agent name cannot be empty", domain.ErrValidation)
	}

	ops, err := capability.New(agentType, req.Config, f.deps)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = capability.DefaultDescription(agentType)
	}

	return NewInstance(uuid.New(), name, agentType, description, req.Config, ops, f.now()), nil
}
