package mocks

import (
	"context"
	"fmt"
	"sort"

	"github.com/phrazzld/workforce-api/internal/capability"
	"github.com/phrazzld/workforce-api/internal/domain"
)

// MockCapability implements capability.Capability for testing.
// With no ExecuteFn set it returns Result for every operation in Ops and
// faults with domain.ErrUnknownTaskType for anything else.
type MockCapability struct {
	ExecuteFn func(ctx context.Context, taskType string, payload map[string]any) (any, error)

	Ops    []string
	Result any
}

// Ensure MockCapability implements capability.Capability
var _ capability.Capability = (*MockCapability)(nil)

// Execute implements capability.Capability
func (m *MockCapability) Execute(ctx context.Context, taskType string, payload map[string]any) (any, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, taskType, payload)
	}
	for _, op := range m.Ops {
		if op == taskType {
			return m.Result, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTaskType, taskType)
}

// Operations implements capability.Capability
func (m *MockCapability) Operations() []string {
	ops := append([]string(nil), m.Ops...)
	sort.Strings(ops)
	return ops
}
