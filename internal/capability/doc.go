// Package capability implements the per-agent-type operation tables.
//
// Each agent type owns a closed set of named operations. A Capability looks
// the task type up in its table and runs the matching operation against the
// task payload; an unrecognized task type faults with
// domain.ErrUnknownTaskType. Operations are deterministic apart from the
// software_engineer table, which delegates to a generation.Generator.
package capability
