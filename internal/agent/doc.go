// Package agent owns the live set of deployed agents.
//
// An Instance pairs agent metadata with the capability that executes its
// tasks. The Registry holds the live instances in memory and mirrors their
// metadata to an AgentStore so that terminated agents remain visible in
// listings after they leave the live set.
package agent
