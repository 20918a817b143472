// Package systems implements the per-tick flocking model: neighbor
// aggregation, obstacle probing, force blending, integration and the wander
// cycle. Every function here reads an immutable snapshot of agent state.
package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
)

// AgentState is one agent as seen by the previous tick.
type AgentState struct {
	Pos  r3.Vec
	Vel  r3.Vec
	Role components.Role
}

// IsPredator reports whether the agent is a predator.
func (a AgentState) IsPredator() bool { return a.Role.IsPredator() }
