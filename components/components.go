// Package components defines ECS components for the simulation.
package components

// Kind identifies the role of an agent.
type Kind uint8

const (
	KindBoid     Kind = iota // ordinary flocking agent
	KindPredator             // chases the flock, flocks flee it
)

// String returns the display name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBoid:
		return "boid"
	case KindPredator:
		return "predator"
	}
	return "unknown"
}

// Factors are the per-agent steering weights.
type Factors struct {
	Coherence float64 `json:"coherence"`
	Align     float64 `json:"align"`
	Avoid     float64 `json:"avoid"`
	Collide   float64 `json:"collide"`
	Random    float64 `json:"random"`
}

// Role pairs a kind with the factors valid for it.
// Build it with NormalRole or PredatorRole; the zero value is an ordinary
// agent that ignores every steering term.
type Role struct {
	kind    Kind
	factors Factors
}

// NormalRole returns the role of an ordinary flocking agent.
func NormalRole(f Factors) Role {
	return Role{kind: KindBoid, factors: f}
}

// PredatorRole returns the role of a predator. Predators do not align with
// or separate from their neighbors, so those weights are forced to zero.
func PredatorRole(f Factors) Role {
	f.Align = 0
	f.Avoid = 0
	return Role{kind: KindPredator, factors: f}
}

// Kind returns the role's kind.
func (r Role) Kind() Kind { return r.kind }

// Factors returns the role's steering weights.
func (r Role) Factors() Factors { return r.factors }

// IsPredator reports whether the role is a predator.
func (r Role) IsPredator() bool { return r.kind == KindPredator }

// VisualHandle identifies an agent's avatar in the host's rendering layer.
type VisualHandle uint64

// Boid holds per-agent identity and behavior.
type Boid struct {
	ID     uint32
	Role   Role
	Visual VisualHandle
}
