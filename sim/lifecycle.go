package sim

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
)

// spawnInitialPopulation creates the starting agents. Positions are uniform
// inside the inset box and headings uniform on the sphere, all at cruising
// speed. The first Population.Predators agents are predators.
func (s *Simulation) spawnInitialPopulation() {
	cfg := s.cfg
	inset := cfg.Derived.InsetHalfBounds

	normal := components.NormalRole(components.Factors{
		Coherence: cfg.Factors.Coherence,
		Align:     cfg.Factors.Align,
		Avoid:     cfg.Factors.Avoid,
		Collide:   cfg.Factors.Collide,
		Random:    cfg.Factors.Random,
	})
	predator := components.PredatorRole(components.Factors{
		Coherence: cfg.Predator.Coherence,
		Collide:   cfg.Predator.Collide,
		Random:    cfg.Predator.Random,
	})

	for i := 0; i < cfg.Population.Agents; i++ {
		pos := r3.Vec{
			X: (s.rng.Float64()*2 - 1) * inset[0],
			Y: (s.rng.Float64()*2 - 1) * inset[1],
			Z: (s.rng.Float64()*2 - 1) * inset[2],
		}
		vel := r3.Scale(cfg.Boid.Speed, s.randomDirection())

		role := normal
		if i < cfg.Population.Predators {
			role = predator
		}
		s.spawnAgent(pos, vel, role)
	}
}

// randomDirection returns a unit vector uniform on the sphere.
func (s *Simulation) randomDirection() r3.Vec {
	for {
		v := r3.Vec{X: s.rng.NormFloat64(), Y: s.rng.NormFloat64(), Z: s.rng.NormFloat64()}
		if n := r3.Norm(v); n > 1e-9 {
			return r3.Scale(1/n, v)
		}
	}
}

// spawnAgent creates one agent and registers it with the visual layer.
func (s *Simulation) spawnAgent(pos, vel r3.Vec, role components.Role) ecs.Entity {
	id := s.nextID
	s.nextID++

	p := components.Position{}
	p.Set(pos)
	v := components.Velocity{}
	v.Set(vel)
	boid := components.Boid{
		ID:     id,
		Role:   role,
		Visual: s.visual.Spawn(pos, role.Kind()),
	}

	entity := s.mapper.NewEntity(&p, &v, &boid)
	s.entities = append(s.entities, entity)
	return entity
}
