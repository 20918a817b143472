package sim

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/systems"
)

// parallelThreshold is the minimum agent count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// intent captures one agent's next state, applied after the compute phase.
type intent struct {
	Pos       r3.Vec
	Vel       r3.Vec
	Neighbors int  // sensed neighbors this tick
	Predators int  // sensed predators this tick
	Deviated  bool // steered away from an obstacle or wall
	Blocked   bool // every probe direction was blocked
}

// workChunk represents a range of agents for a worker to process.
type workChunk struct {
	start, end int
}

// parallelState holds the double buffer and the worker pool.
type parallelState struct {
	snapshots []systems.AgentState // previous tick, read-only during compute
	samples   []r3.Vec             // wander sample per agent, valid when wander is active
	wander    bool
	intents   []intent
	scratches []systems.Scratch

	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(workers int) *parallelState {
	if workers < 1 {
		workers = 1
	}
	scratches := make([]systems.Scratch, workers)
	for i := range scratches {
		scratches[i].Candidates = make([]int, 0, 64)
	}
	return &parallelState{
		numWorkers: workers,
		scratches:  scratches,
		snapshots:  make([]systems.AgentState, 0, 512),
		samples:    make([]r3.Vec, 0, 512),
		intents:    make([]intent, 0, 512),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(s *Simulation) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(s, i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(s *Simulation, workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			s.computeChunk(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// takeSnapshot copies every agent's state into the read buffer and draws
// the wander samples. Sampling happens here, single-threaded and in agent
// order, so the RNG sequence does not depend on the worker count.
func (s *Simulation) takeSnapshot(wanderActive bool) {
	p := s.parallel
	p.snapshots = p.snapshots[:0]
	for _, e := range s.entities {
		pos, vel, boid := s.mapper.Get(e)
		p.snapshots = append(p.snapshots, systems.AgentState{
			Pos:  pos.Vec(),
			Vel:  vel.Vec(),
			Role: boid.Role,
		})
	}

	n := len(p.snapshots)
	p.wander = wanderActive
	p.samples = p.samples[:0]
	if wanderActive && s.points.Len() > 0 {
		for i := 0; i < n; i++ {
			p.samples = append(p.samples, s.points.At(s.rng.Intn(s.points.Len())))
		}
	}

	if cap(p.intents) < n {
		p.intents = make([]intent, n)
	}
	p.intents = p.intents[:n]
}

// computeIntents fills one intent per agent from the snapshot.
func (s *Simulation) computeIntents() {
	n := len(s.parallel.snapshots)
	if n == 0 {
		return
	}

	if s.parallel.numWorkers < 2 || n < parallelThreshold {
		s.computeChunk(0, n, &s.parallel.scratches[0])
		return
	}
	s.computeParallel(n)
}

// computeParallel dispatches work to the worker pool.
func (s *Simulation) computeParallel(n int) {
	p := s.parallel
	if !p.running {
		p.startWorkers(s)
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}

		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// computeChunk processes a range of agents. It reads only the snapshot and
// writes only its own slots in the intent buffer.
func (s *Simulation) computeChunk(i0, i1 int, scratch *systems.Scratch) {
	p := s.parallel
	agents := p.snapshots

	for i := i0; i < i1; i++ {
		self := agents[i]

		sums := s.neighbors.Aggregate(i, agents, s.params, scratch)
		probe := s.prober.Probe(self.Pos, self.Vel)

		w := systems.Wander{Active: p.wander && len(p.samples) > 0}
		if w.Active {
			w.Sample = p.samples[i]
		}

		accel := systems.Blend(self, sums, probe.Deviation, w)
		pos, vel := s.motion.Integrate(self.Pos, self.Vel, accel)

		p.intents[i] = intent{
			Pos:       s.bounds.Apply(pos),
			Vel:       vel,
			Neighbors: sums.Count,
			Predators: sums.Predators,
			Deviated:  probe.Index > 0,
			Blocked:   probe.AllBlocked,
		}
	}
}

// applyIntents writes the computed state back to the ECS and the visual
// layer, in agent order.
func (s *Simulation) applyIntents() {
	p := s.parallel
	for i, e := range s.entities {
		in := &p.intents[i]

		pos, vel, boid := s.mapper.Get(e)
		pos.Set(in.Pos)
		vel.Set(in.Vel)
		s.visual.Update(boid.Visual, in.Pos, in.Vel)

		if in.Deviated {
			s.collector.RecordDeviation()
		}
		if in.Blocked {
			s.collector.RecordBlockedProbe()
		}
		if in.Predators > 0 && !boid.Role.IsPredator() {
			s.collector.RecordPredatorEncounter(in.Predators)
		}
	}
}
