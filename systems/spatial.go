package systems

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// SpatialGrid buckets agents into uniform cells covering the bounds box.
// Rebuild it once per tick before any scan; scans only read it.
type SpatialGrid struct {
	cellSize float64
	half     r3.Vec // half extents of the covered box
	dims     [3]int
	cells    [][]int // agent indices per cell, ascending
}

// NewSpatialGrid creates a grid covering a box with the given half extents.
func NewSpatialGrid(half r3.Vec, cellSize float64) *SpatialGrid {
	dims := [3]int{
		int(2*half.X/cellSize) + 1,
		int(2*half.Y/cellSize) + 1,
		int(2*half.Z/cellSize) + 1,
	}

	cells := make([][]int, dims[0]*dims[1]*dims[2])
	for i := range cells {
		cells[i] = make([]int, 0, 8) // pre-allocate small capacity
	}

	return &SpatialGrid{
		cellSize: cellSize,
		half:     half,
		dims:     dims,
		cells:    cells,
	}
}

// Clear removes all agents from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Rebuild clears the grid and inserts every agent in index order.
func (g *SpatialGrid) Rebuild(agents []AgentState) {
	g.Clear()
	for i := range agents {
		g.Insert(i, agents[i].Pos)
	}
}

// Insert adds agent idx at pos. Positions outside the box land in edge cells.
func (g *SpatialGrid) Insert(idx int, pos r3.Vec) {
	cx, cy, cz := g.cellCoords(pos)
	c := g.flat(cx, cy, cz)
	g.cells[c] = append(g.cells[c], idx)
}

// QueryInto appends to dst the indices of agents in cells that may lie
// within radius of pos, sorted ascending. Distance is not checked.
func (g *SpatialGrid) QueryInto(dst []int, pos r3.Vec, radius float64) []int {
	reach := int(math.Ceil(radius / g.cellSize))
	if reach < 1 {
		reach = 1
	}
	cx, cy, cz := g.cellCoords(pos)

	for x := max(0, cx-reach); x <= min(g.dims[0]-1, cx+reach); x++ {
		for y := max(0, cy-reach); y <= min(g.dims[1]-1, cy+reach); y++ {
			for z := max(0, cz-reach); z <= min(g.dims[2]-1, cz+reach); z++ {
				dst = append(dst, g.cells[g.flat(x, y, z)]...)
			}
		}
	}
	slices.Sort(dst)
	return dst
}

// Aggregate implements NeighborSource using the grid as a candidate filter.
// Candidates are visited in index order, so results match BruteForce exactly.
func (g *SpatialGrid) Aggregate(idx int, agents []AgentState, p NeighborParams, scratch *Scratch) NeighborSums {
	var local Scratch
	if scratch == nil {
		scratch = &local
	}
	scratch.Candidates = g.QueryInto(scratch.Candidates[:0], agents[idx].Pos, p.VisionRadius)

	var sums NeighborSums
	for _, j := range scratch.Candidates {
		accumulate(&sums, idx, j, agents, p)
	}
	return sums
}

// cellCoords returns the clamped cell coordinates of a position.
func (g *SpatialGrid) cellCoords(pos r3.Vec) (int, int, int) {
	return g.axisCell(pos.X+g.half.X, 0), g.axisCell(pos.Y+g.half.Y, 1), g.axisCell(pos.Z+g.half.Z, 2)
}

func (g *SpatialGrid) axisCell(offset float64, axis int) int {
	c := int(math.Floor(offset / g.cellSize))
	// Clamp to valid range
	if c < 0 {
		return 0
	}
	if c >= g.dims[axis] {
		return g.dims[axis] - 1
	}
	return c
}

func (g *SpatialGrid) flat(x, y, z int) int {
	return (z*g.dims[1]+y)*g.dims[0] + x
}
