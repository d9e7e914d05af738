package main

import "math"

const SpatialCellSize = 400.0 // ~2x largest obstacle radius

// EntityRef identifies an entity in the grid
type EntityRef struct {
	Kind byte // 'v'=vehicle, 'o'=obstacle
	Idx  int  // index into the corresponding flat list
}

type cellKey struct{ X, Y int32 }

// SpatialGrid is an unbounded hashed grid on the ground plane for broad-phase queries
type SpatialGrid struct {
	cellSize float64
	cells    map[cellKey][]EntityRef
}

// NewSpatialGrid creates a grid; a non-positive cell size uses SpatialCellSize
func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = SpatialCellSize
	}
	return &SpatialGrid{cellSize: cellSize, cells: make(map[cellKey][]EntityRef)}
}

// Clear resets all cells. Cells already empty at the last clear are dropped, the rest
// keep their capacity.
func (g *SpatialGrid) Clear() {
	for k, c := range g.cells {
		if len(c) == 0 {
			delete(g.cells, k)
			continue
		}
		g.cells[k] = c[:0]
	}
}

func (g *SpatialGrid) cellOf(x, y float64) cellKey {
	return cellKey{int32(math.Floor(x / g.cellSize)), int32(math.Floor(y / g.cellSize))}
}

// Insert adds an entity reference at the given position
func (g *SpatialGrid) Insert(x, y float64, ref EntityRef) {
	k := g.cellOf(x, y)
	g.cells[k] = append(g.cells[k], ref)
}

// InsertCircle adds an entity reference to all cells overlapping its bounding box
func (g *SpatialGrid) InsertCircle(x, y, radius float64, ref EntityRef) {
	lo := g.cellOf(x-radius, y-radius)
	hi := g.cellOf(x+radius, y+radius)
	for cy := lo.Y; cy <= hi.Y; cy++ {
		for cx := lo.X; cx <= hi.X; cx++ {
			k := cellKey{cx, cy}
			g.cells[k] = append(g.cells[k], ref)
		}
	}
}

// Query returns all entity refs in cells that overlap the given bounding box
func (g *SpatialGrid) Query(x, y, radius float64) []EntityRef {
	return g.QueryBuf(x, y, radius, nil)
}

// QueryBuf appends results to buf and returns the extended slice, avoiding per-call allocation.
// An entity spanning several cells is reported once per cell.
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []EntityRef) []EntityRef {
	lo := g.cellOf(x-radius, y-radius)
	hi := g.cellOf(x+radius, y+radius)
	for cy := lo.Y; cy <= hi.Y; cy++ {
		for cx := lo.X; cx <= hi.X; cx++ {
			buf = append(buf, g.cells[cellKey{cx, cy}]...)
		}
	}
	return buf
}
