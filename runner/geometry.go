// File: runner/geometry.go

package runner

import (
	"fmt"
)

// Dim3 is a three component size or index
type Dim3 [3]int

// Product returns the number of elements spanned by d
func (d Dim3) Product() int {
	return d[0] * d[1] * d[2]
}

// Geometry holds the dispatch sizes of a kernel. The global size is always
// GridSize * ThreadBlockSize per dimension, so it stays an exact multiple of
// the thread block size.
type Geometry struct {
	threadBlockSize Dim3
	gridSize        Dim3
	globalOffset    Dim3
}

// NewGeometry returns a single work-item geometry
func NewGeometry() Geometry {
	return Geometry{
		threadBlockSize: Dim3{1, 1, 1},
		gridSize:        Dim3{1, 1, 1},
	}
}

func (g *Geometry) ThreadBlockSize() Dim3 { return g.threadBlockSize }
func (g *Geometry) GridSize() Dim3        { return g.gridSize }
func (g *Geometry) GlobalOffset() Dim3    { return g.globalOffset }

// GlobalSize returns the total work size per dimension
func (g *Geometry) GlobalSize() Dim3 {
	var gs Dim3
	for i := range gs {
		gs[i] = g.gridSize[i] * g.threadBlockSize[i]
	}
	return gs
}

// SetThreadBlockSize sets the work-group size, keeping the grid size
func (g *Geometry) SetThreadBlockSize(d Dim3) error {
	if err := checkDim("thread block size", d, 1); err != nil {
		return err
	}
	g.threadBlockSize = d
	return nil
}

// SetGridSize sets the number of work-groups per dimension
func (g *Geometry) SetGridSize(d Dim3) error {
	if err := checkDim("grid size", d, 0); err != nil {
		return err
	}
	g.gridSize = d
	return nil
}

// SetGlobalOffset sets the starting index of the dispatched range
func (g *Geometry) SetGlobalOffset(d Dim3) error {
	if err := checkDim("global offset", d, 0); err != nil {
		return err
	}
	g.globalOffset = d
	return nil
}

// SetGlobalSize sets the total work size. Each thread block dimension is
// reduced to its greatest common divisor with the requested size, then the
// grid size is derived from it.
func (g *Geometry) SetGlobalSize(d Dim3) error {
	if err := checkDim("global size", d, 0); err != nil {
		return err
	}
	for i := range d {
		g.threadBlockSize[i] = gcd(g.threadBlockSize[i], d[i])
		g.gridSize[i] = d[i] / g.threadBlockSize[i]
	}
	return nil
}

// Dispatch returns the offset+global size vector and the thread block
// vector in the form passed to a backend
func (g *Geometry) Dispatch() ([6]int, [3]int) {
	gs := g.GlobalSize()
	return [6]int{
		g.globalOffset[0], g.globalOffset[1], g.globalOffset[2],
		gs[0], gs[1], gs[2],
	}, [3]int(g.threadBlockSize)
}

func checkDim(what string, d Dim3, lowest int) error {
	for i, v := range d {
		if v < lowest {
			return fmt.Errorf("%s %v: component %d must be at least %d", what, d, i, lowest)
		}
	}
	return nil
}

// gcd(a, 0) == a, so a zero global size keeps the block size
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
