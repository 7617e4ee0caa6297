package emulator

import (
	"github.com/LynnColeArt/guda"
)

// WorkItem identifies one kernel invocation, with the index functions of
// the kernel language. dim is 0, 1 or 2.
type WorkItem struct {
	tid    guda.ThreadID
	offset [3]int
}

func component(d guda.Dim3, dim int) int {
	switch dim {
	case 0:
		return d.X
	case 1:
		return d.Y
	case 2:
		return d.Z
	}
	return 0
}

// GlobalID includes the global offset
func (w WorkItem) GlobalID(dim int) int {
	if dim < 0 || dim > 2 {
		return 0
	}
	return w.offset[dim] + w.GroupID(dim)*w.LocalSize(dim) + w.LocalID(dim)
}

func (w WorkItem) LocalID(dim int) int   { return component(w.tid.ThreadIdx, dim) }
func (w WorkItem) GroupID(dim int) int   { return component(w.tid.BlockIdx, dim) }
func (w WorkItem) LocalSize(dim int) int { return component(w.tid.BlockDim, dim) }
func (w WorkItem) NumGroups(dim int) int { return component(w.tid.GridDim, dim) }

func (w WorkItem) GlobalSize(dim int) int {
	return w.NumGroups(dim) * w.LocalSize(dim)
}

func (w WorkItem) GlobalOffset(dim int) int {
	if dim < 0 || dim > 2 {
		return 0
	}
	return w.offset[dim]
}
