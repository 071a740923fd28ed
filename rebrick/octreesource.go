package rebrick

import (
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
	"github.com/iv3d/brickstore/octree"
)

// OctreeSource adapts an opened *octree.Octree to the rebrick.Source
// capability. Octree exposes Format/Overlap/MaxBrickSize as plain struct
// fields rather than methods, so this thin wrapper is what Rebricker
// actually consumes when carving bricks out of a bricked container
// (spec.md §4.9 "dataset's physical bricks").
type OctreeSource struct {
	O *octree.Octree
}

func NewOctreeSource(o *octree.Octree) *OctreeSource {
	return &OctreeSource{O: o}
}

func (s *OctreeSource) GetBrickData(dst []byte, key base.BrickKey) error {
	return s.O.GetBrickData(dst, key)
}

func (s *OctreeSource) ComputeBrickSize(key base.BrickKey) ([3]uint32, error) {
	return s.O.ComputeBrickSize(key)
}

func (s *OctreeSource) LODCount() int {
	return len(s.O.LODs)
}

func (s *OctreeSource) SourceLOD(lod int) layout.LOD {
	return s.O.LODs[lod]
}

func (s *OctreeSource) Format() base.VoxelFormat {
	return s.O.Format
}

func (s *OctreeSource) Overlap() uint32 {
	return s.O.Overlap
}

func (s *OctreeSource) MaxBrickSize() [3]uint64 {
	return s.O.MaxBrickSize
}
