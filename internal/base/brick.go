package base

// BrickKey is the triple (timestep, lod, brick_index) that uniquely
// identifies one brick in a dataset (spec.md §3 "Brick key"). brick_index is
// the canonical linearization of 3D brick coordinates within an LOD:
//
//	index = bx + by*Nx(lod) + bz*Nx(lod)*Ny(lod)
//
// BrickKey is comparable and is used directly as a map key (e.g. in the
// dynamic rebricker's LRU cache and the remote source's pending-request
// table).
type BrickKey struct {
	Timestep uint64
	LOD      uint32
	Index    uint64
}

// BrickCoord3D is the unpacked (bx, by, bz) form of a BrickKey.Index within
// one LOD. Packing/unpacking between the two forms is the canonical-order
// formula above; see layout.BrickCoordsToIndex / layout.IndexToBrickCoords.
type BrickCoord3D struct {
	X, Y, Z uint64
}

// BrickMD is the fixed-size metadata record for one brick: its world-space
// center and extents, and its voxel count per axis including ghost overlap
// (spec.md §3 "Brick metadata (BrickMD)").
type BrickMD struct {
	Center     [3]float32
	Extents    [3]float32
	VoxelCount [3]uint32
}
