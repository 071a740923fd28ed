package rebrick_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
	"github.com/iv3d/brickstore/rebrick"
)

// fakeSource is a single-LOD in-memory dataset used to exercise the
// rebricker without an on-disk octree.
type fakeSource struct {
	lod    layout.LOD
	sbs    [3]uint64
	data   map[base.BrickKey][]byte
	format base.VoxelFormat
}

func (f *fakeSource) GetBrickData(dst []byte, key base.BrickKey) error {
	copy(dst, f.data[key])
	return nil
}
func (f *fakeSource) ComputeBrickSize(key base.BrickKey) ([3]uint32, error) {
	return [3]uint32{uint32(f.sbs[0]), uint32(f.sbs[1]), uint32(f.sbs[2])}, nil
}
func (f *fakeSource) LODCount() int                 { return 1 }
func (f *fakeSource) SourceLOD(lod int) layout.LOD  { return f.lod }
func (f *fakeSource) Format() base.VoxelFormat      { return f.format }
func (f *fakeSource) Overlap() uint32               { return 0 }
func (f *fakeSource) MaxBrickSize() [3]uint64       { return f.sbs }

func newFakeSource(brickCount [3]uint64, sbs [3]uint64) *fakeSource {
	lod := layout.LOD{
		PixelSize:  [3]uint64{brickCount[0] * sbs[0], brickCount[1] * sbs[1], brickCount[2] * sbs[2]},
		BrickCount: brickCount,
	}
	f := &fakeSource{lod: lod, sbs: sbs, data: make(map[base.BrickKey][]byte), format: base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1}}
	brickBytes := int(sbs[0]) * int(sbs[1]) * int(sbs[2])
	var idx uint64
	for z := uint64(0); z < brickCount[2]; z++ {
		for y := uint64(0); y < brickCount[1]; y++ {
			for x := uint64(0); x < brickCount[0]; x++ {
				key := base.BrickKey{LOD: 0, Index: idx}
				data := make([]byte, brickBytes)
				for i := range data {
					data[i] = byte((idx*7 + uint64(i)) % 256)
				}
				f.data[key] = data
				idx++
			}
		}
	}
	return f
}

// newFakeSourceU16 builds a single-component u16 fake source, for the
// precompute min/max side-cache scenario (spec.md §8 scenario 4).
func newFakeSourceU16(brickCount [3]uint64, sbs [3]uint64) *fakeSource {
	lod := layout.LOD{
		PixelSize:  [3]uint64{brickCount[0] * sbs[0], brickCount[1] * sbs[1], brickCount[2] * sbs[2]},
		BrickCount: brickCount,
	}
	f := &fakeSource{lod: lod, sbs: sbs, data: make(map[base.BrickKey][]byte), format: base.VoxelFormat{Type: base.ComponentU16, ComponentCount: 1}}
	voxels := int(sbs[0]) * int(sbs[1]) * int(sbs[2])
	var idx uint64
	for z := uint64(0); z < brickCount[2]; z++ {
		for y := uint64(0); y < brickCount[1]; y++ {
			for x := uint64(0); x < brickCount[0]; x++ {
				key := base.BrickKey{LOD: 0, Index: idx}
				data := make([]byte, voxels*2)
				for i := 0; i < voxels; i++ {
					v := uint16((idx*131 + uint64(i)) % 4096)
					data[2*i] = byte(v)
					data[2*i+1] = byte(v >> 8)
				}
				f.data[key] = data
				idx++
			}
		}
	}
	return f
}

func TestPrecomputeSideCache(t *testing.T) {
	sbs := [3]uint64{2, 2, 2}
	src := newFakeSourceU16([3]uint64{4, 4, 4}, sbs)

	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "volume.raw")
	require.NoError(t, os.WriteFile(sourcePath, []byte("placeholder"), 0o644))

	r, err := rebrick.New(src, sbs, 1<<20, rebrick.MinMaxPrecompute, nil, sourcePath)
	require.NoError(t, err)

	cachePath := filepath.Join(dir, rebrick.SideCacheFilename(sbs, "volume.raw"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Name() == filepath.Base(cachePath) {
			found = true
		}
	}
	require.True(t, found, "expected side-cache file %s", cachePath)

	info, err := os.Stat(cachePath)
	require.NoError(t, err)
	// header (16 bytes) + 64 bricks * 40 bytes/record.
	require.Equal(t, int64(16+64*40), info.Size())

	min, max, err := r.MinMax(base.BrickKey{LOD: 0, Index: 0}, nil)
	require.NoError(t, err)
	require.True(t, max >= min)

	// A second construction against the same files must read the cache
	// rather than re-scan: corrupt the source's in-memory voxel data and
	// confirm MinMax still reports the cached (now stale, but unchanged)
	// extrema instead of erroring or recomputing from the corrupted bytes.
	for _, b := range src.data {
		for i := range b {
			b[i] = 0xFF
		}
	}
	r2, err := rebrick.New(src, sbs, 1<<20, rebrick.MinMaxPrecompute, nil, sourcePath)
	require.NoError(t, err)
	min2, max2, err := r2.MinMax(base.BrickKey{LOD: 0, Index: 0}, nil)
	require.NoError(t, err)
	require.Equal(t, min, min2)
	require.Equal(t, max, max2)
}

func TestIdentityRebrick(t *testing.T) {
	sbs := [3]uint64{4, 4, 4}
	src := newFakeSource([3]uint64{2, 1, 1}, sbs)
	r, err := rebrick.New(src, sbs, 1<<20, rebrick.MinMaxDynamic, nil, "")
	require.NoError(t, err)

	dst := make([]byte, 4*4*4)
	require.NoError(t, r.GetBrick(dst, base.BrickKey{LOD: 0, Index: 0}))
	require.Equal(t, src.data[base.BrickKey{LOD: 0, Index: 0}], dst)
}

func TestRebrickConstraintRejected(t *testing.T) {
	sbs := [3]uint64{5, 5, 5}
	src := newFakeSource([3]uint64{1, 1, 1}, sbs)
	_, err := rebrick.New(src, [3]uint64{3, 3, 3}, 1<<20, rebrick.MinMaxDynamic, nil, "")
	require.Error(t, err)
}

func TestSubdivideRebrick(t *testing.T) {
	sbs := [3]uint64{4, 4, 4}
	src := newFakeSource([3]uint64{1, 1, 1}, sbs)
	r, err := rebrick.New(src, [3]uint64{2, 2, 2}, 1<<20, rebrick.MinMaxDynamic, nil, "")
	require.NoError(t, err)

	dst := make([]byte, 2*2*2)
	require.NoError(t, r.GetBrick(dst, base.BrickKey{LOD: 0, Index: 0}))

	full := src.data[base.BrickKey{LOD: 0, Index: 0}]
	require.Equal(t, full[0], dst[0])
}

func TestLRUEviction(t *testing.T) {
	sbs := [3]uint64{2, 2, 2}
	src := newFakeSource([3]uint64{4, 1, 1}, sbs)
	brickBytes := 2 * 2 * 2
	metrics := rebrick.NewMetrics(nil)
	r, err := rebrick.New(src, sbs, 3*brickBytes, rebrick.MinMaxDynamic, metrics, "")
	require.NoError(t, err)

	dst := make([]byte, brickBytes)
	for _, idx := range []uint64{0, 1, 2, 3} {
		require.NoError(t, r.GetBrick(dst, base.BrickKey{LOD: 0, Index: idx}))
	}
	// Brick 0 should have been evicted; fetching it again is a cache miss
	// but still produces correct data.
	require.NoError(t, r.GetBrick(dst, base.BrickKey{LOD: 0, Index: 0}))
	require.Equal(t, src.data[base.BrickKey{LOD: 0, Index: 0}], dst)
}
