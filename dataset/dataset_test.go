package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/dataset"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
)

func buildTinyCube(t *testing.T) *dataset.Dataset {
	t.Helper()
	full := [3]uint64{8, 8, 1}
	maxBS := [3]uint64{4, 8, 1}
	lods, err := layout.ComputeLODTable(full, [3]float64{1, 1, 1}, maxBS, 0)
	require.NoError(t, err)
	d := dataset.New(lods, maxBS, 0)
	for li, l := range lods {
		for idx := uint64(0); idx < l.TotalBricks(); idx++ {
			key := base.BrickKey{LOD: uint32(li), Index: l.LODOffset + idx}
			d.Put(key, base.BrickMD{VoxelCount: [3]uint32{4, 8, 1}})
		}
	}
	return d
}

func TestIteratorYieldsEveryBrickOnce(t *testing.T) {
	d := buildTinyCube(t)
	it := d.Iterate(0)
	count := 0
	for {
		_, _, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 3, count)
}

func TestFirstLastInDimension(t *testing.T) {
	d := buildTinyCube(t)
	require.True(t, d.IsFirstInDimension(0, base.BrickKey{LOD: 0, Index: 0}))
	require.False(t, d.IsFirstInDimension(0, base.BrickKey{LOD: 0, Index: 1}))
	require.True(t, d.IsLastInDimension(0, base.BrickKey{LOD: 0, Index: 1}))
}

func TestLargestSingleBrickLOD(t *testing.T) {
	d := buildTinyCube(t)
	require.Equal(t, 1, d.LargestSingleBrickLOD())
}

func TestLinearIndexRoundTrip(t *testing.T) {
	d := buildTinyCube(t)
	li := dataset.NewLinearIndex(d)
	for _, lod := range []uint32{0, 1} {
		key := li.IndexFrom4D(0, 0, 0, lod, 0)
		x, y, z, gotLOD := li.IndexTo4D(key)
		require.Equal(t, uint64(0), x)
		require.Equal(t, uint64(0), y)
		require.Equal(t, uint64(0), z)
		require.Equal(t, lod, gotLOD)
	}
}
