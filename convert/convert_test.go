package convert_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/convert"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/octree"
	"github.com/iv3d/brickstore/vfile"
)

func TestConvertSmallVolumeRoundTrip(t *testing.T) {
	rawPath := filepath.Join(t.TempDir(), "v.raw")
	raw, err := vfile.Create(rawPath, false)
	require.NoError(t, err)
	defer raw.Close()

	// 4x4x1 u8, one byte per voxel, values 0..15.
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := raw.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	outPath := filepath.Join(t.TempDir(), "out.ivc")
	c, err := container.Create(outPath, false, base.ChecksumXXHash64)
	require.NoError(t, err)

	cfg := convert.Config{
		Format:       base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1},
		FullSize:     [3]uint64{4, 4, 1},
		Aspect:       [3]float64{1, 1, 1},
		MaxBrickSize: [3]uint64{2, 2, 1},
		Overlap:      0,
		MemBudget:    1 << 20,
		Compress:     true,
		Filter:       convert.FilterAverage,
		Ghost:        convert.GhostClampEdge,
		Layout:       octree.LTScanline,
	}
	cv, err := convert.New(cfg, raw, 0, c, nil)
	require.NoError(t, err)
	require.NoError(t, cv.Run())
	require.Equal(t, 1.0, cv.Progress())
	require.NoError(t, c.Close())

	c2, err := container.Open(outPath)
	require.NoError(t, err)
	defer c2.Close()
	require.NoError(t, c2.VerifyIntegrity())

	o2, err := octree.Open(c2)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(o2.LODs), 1)

	got := make([]byte, 2*2*1)
	require.NoError(t, o2.GetBrickData(got, base.BrickKey{LOD: 0, Index: 0}))
	require.Equal(t, []byte{0, 1, 4, 5}, got)
}
