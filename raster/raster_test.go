package raster_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/raster"
	"github.com/iv3d/brickstore/vfile"
)

func TestComputeBrickSizeRejectsTooSmall(t *testing.T) {
	_, ok := raster.ComputeBrickSize([3]uint64{2, 2, 2}, 2)
	require.False(t, ok)
}

func TestFlatToBrickedAndBack(t *testing.T) {
	format := base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1}
	full := [3]uint64{4, 4, 1}
	maxBS := [3]uint64{2, 2, 1}
	table, err := raster.NewTable(format, full, maxBS, 0)
	require.NoError(t, err)
	require.Len(t, table.LODs, 2)

	flatPath := filepath.Join(t.TempDir(), "flat.raw")
	bricksPath := filepath.Join(t.TempDir(), "bricks.raw")
	flat, err := vfile.Create(flatPath, false)
	require.NoError(t, err)
	defer flat.Close()
	bricks, err := vfile.Create(bricksPath, false)
	require.NoError(t, err)
	defer bricks.Close()

	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(i)
	}
	n, err := flat.Write(src)
	require.NoError(t, err)
	require.Equal(t, len(src), n)

	var seen [][3]uint64
	require.NoError(t, raster.FlatToBricked(flat, bricks, 0, 0, table, 0, func(coord [3]uint64, value []byte) {
		seen = append(seen, coord)
	}))
	require.Len(t, seen, 16)

	flatPath2 := filepath.Join(t.TempDir(), "flat2.raw")
	flat2, err := vfile.Create(flatPath2, false)
	require.NoError(t, err)
	defer flat2.Close()
	require.NoError(t, raster.BrickedToFlat(bricks, flat2, 0, 0, table, 0))

	got := make([]byte, 16)
	n, err = flat2.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, 16, n)
	require.Equal(t, src, got)
}

func TestSubsampleToNextLOD(t *testing.T) {
	format := base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1}
	srcPath := filepath.Join(t.TempDir(), "s.raw")
	dstPath := filepath.Join(t.TempDir(), "d.raw")
	f, err := vfile.Create(srcPath, false)
	require.NoError(t, err)
	defer f.Close()
	g, err := vfile.Create(dstPath, false)
	require.NoError(t, err)
	defer g.Close()

	data := []byte{10, 20, 30, 40}
	_, err = f.Write(data)
	require.NoError(t, err)

	dstSize, err := raster.SubsampleToNextLOD(f, g, 0, 0, [3]uint64{2, 2, 1}, format, raster.MeanCombine)
	require.NoError(t, err)
	require.Equal(t, [3]uint64{1, 1, 1}, dstSize)

	got := make([]byte, 1)
	_, err = g.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, byte(25), got[0])
}
