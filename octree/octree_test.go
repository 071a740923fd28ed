package octree_test

import (
	"bytes"
	"path/filepath"
	"testing"

	cklauspostzlib "github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/octree"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "o.ivc")
	c, err := container.Create(path, false, base.ChecksumXXHash64)
	require.NoError(t, err)

	format := base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1}
	o, err := octree.New(format, false, [3]uint64{8, 8, 1}, [3]float64{1, 1, 1}, [3]uint64{4, 8, 1}, 0, octree.LTScanline)
	require.NoError(t, err)
	require.Len(t, o.LODs, 2)

	require.NoError(t, o.WriteHeader(c))

	// Write two uncompressed brick bodies for LOD 0 and patch their ToC
	// entries; LOD 1's single brick is left as a zero-length placeholder.
	base0 := o.BricksBase()
	require.NoError(t, c.File().SeekStart(base0))

	brick0 := bytes.Repeat([]byte{0xAA}, 4*8*1)
	n, err := c.File().Write(brick0)
	require.NoError(t, err)
	require.Equal(t, len(brick0), n)
	o.SetTOCEntry(0, octree.TOCEntry{Offset: 0, Length: uint64(len(brick0)), Compression: base.CompressionNone, ValidLength: uint64(len(brick0))})

	var zbuf bytes.Buffer
	zw := cklauspostzlib.NewWriter(&zbuf)
	brick1 := bytes.Repeat([]byte{0xBB}, 4*8*1)
	_, err = zw.Write(brick1)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	n, err = c.File().Write(zbuf.Bytes())
	require.NoError(t, err)
	require.Equal(t, zbuf.Len(), n)
	o.SetTOCEntry(1, octree.TOCEntry{
		Offset:      uint64(len(brick0)),
		Length:      uint64(zbuf.Len()),
		Compression: base.CompressionZlib,
		ValidLength: uint64(len(brick1)),
	})

	require.NoError(t, o.RewriteTOCEntries())
	require.NoError(t, c.Finalize())
	require.NoError(t, c.Close())

	c2, err := container.Open(path)
	require.NoError(t, err)
	defer c2.Close()
	require.NoError(t, c2.VerifyIntegrity())

	o2, err := octree.Open(c2)
	require.NoError(t, err)
	require.Equal(t, base.ComponentU8, o2.Format.Type)
	require.Len(t, o2.LODs, 2)

	got0 := make([]byte, 4*8*1)
	require.NoError(t, o2.GetBrickData(got0, base.BrickKey{LOD: 0, Index: 0}))
	require.Equal(t, brick0, got0)

	got1 := make([]byte, 4*8*1)
	require.NoError(t, o2.GetBrickData(got1, base.BrickKey{LOD: 0, Index: 1}))
	require.Equal(t, brick1, got1)

	size, err := o2.ComputeBrickSize(base.BrickKey{LOD: 1, Index: o2.LODs[1].LODOffset})
	require.NoError(t, err)
	require.Equal(t, [3]uint32{4, 4, 1}, size)
}

func TestOutOfRangeBrickKeyRejected(t *testing.T) {
	format := base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1}
	o, err := octree.New(format, false, [3]uint64{8, 8, 1}, [3]float64{1, 1, 1}, [3]uint64{4, 8, 1}, 0, octree.LTScanline)
	require.NoError(t, err)
	_, err = o.ComputeBrickSize(base.BrickKey{LOD: 9, Index: 0})
	require.Error(t, err)
}

func TestInvalidDstSizeRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "o.ivc")
	c, err := container.Create(path, false, base.ChecksumNone)
	require.NoError(t, err)
	format := base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1}
	o, err := octree.New(format, false, [3]uint64{8, 8, 1}, [3]float64{1, 1, 1}, [3]uint64{4, 8, 1}, 0, octree.LTScanline)
	require.NoError(t, err)
	require.NoError(t, o.WriteHeader(c))
	dst := make([]byte, 3)
	err = o.GetBrickData(dst, base.BrickKey{LOD: 0, Index: 0})
	require.Error(t, err)
}
