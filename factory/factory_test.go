package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/factory"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/octree"
)

func TestFactoryRecognizesOctreeContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.ivc")
	c, err := container.Create(path, false, base.ChecksumXXHash64)
	require.NoError(t, err)

	o, err := octree.New(base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1}, false,
		[3]uint64{2, 2, 1}, [3]float64{1, 1, 1}, [3]uint64{2, 2, 1}, 0, octree.LTScanline)
	require.NoError(t, err)
	require.NoError(t, o.WriteHeader(c))
	require.NoError(t, c.Close())

	f := factory.New()
	factory.RegisterDefaults(f)

	ds, name, err := f.Open(path)
	require.NoError(t, err)
	require.Equal(t, "octree-container", name)
	_, ok := ds.(*octree.Octree)
	require.True(t, ok)
}

func TestFactoryRejectsUnknownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a brickstore file at all"), 0o644))

	f := factory.New()
	factory.RegisterDefaults(f)

	_, _, err := f.Open(path)
	require.Error(t, err)
	require.True(t, errors.Is(err, base.ErrOpenFailed))
}
