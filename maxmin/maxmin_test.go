package maxmin_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/maxmin"
)

func TestMergeTracksExtrema(t *testing.T) {
	b := maxmin.New(1)
	b.StartNewBrick()
	b.Merge(0, 3, 0.1)
	b.Merge(0, -2, 0.9)
	b.Merge(0, 7, 0.4)

	e := b.Get(0)
	require.Equal(t, -2.0, e.Min[0])
	require.Equal(t, 7.0, e.Max[0])
	require.InDelta(t, 0.1, e.MinGradient[0], 1e-9)
	require.InDelta(t, 0.9, e.MaxGradient[0], 1e-9)

	g := b.GlobalEntry()
	require.Equal(t, -2.0, g.Min[0])
	require.Equal(t, 7.0, g.Max[0])
}

func TestMergeWithoutStartPanics(t *testing.T) {
	b := maxmin.New(1)
	require.Panics(t, func() { b.Merge(0, 1, 1) })
}

func TestWriteOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mm.ivc")
	c, err := container.Create(path, false, base.ChecksumNone)
	require.NoError(t, err)

	b := maxmin.New(2)
	b.StartNewBrick()
	b.Merge(0, 1, 0)
	b.Merge(1, 2, 0)
	b.StartNewBrick()
	b.Merge(0, -5, math.NaN())
	b.Merge(1, 9, 0)

	require.NoError(t, b.Write(c))
	require.NoError(t, c.Finalize())
	require.NoError(t, c.Close())

	c2, err := container.Open(path)
	require.NoError(t, err)
	defer c2.Close()

	got, err := maxmin.Open(c2)
	require.NoError(t, err)
	require.Equal(t, 2, got.Components)
	require.Len(t, got.Entries, 2)
	require.Equal(t, 1.0, got.Entries[0].Min[0])
	require.Equal(t, 9.0, got.Entries[1].Max[1])
}
