package histogram_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/histogram"
	"github.com/iv3d/brickstore/internal/base"
)

func TestHistogram1DFloatUnsupported(t *testing.T) {
	_, err := histogram.NewHistogram1D(base.ComponentF32)
	require.ErrorIs(t, err, base.ErrUnsupported)
}

func TestHistogram1DTruncate(t *testing.T) {
	h, err := histogram.NewHistogram1D(base.ComponentU8)
	require.NoError(t, err)
	require.Len(t, h.Bins, 256)
	h.Add(5)
	h.Add(5)
	h.Add(40)
	h.Truncate()
	require.Len(t, h.Bins, 41)
	require.EqualValues(t, 2, h.Bins[5])
}

func TestHistogram1DCompressIdempotent(t *testing.T) {
	h, err := histogram.NewHistogram1D(base.ComponentU8)
	require.NoError(t, err)
	for i := 0; i < 256; i++ {
		h.Add(uint32(i))
	}
	h.Compress(16)
	require.LessOrEqual(t, len(h.Bins), 16)
	snapshot := append([]uint64(nil), h.Bins...)
	h.Compress(16)
	require.Equal(t, snapshot, h.Bins)
}

func TestHistogram1DWriteOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.ivc")
	c, err := container.Create(path, false, base.ChecksumNone)
	require.NoError(t, err)
	h, err := histogram.NewHistogram1D(base.ComponentU8)
	require.NoError(t, err)
	h.Add(3)
	h.Add(3)
	h.Truncate()
	require.NoError(t, h.Write(c))
	require.NoError(t, c.Finalize())
	require.NoError(t, c.Close())

	c2, err := container.Open(path)
	require.NoError(t, err)
	defer c2.Close()
	got, ok, err := histogram.OpenHistogram1D(c2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, h.Bins, got.Bins)
}

func TestHistogram2DBuildParallel(t *testing.T) {
	h, err := histogram.BuildParallel(4, 100, 10, 8, func(brickIndex int, part *histogram.Histogram2D) error {
		part.Add(float64(brickIndex)*10, float64(brickIndex))
		return nil
	})
	require.NoError(t, err)
	var total uint64
	for _, v := range h.Table {
		total += v
	}
	require.EqualValues(t, 8, total)
}
