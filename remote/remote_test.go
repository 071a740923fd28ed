package remote_test

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/remote"
)

type fakeDataSource struct {
	bricks map[base.BrickKey][]byte
	meta   remote.DatasetMetadata
}

func (f *fakeDataSource) Metadata() remote.DatasetMetadata { return f.meta }

func (f *fakeDataSource) GetBrick(key base.BrickKey) ([]byte, error) {
	return f.bricks[key], nil
}

func (f *fakeDataSource) CalcMinMax() ([]remote.MinMaxEntry, error) {
	return []remote.MinMaxEntry{{LOD: 0, Index: 0, MinScalar: 0, MaxScalar: 255}}, nil
}

func (f *fakeDataSource) Rotate(m [16]float32) remote.RotationResult {
	return remote.RotationResult{Bricks: []base.BrickKey{{LOD: 0, Index: 0}}}
}

func startTestServer(t *testing.T, ds *fakeDataSource) (reqAddr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := remote.NewServer(func(fname string) (remote.DataSource, error) {
		return ds, nil
	})

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = srv.ServeRequest(conn, nil)
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

func TestOpenAndBrickRoundTrip(t *testing.T) {
	ds := &fakeDataSource{
		bricks: map[base.BrickKey][]byte{
			{LOD: 0, Index: 0}: {1, 2, 3, 4},
		},
		meta: remote.DatasetMetadata{
			LODs:          []remote.BrickLayout{{PixelSize: [3]uint64{4, 4, 1}, BrickCount: [3]uint64{1, 1, 1}}},
			ComponentType: base.ComponentU8,
			RangeMin:      0,
			RangeMax:      255,
			Bricks:        []base.BrickKey{{LOD: 0, Index: 0}},
			Geometry: []remote.BrickGeometry{
				{LOD: 0, Index: 0, Center: [3]float32{2, 2, 0.5}, Extent: [3]float32{2, 2, 0.5}, NumVoxels: [3]uint32{4, 4, 1}},
			},
		},
	}
	addr, stop := startTestServer(t, ds)
	defer stop()

	c, err := remote.Dial(addr, "", 1<<20)
	require.NoError(t, err)

	meta, err := c.Open([3]uint64{4, 4, 1}, 0, 0, 0, "volume.raw")
	require.NoError(t, err)
	require.Equal(t, base.ComponentU8, meta.ComponentType)
	require.Len(t, meta.LODs, 1)
	require.Equal(t, [3]uint64{4, 4, 1}, meta.LODs[0].PixelSize)
	require.Len(t, meta.Geometry, 1)

	data, err := c.Brick(base.BrickKey{LOD: 0, Index: 0})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, data)

	entries, err := c.CalcMinMax()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 255.0, entries[0].MaxScalar)

	rot, err := c.Rotation([16]float32{})
	require.NoError(t, err)
	require.Equal(t, []base.BrickKey{{LOD: 0, Index: 0}}, rot.Bricks)

	require.NoError(t, c.Close("volume.raw"))
	require.NoError(t, c.Shutdown())
}

func TestListFiles(t *testing.T) {
	ds := &fakeDataSource{bricks: map[base.BrickKey][]byte{}, meta: remote.DatasetMetadata{}}
	addr, stop := startTestServer(t, ds)
	defer stop()

	c, err := remote.Dial(addr, "", 1<<20)
	require.NoError(t, err)

	_, err = c.Open([3]uint64{1, 1, 1}, 0, 0, 0, "a.raw")
	require.NoError(t, err)

	names, err := c.ListFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"a.raw"}, names)
}

func TestOpenPushesBatch(t *testing.T) {
	ds := &fakeDataSource{
		bricks: map[base.BrickKey][]byte{
			{LOD: 0, Index: 0}: {1, 2, 3, 4},
			{LOD: 0, Index: 1}: {5, 6, 7, 8},
		},
		meta: remote.DatasetMetadata{
			LODs:   []remote.BrickLayout{{PixelSize: [3]uint64{4, 4, 1}, BrickCount: [3]uint64{2, 1, 1}}},
			Bricks: []base.BrickKey{{LOD: 0, Index: 0}, {LOD: 0, Index: 1}},
		},
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := remote.NewServer(func(fname string) (remote.DataSource, error) { return ds, nil })

	var batch bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = srv.ServeRequest(conn, &batch)
	}()

	c, err := remote.Dial(ln.Addr().String(), "", 1<<20)
	require.NoError(t, err)
	_, err = c.Open([3]uint64{4, 4, 1}, 0, 0, 0, "volume.raw")
	require.NoError(t, err)
	require.NoError(t, c.Shutdown())
	<-done

	require.Greater(t, batch.Len(), 0, "OPEN should have pushed at least one batch frame")
}

func TestBatchCompressRoundTrip(t *testing.T) {
	orig := []byte{9, 9, 9, 9, 1, 2, 3}
	compressed := remote.CompressForBatch(orig)
	got, err := remote.DecompressFromBatch(compressed)
	require.NoError(t, err)
	require.Equal(t, orig, got)
}
