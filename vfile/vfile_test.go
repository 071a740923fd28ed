package vfile_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/vfile"
)

func TestScalarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")

	f, err := vfile.Create(path, false /* bigEndian */)
	require.NoError(t, err)
	require.NoError(t, f.WriteU32(0xdeadbeef))
	require.NoError(t, f.WriteU64(0x0123456789abcdef))
	require.NoError(t, f.Close())

	f, err = vfile.OpenReadOnly(path, false)
	require.NoError(t, err)
	defer f.Close()

	u32, err := f.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), u32)

	u64, err := f.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0123456789abcdef), u64)
}

func TestShortReadIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.bin")

	f, err := vfile.Create(path, false)
	require.NoError(t, err)
	n, err := f.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, f.Close())

	f, err = vfile.OpenReadOnly(path, false)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 16)
	n, err = f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestClosedFilePanics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "closed.bin")
	f, err := vfile.Create(path, false)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Panics(t, func() {
		_, _ = f.ReadU32()
	})
}

func TestCopyAndCompare(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	f, err := vfile.Create(src, false)
	require.NoError(t, err)
	data := make([]byte, 1<<20)
	for i := range data {
		data[i] = byte(i)
	}
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	n, err := vfile.CopyFile(dst, src, 4096)
	require.NoError(t, err)
	require.EqualValues(t, len(data), n)

	eq, err := vfile.FilesEqual(src, dst, 4096)
	require.NoError(t, err)
	require.True(t, eq)

	// Mutate one byte in the copy and confirm the comparison catches it.
	f, err = vfile.Open(dst, false, false)
	require.NoError(t, err)
	require.NoError(t, f.SeekStart(1000))
	_, err = f.Write([]byte{0xff})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	eq, err = vfile.FilesEqual(src, dst, 4096)
	require.NoError(t, err)
	require.False(t, eq)
}
