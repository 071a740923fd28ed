package container_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/internal/base"
)

func TestChainedBlocksRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.ivc")

	c, err := container.Create(path, false, base.ChecksumMD5)
	require.NoError(t, err)

	payloads := map[string][]byte{
		"kv-0":  []byte("hello key value block"),
		"toc-0": make([]byte, 4096),
	}
	for i := range payloads["toc-0"] {
		payloads["toc-0"][i] = byte(i)
	}

	_, err = c.BeginBlock("kv-0", base.SemanticKeyValuePairs)
	require.NoError(t, err)
	n, err := c.File().Write(payloads["kv-0"])
	require.NoError(t, err)
	require.Equal(t, len(payloads["kv-0"]), n)
	require.NoError(t, c.FinishBlock())

	_, err = c.BeginBlock("toc-0", base.SemanticTOCOctree)
	require.NoError(t, err)
	n, err = c.File().Write(payloads["toc-0"])
	require.NoError(t, err)
	require.Equal(t, len(payloads["toc-0"]), n)

	require.NoError(t, c.Finalize())
	require.NoError(t, c.Close())

	// Reopen and check the chain is what we wrote.
	c2, err := container.Open(path)
	require.NoError(t, err)
	defer c2.Close()

	blocks := c2.Blocks()
	require.Len(t, blocks, 2)
	require.Equal(t, "kv-0", blocks[0].ID)
	require.Equal(t, base.SemanticKeyValuePairs, blocks[0].Semantic)
	require.EqualValues(t, len(payloads["kv-0"]), blocks[0].PayloadLength)

	require.Equal(t, "toc-0", blocks[1].ID)
	require.Equal(t, base.SemanticTOCOctree, blocks[1].Semantic)
	require.EqualValues(t, len(payloads["toc-0"]), blocks[1].PayloadLength)

	// The last block's payload runs to the end of the file (its
	// offset-to-next is 0); read it back and compare.
	got := make([]byte, blocks[1].PayloadLength)
	n, err = c2.File().ReadAt(got, blocks[1].PayloadOffset)
	require.NoError(t, err)
	require.Equal(t, len(got), n)
	require.Equal(t, payloads["toc-0"], got)

	require.NoError(t, c2.VerifyIntegrity())
}

func TestIntegrityCheckCatchesCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.ivc")
	c, err := container.Create(path, false, base.ChecksumXXHash64)
	require.NoError(t, err)
	_, err = c.BeginBlock("b0", base.SemanticRegularNDGrid)
	require.NoError(t, err)
	_, err = c.File().Write([]byte("payload bytes"))
	require.NoError(t, err)
	require.NoError(t, c.Finalize())
	require.NoError(t, c.Close())

	// Corrupt one payload byte directly on disk.
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0x00}, 40)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c2, err := container.Open(path)
	require.NoError(t, err)
	defer c2.Close()
	require.ErrorIs(t, c2.VerifyIntegrity(), base.ErrChecksumMismatch)
}

func TestEmptyContainerSingleBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.ivc")
	c, err := container.Create(path, true, base.ChecksumNone)
	require.NoError(t, err)
	_, err = c.BeginBlock("only", base.SemanticEmpty)
	require.NoError(t, err)
	require.NoError(t, c.Finalize())
	require.NoError(t, c.Close())

	c2, err := container.Open(path)
	require.NoError(t, err)
	defer c2.Close()
	require.Len(t, c2.Blocks(), 1)
	require.EqualValues(t, 0, c2.Blocks()[0].PayloadLength)
	require.NoError(t, c2.VerifyIntegrity())
}
