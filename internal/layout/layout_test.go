package layout_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
)

func TestTinyCubeLODTable(t *testing.T) {
	// spec.md §8 scenario 1: 8x8x1 u8 domain, max_bs=(4,8,1), overlap 0.
	full := [3]uint64{8, 8, 1}
	maxBS := [3]uint64{4, 8, 1}
	lods, err := layout.ComputeLODTable(full, [3]float64{1, 1, 1}, maxBS, 0)
	require.NoError(t, err)
	require.Len(t, lods, 2)

	require.Equal(t, [3]uint64{2, 1, 1}, lods[0].BrickCount)
	require.Equal(t, [3]uint64{1, 1, 1}, lods[1].BrickCount)
	require.EqualValues(t, 0, lods[0].LODOffset)
	require.EqualValues(t, 2, lods[1].LODOffset)

	eff := layout.EffectiveBrickSize(maxBS, 0)
	require.Equal(t, [3]uint64{4, 8, 1}, eff)

	n := layout.BrickVoxelCount(lods[0], maxBS, eff, 0, base.BrickCoord3D{X: 0, Y: 0, Z: 0})
	require.Equal(t, [3]uint32{4, 8, 1}, n)
	n = layout.BrickVoxelCount(lods[0], maxBS, eff, 0, base.BrickCoord3D{X: 1, Y: 0, Z: 0})
	require.Equal(t, [3]uint32{4, 8, 1}, n)
	n = layout.BrickVoxelCount(lods[1], maxBS, eff, 0, base.BrickCoord3D{X: 0, Y: 0, Z: 0})
	require.Equal(t, [3]uint32{4, 4, 1}, n)
}

func TestSplitInTwoCenterLODTable(t *testing.T) {
	// spec.md §8 scenario 2: 12x6x24 domain, max_bs=(6,6,24), overlap 0.
	full := [3]uint64{12, 6, 24}
	maxBS := [3]uint64{6, 6, 24}
	lods, err := layout.ComputeLODTable(full, [3]float64{1, 1, 1}, maxBS, 0)
	require.NoError(t, err)
	require.Len(t, lods, 1)
	require.Equal(t, [3]uint64{2, 1, 1}, lods[0].BrickCount)
}

func TestIndexRoundTrip(t *testing.T) {
	full := [3]uint64{100, 73, 40}
	maxBS := [3]uint64{16, 16, 16}
	lods, err := layout.ComputeLODTable(full, [3]float64{1, 1, 1}, maxBS, 2)
	require.NoError(t, err)
	for li, l := range lods {
		for z := uint64(0); z < l.BrickCount[2]; z++ {
			for y := uint64(0); y < l.BrickCount[1]; y++ {
				for x := uint64(0); x < l.BrickCount[0]; x++ {
					c := base.BrickCoord3D{X: x, Y: y, Z: z}
					idx := layout.BrickCoordsToIndex(l, c)
					got := layout.IndexToBrickCoords(l, idx)
					require.Equalf(t, c, got, "lod %d", li)
				}
			}
		}
	}
}

func TestBijectionOfStorage(t *testing.T) {
	full := [3]uint64{100, 73, 40}
	maxBS := [3]uint64{16, 16, 16}
	lods, err := layout.ComputeLODTable(full, [3]float64{1, 1, 1}, maxBS, 2)
	require.NoError(t, err)
	var sum uint64
	for _, l := range lods {
		sum += l.TotalBricks()
	}
	largest := layout.LargestSingleBrickLOD(lods)
	require.Equal(t, len(lods)-1, largest)
	require.Greater(t, sum, uint64(0))
	// A ToC indexed by LODOffset+local index has exactly sum entries:
	// 9*7*4 + 5*4*2 + 3*2*1 + 2*1*1 + 1*1*1 = 301.
	last := lods[len(lods)-1]
	require.EqualValues(t, 301, sum)
	require.Equal(t, last.LODOffset+last.TotalBricks(), sum)
}

func TestInvalidBrickSizeRejected(t *testing.T) {
	_, err := layout.ComputeLODTable([3]uint64{10, 10, 10}, [3]float64{1, 1, 1}, [3]uint64{4, 4, 4}, 2)
	require.Error(t, err)
}
