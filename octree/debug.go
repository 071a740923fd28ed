package octree

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
)

// DebugString renders the LOD table (pixel size, brick count, total bricks
// and LOD offset per level) as an ASCII table; ToC entries are not listed.
// Building the string is not free, so callers gate the call, not just the
// print (spec.md §9 "debug facilities are opt-in and allocation-free when
// disabled").
func (o *Octree) DebugString() string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("octree: %d LOD(s), brick size %v, overlap %d, layout %d\n",
		len(o.LODs), o.MaxBrickSize, o.Overlap, o.Layout))

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"lod", "pixel size", "brick count", "total bricks", "lod offset"})
	for i, l := range o.LODs {
		table.Append([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%v", l.PixelSize),
			fmt.Sprintf("%v", l.BrickCount),
			fmt.Sprintf("%d", l.TotalBricks()),
			fmt.Sprintf("%d", l.LODOffset),
		})
	}
	table.Render()
	return buf.String()
}
