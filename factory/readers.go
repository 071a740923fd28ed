package factory

import (
	"bytes"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/octree"
)

// containerMagic must match container.globalMagic; duplicated here since
// that constant is unexported (the container package does not want to
// advertise its header layout beyond Open/Create).
var containerMagic = []byte("IV3C")

// RegisterDefaults wires the bricked octree container format into f. The
// legacy flat raster format (raster package) is deliberately not
// registered here: a flat RAW file carries no magic or self-describing
// header at all (spec.md §4.3), so "sniffing" it is impossible in
// principle — the caller must already know its dimensions and component
// type out of band, the same way Tuvok's RAW loader takes them as
// constructor arguments rather than discovering them. Callers that need a
// raster.Table still construct one directly via raster.NewTable.
func RegisterDefaults(f *Factory) {
	f.Register(Reader{
		Name: "octree-container",
		CanRead: func(_ string, firstBlock []byte) bool {
			return bytes.HasPrefix(firstBlock, containerMagic)
		},
		Open: func(fname string) (interface{}, error) {
			c, err := container.Open(fname)
			if err != nil {
				return nil, err
			}
			o, err := octree.Open(c)
			if err != nil {
				c.Close()
				return nil, err
			}
			return o, nil
		},
	})
}
