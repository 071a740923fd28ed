package main

import (
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/octree"
	"github.com/iv3d/brickstore/remote"
)

// octreeDataSource adapts an opened *octree.Octree to remote.DataSource so
// the example server can answer OPEN/BRICK/CALC_MINMAX over the wire
// protocol directly from a container file on disk.
type octreeDataSource struct {
	o *octree.Octree
}

func (d *octreeDataSource) Metadata() remote.DatasetMetadata {
	lods := make([]remote.BrickLayout, len(d.o.LODs))
	var bricks []base.BrickKey
	for i, l := range d.o.LODs {
		lods[i] = remote.BrickLayout{PixelSize: l.PixelSize, BrickCount: l.BrickCount, LODOffset: l.LODOffset}
		for idx := l.LODOffset; idx < l.LODOffset+l.TotalBricks(); idx++ {
			bricks = append(bricks, base.BrickKey{LOD: uint32(i), Index: idx})
		}
	}
	return remote.DatasetMetadata{
		LODs:          lods,
		ComponentType: d.o.Format.Type,
		Overlap:       [3]uint32{d.o.Overlap, d.o.Overlap, d.o.Overlap},
		Bricks:        bricks,
	}
}

func (d *octreeDataSource) GetBrick(key base.BrickKey) ([]byte, error) {
	n, err := d.o.ComputeBrickSize(key)
	if err != nil {
		return nil, err
	}
	data := make([]byte, int(n[0])*int(n[1])*int(n[2])*d.o.Format.BytesPerVoxel())
	if err := d.o.GetBrickData(data, key); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *octreeDataSource) CalcMinMax() ([]remote.MinMaxEntry, error) {
	var entries []remote.MinMaxEntry
	for i, l := range d.o.LODs {
		for idx := l.LODOffset; idx < l.LODOffset+l.TotalBricks(); idx++ {
			entries = append(entries, remote.MinMaxEntry{LOD: uint64(i), Index: idx})
		}
	}
	return entries, nil
}

func (d *octreeDataSource) Rotate(m [16]float32) remote.RotationResult {
	// No view-frustum culling implemented in this example server: it
	// reports every brick of LOD0 as needed, leaving real visibility
	// culling to a renderer-side client.
	if len(d.o.LODs) == 0 {
		return remote.RotationResult{}
	}
	l := d.o.LODs[0]
	bricks := make([]base.BrickKey, 0, l.TotalBricks())
	for idx := l.LODOffset; idx < l.LODOffset+l.TotalBricks(); idx++ {
		bricks = append(bricks, base.BrickKey{LOD: 0, Index: idx})
	}
	return remote.RotationResult{Bricks: bricks}
}
