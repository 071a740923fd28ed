// Command brickstore is a thin example binary wiring the core packages
// together: convert a flat volume into a bricked container, inspect an
// existing container's layout, or serve one over the remote brick source
// protocol. It is explicitly outside the core module's contract — every
// package it imports is usable standalone; this is only a worked example,
// the way pebble ships a "pebble" CLI on top of its library packages.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/convert"
	"github.com/iv3d/brickstore/factory"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/octree"
	"github.com/iv3d/brickstore/remote"
	"github.com/iv3d/brickstore/vfile"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "brickstore:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: brickstore <convert|info|serve> [flags]")
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("in", "", "input flat RAW file")
	out := fs.String("out", "", "output container file")
	nx := fs.Uint64("nx", 0, "volume size x")
	ny := fs.Uint64("ny", 0, "volume size y")
	nz := fs.Uint64("nz", 0, "volume size z")
	bs := fs.Uint64("brick-size", 128, "max brick size (all axes)")
	overlap := fs.Uint("overlap", 0, "ghost overlap voxels")
	compress := fs.Bool("compress", true, "compress bricks with zlib when it saves space")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" || *nx == 0 || *ny == 0 || *nz == 0 {
		return errors.New("convert: -in, -out, -nx, -ny, -nz are required")
	}

	raw, err := vfile.OpenReadOnly(*in, false)
	if err != nil {
		return err
	}
	defer raw.Close()

	c, err := container.Create(*out, false, base.ChecksumXXHash64)
	if err != nil {
		return err
	}

	cfg := convert.Config{
		Format:       base.VoxelFormat{Type: base.ComponentU8, ComponentCount: 1},
		FullSize:     [3]uint64{*nx, *ny, *nz},
		Aspect:       [3]float64{1, 1, 1},
		MaxBrickSize: [3]uint64{*bs, *bs, *bs},
		Overlap:      uint32(*overlap),
		MemBudget:    256 << 20,
		Compress:     *compress,
		Filter:       convert.FilterAverage,
		Ghost:        convert.GhostClampEdge,
		Layout:       octree.LTScanline,
	}
	cv, err := convert.New(cfg, raw, 0, c, nil)
	if err != nil {
		return err
	}
	if err := cv.Run(); err != nil {
		return err
	}
	return c.Close()
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	path := fs.String("file", "", "container file to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("info: -file is required")
	}

	f := factory.New()
	factory.RegisterDefaults(f)
	ds, name, err := f.Open(*path)
	if err != nil {
		return err
	}
	o, ok := ds.(*octree.Octree)
	if !ok {
		return errors.Newf("info: reader %q produced an unexpected dataset type", name)
	}
	fmt.Println(o.DebugString())
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:7131", "request-stream listen address")
	batchAddr := fs.String("batch-addr", "127.0.0.1:7132", "batch-stream listen address (empty disables proactive push)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "brickstore: serving requests on", ln.Addr())

	var batchLn net.Listener
	if *batchAddr != "" {
		batchLn, err = net.Listen("tcp", *batchAddr)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "brickstore: serving batch pushes on", batchLn.Addr())
	}

	srv := remote.NewServer(func(fname string) (remote.DataSource, error) {
		f := factory.New()
		factory.RegisterDefaults(f)
		ds, _, err := f.Open(fname)
		if err != nil {
			return nil, err
		}
		o, ok := ds.(*octree.Octree)
		if !ok {
			return nil, errors.Newf("serve: %q is not an octree container", fname)
		}
		return &octreeDataSource{o: o}, nil
	})
	return remote.Serve(ln, batchLn, srv)
}
