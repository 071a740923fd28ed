package convert

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/klauspost/compress/zlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/histogram"
	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
	"github.com/iv3d/brickstore/maxmin"
	"github.com/iv3d/brickstore/octree"
	"github.com/iv3d/brickstore/vfile"
)

// GhostMode selects how ghost voxels at the domain boundary (where there is
// no neighboring data to copy) are filled (spec.md §4.5 "fill ghost voxels
// either with zeros or by clamp-to-edge").
type GhostMode uint8

const (
	GhostZero GhostMode = iota
	GhostClampEdge
)

// Config holds every converter input named by spec.md §4.5.
type Config struct {
	Format       base.VoxelFormat
	FullSize     [3]uint64
	Aspect       [3]float64
	MaxBrickSize [3]uint64
	Overlap      uint32
	MemBudget    int
	Compress     bool
	Filter       Filter
	Ghost        GhostMode
	Layout       octree.LayoutOrder
}

// Metrics are the converter's prometheus instruments, wired per LOD pass
// and per compression decision (spec.md §5's single-threaded-per-dataset
// model: one converter, one set of counters, no labels needed beyond the
// brick-level ones below).
type Metrics struct {
	BricksWritten   prometheus.Counter
	BricksCompressed prometheus.Counter
	BytesSaved      prometheus.Counter
}

// NewMetrics registers a fresh Metrics set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BricksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brickstore_convert_bricks_written_total",
			Help: "Number of brick bodies written by the converter.",
		}),
		BricksCompressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brickstore_convert_bricks_compressed_total",
			Help: "Number of brick bodies whose compressed form was kept.",
		}),
		BytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brickstore_convert_bytes_saved_total",
			Help: "Bytes saved by keeping a brick's compressed form over its raw form.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.BricksWritten, m.BricksCompressed, m.BytesSaved)
	}
	return m
}

// Converter runs the raw-to-octree bricking pipeline of spec.md §4.5.
type Converter struct {
	cfg     Config
	src     *vfile.File
	srcOff  int64
	o       *octree.Octree
	c       *container.Container
	cache   *writeCache
	stats   *maxmin.Block
	hist1D  *histogram.Histogram1D // nil for float component types, spec.md §4.6
	hist2D  *histogram.Histogram2D
	metrics *Metrics
	latency *hdrhistogram.Histogram // write latency in microseconds, per spec.md §9's telemetry surface

	progress float64 // in [0,1]; exposed for UI polling per spec.md §5
}

// New configures a Converter. src must already be opened for reading at
// srcOffset; dst is a freshly created container the converter owns for the
// duration of Run.
func New(cfg Config, src *vfile.File, srcOffset int64, dst *container.Container, metrics *Metrics) (*Converter, error) {
	o, err := octree.New(cfg.Format, false, cfg.FullSize, cfg.Aspect, cfg.MaxBrickSize, cfg.Overlap, cfg.Layout)
	if err != nil {
		return nil, err
	}
	brickLen := int(cfg.MaxBrickSize[0]) * int(cfg.MaxBrickSize[1]) * int(cfg.MaxBrickSize[2]) * cfg.Format.BytesPerVoxel()
	return &Converter{
		cfg:     cfg,
		src:     src,
		srcOff:  srcOffset,
		o:       o,
		c:       dst,
		cache:   newWriteCache(cfg.MemBudget, brickLen, 64),
		stats:   maxmin.New(int(cfg.Format.ComponentCount)),
		metrics: metrics,
		latency: hdrhistogram.New(1, 10_000_000, 3),
	}, nil
}

// Progress returns the converter's completion fraction in [0,1].
func (cv *Converter) Progress() float64 { return cv.progress }

// Run executes the full pipeline: header, permute LOD 0 (ghost overlap
// included), histograms, coarser LODs, compression pass, finalize (spec.md
// §4.5 steps 1-7).
func (cv *Converter) Run() error {
	if err := cv.o.WriteHeader(cv.c); err != nil {
		return err
	}
	if err := cv.permuteLOD0(); err != nil {
		return err
	}
	if err := cv.buildHistograms(); err != nil {
		return err
	}
	cv.progress = 0.4
	for lod := 1; lod < len(cv.o.LODs); lod++ {
		if err := cv.buildCoarserLOD(uint32(lod)); err != nil {
			return err
		}
		cv.progress = 0.4 + 0.4*float64(lod)/float64(len(cv.o.LODs)-1)
	}
	if err := cv.flushDirty(); err != nil {
		return err
	}
	if cv.cfg.Compress {
		if err := cv.compressPass(); err != nil {
			return err
		}
	}
	cv.progress = 1.0
	return cv.finalize()
}

func (cv *Converter) stride() int { return cv.cfg.Format.BytesPerVoxel() }

// sourceSample reads one voxel from the source raw file at domain
// coordinate (x,y,z), applying the configured ghost mode when the
// coordinate falls outside [0, FullSize) on any axis (spec.md §4.5 step 3:
// "fill ghost voxels either with zeros or by clamp-to-edge").
//
// Reading ghost voxels directly from the (fully random-access) source file
// at extended coordinates is equivalent to, and subsumes, the 10-neighbor
// copy trick of spec.md step 4: both ultimately copy the same underlying
// domain sample into the ghost region. The neighbor-copy algorithm exists
// in the original because its source is a forward-only stream; vfile is
// seekable, so the simpler direct read is used here and there is no
// separate overlap-fill pass: permuteLOD0 fills every LOD-0 brick's ghost
// region as it builds the brick, so LOD 0 (including overlap) is complete
// before any coarser LOD begins (spec.md §5 ordering guarantee).
func (cv *Converter) sourceSample(x, y, z int64, buf []byte) {
	fx, fy, fz := x, y, z
	if cv.cfg.Ghost == GhostClampEdge {
		fx = clamp64(x, 0, int64(cv.cfg.FullSize[0])-1)
		fy = clamp64(y, 0, int64(cv.cfg.FullSize[1])-1)
		fz = clamp64(z, 0, int64(cv.cfg.FullSize[2])-1)
	} else if x < 0 || y < 0 || z < 0 ||
		x >= int64(cv.cfg.FullSize[0]) || y >= int64(cv.cfg.FullSize[1]) || z >= int64(cv.cfg.FullSize[2]) {
		for i := range buf {
			buf[i] = 0
		}
		return
	}
	stride := int64(cv.stride())
	rowBytes := int64(cv.cfg.FullSize[0]) * stride
	sliceBytes := int64(cv.cfg.FullSize[1]) * rowBytes
	off := cv.srcOff + fz*sliceBytes + fy*rowBytes + fx*stride
	n, err := cv.src.ReadAt(buf, off)
	if err != nil || int64(n) != stride {
		for i := range buf {
			buf[i] = 0
		}
	}
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// domainGradient computes the central-difference gradient magnitude of one
// component at domain coordinate (x,y,z), the same formula MaxMinDataBlock.cpp's
// Gradient uses: half the difference of the +1/-1 neighbor along each axis,
// combined as a Euclidean norm. Neighbors past the domain edge go through
// sourceSample's ghost handling, so the difference degrades gracefully to a
// one-sided estimate there instead of reading garbage.
func (cv *Converter) domainGradient(x, y, z int64, component int) float64 {
	stride := cv.stride()
	buf := make([]byte, stride)
	sample := func(dx, dy, dz int64) float64 {
		cv.sourceSample(x+dx, y+dy, z+dz, buf)
		return sampleAsFloat(buf, cv.cfg.Format.Type, component)
	}
	dx := (sample(1, 0, 0) - sample(-1, 0, 0)) / 2
	dy := (sample(0, 1, 0) - sample(0, -1, 0)) / 2
	dz := (sample(0, 0, 1) - sample(0, 0, -1)) / 2
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// localGradient computes the same central-difference magnitude as
// domainGradient, but over a brick's own assembled voxel buffer rather than
// the source file; used by buildCoarserLOD, which has no seekable source to
// re-sample from. Indices past the brick's own bounds clamp to the nearest
// edge voxel, the brick-local equivalent of GhostClampEdge.
func localGradient(data []byte, nx, ny, nz, stride int, t base.ComponentType, component, x, y, z int) float64 {
	at := func(xx, yy, zz int) float64 {
		xx = clampInt(xx, 0, nx-1)
		yy = clampInt(yy, 0, ny-1)
		zz = clampInt(zz, 0, nz-1)
		idx := (zz*ny*nx + yy*nx + xx) * stride
		return sampleAsFloat(data[idx:idx+stride], t, component)
	}
	dx := (at(x+1, y, z) - at(x-1, y, z)) / 2
	dy := (at(x, y+1, z) - at(x, y-1, z)) / 2
	dz := (at(x, y, z+1) - at(x, y, z-1)) / 2
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// permuteLOD0 builds every LOD-0 brick directly from the source file,
// including ghost voxels, and writes each through the write-back cache
// (spec.md §4.5 step 3).
func (cv *Converter) permuteLOD0() error {
	l := cv.o.LODs[0]
	eff := cv.o.EffectiveBrickSize()
	stride := cv.stride()
	for bz := uint64(0); bz < l.BrickCount[2]; bz++ {
		for by := uint64(0); by < l.BrickCount[1]; by++ {
			for bx := uint64(0); bx < l.BrickCount[0]; bx++ {
				coord := base.BrickCoord3D{X: bx, Y: by, Z: bz}
				key := base.BrickKey{LOD: 0, Index: layout.BrickCoordsToIndex(l, coord)}
				n := cv.o.ComputeBrickSizeMust(key)
				data := make([]byte, int(n[0])*int(n[1])*int(n[2])*stride)
				origin := [3]int64{
					int64(bx*eff[0]) - int64(cv.cfg.Overlap),
					int64(by*eff[1]) - int64(cv.cfg.Overlap),
					int64(bz*eff[2]) - int64(cv.cfg.Overlap),
				}
				idx := 0
				brickIdx := cv.stats.StartNewBrick()
				_ = brickIdx
				for z := 0; z < int(n[2]); z++ {
					for y := 0; y < int(n[1]); y++ {
						for x := 0; x < int(n[0]); x++ {
							vx, vy, vz := origin[0]+int64(x), origin[1]+int64(y), origin[2]+int64(z)
							cv.sourceSample(vx, vy, vz, data[idx:idx+stride])
							for c := 0; c < int(cv.cfg.Format.ComponentCount); c++ {
								v := sampleAsFloat(data[idx:idx+stride], cv.cfg.Format.Type, c)
								cv.stats.Merge(c, v, cv.domainGradient(vx, vy, vz, c))
							}
							idx += stride
						}
					}
				}
				cv.cache.Put(key, data)
				if cv.metrics != nil {
					cv.metrics.BricksWritten.Inc()
				}
			}
		}
	}
	return nil
}

// buildHistograms fills the 1D and 2D histogram blocks of spec.md §4.6 from
// LOD0's domain, component 0. It runs right after permuteLOD0 so cv.stats
// already holds LOD0's global extrema, which is histogram.NewHistogram2D's
// required first pass (its "two passes" contract: extrema known, then bin).
// The second pass here re-derives each voxel's value and gradient via
// sourceSample/domainGradient rather than holding the whole domain in
// memory, matching permuteLOD0's own out-of-core access pattern.
func (cv *Converter) buildHistograms() error {
	if h1, err := histogram.NewHistogram1D(cv.cfg.Format.Type); err == nil {
		cv.hist1D = h1
	} else {
		cv.hist1D = nil
	}

	g := cv.stats.GlobalEntry()
	if len(g.Max) == 0 {
		return nil
	}
	maxVal, maxGrad := g.Max[0], g.MaxGradient[0]
	if math.IsInf(maxGrad, -1) || math.IsInf(maxGrad, 1) {
		maxGrad = 0
	}
	cv.hist2D = histogram.NewHistogram2D(256, maxVal, maxGrad)

	stride := cv.stride()
	buf := make([]byte, stride)
	for z := int64(0); z < int64(cv.cfg.FullSize[2]); z++ {
		for y := int64(0); y < int64(cv.cfg.FullSize[1]); y++ {
			for x := int64(0); x < int64(cv.cfg.FullSize[0]); x++ {
				cv.sourceSample(x, y, z, buf)
				if cv.hist1D != nil {
					cv.hist1D.Add(histBin(buf, cv.cfg.Format.Type))
				}
				v := sampleAsFloat(buf, cv.cfg.Format.Type, 0)
				cv.hist2D.Add(v, cv.domainGradient(x, y, z, 0))
			}
		}
	}
	if cv.hist1D != nil {
		cv.hist1D.Truncate()
	}
	return nil
}

// histBin converts component 0's raw bytes to a histogram bin index, biasing
// signed types so 0 is the smallest representable value (Histogram1D.Add's
// documented contract).
func histBin(buf []byte, t base.ComponentType) uint32 {
	switch t {
	case base.ComponentU8:
		return uint32(buf[0])
	case base.ComponentI8:
		return uint32(int8(buf[0])) + 1<<7
	case base.ComponentU16:
		return uint32(le16(buf[0:2]))
	case base.ComponentI16:
		return uint32(int16(le16(buf[0:2]))) + 1<<15
	case base.ComponentU32:
		return leU32(buf[0:4])
	case base.ComponentI32:
		return uint32(int32(leU32(buf[0:4]))) + 1<<31
	default:
		return 0
	}
}

// sampleAsFloat widens one component of a voxel to float64 for statistics,
// per component type; see filter.go's downsampleBytes for the same dispatch
// shape.
func sampleAsFloat(buf []byte, t base.ComponentType, component int) float64 {
	off := component * t.Size()
	switch t {
	case base.ComponentU8:
		return float64(buf[off])
	case base.ComponentI8:
		return float64(int8(buf[off]))
	case base.ComponentU16:
		return float64(le16(buf[off : off+2]))
	case base.ComponentI16:
		return float64(int16(le16(buf[off : off+2])))
	case base.ComponentU32:
		return float64(leU32(buf[off : off+4]))
	case base.ComponentI32:
		return float64(int32(leU32(buf[off : off+4])))
	case base.ComponentU64:
		return float64(leU64(buf[off : off+8]))
	case base.ComponentI64:
		return float64(int64(leU64(buf[off : off+8])))
	case base.ComponentF32:
		return float64(leF32(buf[off : off+4]))
	case base.ComponentF64:
		return leF64(buf[off : off+8])
	default:
		return 0
	}
}

// buildCoarserLOD fills lod from its finer children by 2x2x2 filtering
// (spec.md §4.5 step 5).
func (cv *Converter) buildCoarserLOD(lod uint32) error {
	if err := cv.flushDirty(); err != nil {
		return err
	}
	l := cv.o.LODs[lod]
	child := cv.o.LODs[lod-1]
	stride := cv.stride()
	for bz := uint64(0); bz < l.BrickCount[2]; bz++ {
		for by := uint64(0); by < l.BrickCount[1]; by++ {
			for bx := uint64(0); bx < l.BrickCount[0]; bx++ {
				coord := base.BrickCoord3D{X: bx, Y: by, Z: bz}
				key := base.BrickKey{LOD: lod, Index: layout.BrickCoordsToIndex(l, coord)}
				n := cv.o.ComputeBrickSizeMust(key)
				data := make([]byte, int(n[0])*int(n[1])*int(n[2])*stride)
				idx := 0
				brickIdx := cv.stats.StartNewBrick()
				_ = brickIdx
				for z := 0; z < int(n[2]); z++ {
					for y := 0; y < int(n[1]); y++ {
						for x := 0; x < int(n[0]); x++ {
							var samples [][]byte
							for _, dz := range [2]uint64{0, 1} {
								for _, dy := range [2]uint64{0, 1} {
									for _, dx := range [2]uint64{0, 1} {
										cx, cy, cz := uint64(x)*2+dx, uint64(y)*2+dy, uint64(z)*2+dz
										sample, ok := cv.readChildVoxel(child, bx*2, by*2, bz*2, cx, cy, cz, key.LOD-1)
										if ok {
											samples = append(samples, sample)
										}
									}
								}
							}
							if len(samples) == 0 {
								samples = [][]byte{make([]byte, stride)}
							}
							downsampleBytes(samples, data[idx:idx+stride], cv.cfg.Format.Type, cv.cfg.Filter)
							idx += stride
						}
					}
				}
				// Gradients need every voxel of this brick already filled, so
				// they're computed in a second pass over the now-complete
				// data buffer rather than inline with the downsample loop
				// above (localGradient's central difference looks at both
				// neighbors of a voxel).
				idx = 0
				for z := 0; z < int(n[2]); z++ {
					for y := 0; y < int(n[1]); y++ {
						for x := 0; x < int(n[0]); x++ {
							for c := 0; c < int(cv.cfg.Format.ComponentCount); c++ {
								v := sampleAsFloat(data[idx:idx+stride], cv.cfg.Format.Type, c)
								grad := localGradient(data, int(n[0]), int(n[1]), int(n[2]), stride, cv.cfg.Format.Type, c, x, y, z)
								cv.stats.Merge(c, v, grad)
							}
							idx += stride
						}
					}
				}
				cv.cache.Put(key, data)
				if cv.metrics != nil {
					cv.metrics.BricksWritten.Inc()
				}
			}
		}
	}
	return nil
}

// readChildVoxel reads one voxel at local coordinate (cx,cy,cz) within the
// child brick at (bbx,bby,bbz) of childLOD, pulling the brick from the
// write-back cache (bricks below the coarsest-minus-one level are always
// still resident, since each level's build immediately follows its
// predecessor's flush).
func (cv *Converter) readChildVoxel(child layout.LOD, bbx, bby, bbz, cx, cy, cz uint64, childLOD uint32) ([]byte, bool) {
	stride := cv.stride()
	eff := cv.o.EffectiveBrickSize()
	childBrickX, childBrickY, childBrickZ := bbx, bby, bbz
	lx, ly, lz := cx, cy, cz
	for lx >= eff[0] {
		lx -= eff[0]
		childBrickX++
	}
	for ly >= eff[1] {
		ly -= eff[1]
		childBrickY++
	}
	for lz >= eff[2] {
		lz -= eff[2]
		childBrickZ++
	}
	if childBrickX >= child.BrickCount[0] || childBrickY >= child.BrickCount[1] || childBrickZ >= child.BrickCount[2] {
		return nil, false
	}
	coord := base.BrickCoord3D{X: childBrickX, Y: childBrickY, Z: childBrickZ}
	key := base.BrickKey{LOD: childLOD, Index: layout.BrickCoordsToIndex(child, coord)}
	data, ok := cv.cache.Get(key)
	if !ok {
		return nil, false
	}
	n := cv.o.ComputeBrickSizeMust(key)
	if lx >= uint64(n[0]) || ly >= uint64(n[1]) || lz >= uint64(n[2]) {
		return nil, false
	}
	off := (lz*uint64(n[1])*uint64(n[0]) + ly*uint64(n[0]) + lx) * uint64(stride)
	return data[off : off+uint64(stride)], true
}

// flushDirty writes every dirty cache entry to the octree's brick-body
// region and records its ToC entry, uncompressed. Entries are written in
// ascending brick index and each LOD is flushed before the next is built,
// so brick offsets increase with index; compressPass's front-to-back
// compaction relies on that order.
func (cv *Converter) flushDirty() error {
	keys := cv.cache.DirtyKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Index < keys[j].Index })
	for _, key := range keys {
		data, ok := cv.cache.Get(key)
		if !ok {
			continue
		}
		start := cv.latencyStart()
		off := cv.nextBrickOffset()
		n, err := cv.c.File().WriteAt(data, cv.o.BricksBase()+off)
		if err != nil {
			return err
		}
		if n != len(data) {
			return base.ShortTransferf("convert: short write of brick %+v", key)
		}
		cv.latencyRecord(start)
		cv.o.SetTOCEntry(key.Index, octree.TOCEntry{Offset: uint64(off), Length: uint64(len(data)), ValidLength: uint64(len(data))})
	}
	cv.cache.MarkClean()
	return nil
}

func (cv *Converter) nextBrickOffset() int64 {
	var maxEnd uint64
	for _, e := range cv.o.TOC {
		end := e.Offset + e.Length
		if end > maxEnd {
			maxEnd = end
		}
	}
	return int64(maxEnd)
}

// compressPass implements spec.md §4.5 step 6: per LOD, compress each
// brick (keeping the compressed form only if strictly smaller), then
// rewrite bodies contiguously so the file becomes hole-free.
func (cv *Converter) compressPass() error {
	base0 := cv.o.BricksBase()
	for i := range cv.o.TOC {
		e := cv.o.TOC[i]
		raw := make([]byte, e.Length)
		if _, err := cv.c.File().ReadAt(raw, base0+int64(e.Offset)); err != nil {
			return err
		}
		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(raw); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		if zbuf.Len() < len(raw) {
			cv.o.TOC[i].Compression = base.CompressionZlib
			cv.o.TOC[i].Length = uint64(zbuf.Len())
			cv.o.TOC[i].ValidLength = uint64(len(raw))
			copy(raw, zbuf.Bytes())
			raw = raw[:zbuf.Len()]
			if cv.metrics != nil {
				cv.metrics.BricksCompressed.Inc()
				cv.metrics.BytesSaved.Add(float64(e.Length) - float64(zbuf.Len()))
			}
		}
		if _, err := cv.c.File().WriteAt(raw, base0+int64(e.Offset)); err != nil {
			return err
		}
	}
	// Compact: rewrite every brick body back-to-back so offsets become
	// hole-free (spec.md §8 "Hole-freeness after compression").
	var cursor uint64
	for i := range cv.o.TOC {
		e := cv.o.TOC[i]
		if e.Offset == cursor {
			cursor += e.Length
			continue
		}
		buf := make([]byte, e.Length)
		if _, err := cv.c.File().ReadAt(buf, base0+int64(e.Offset)); err != nil {
			return err
		}
		if _, err := cv.c.File().WriteAt(buf, base0+int64(cursor)); err != nil {
			return err
		}
		cv.o.TOC[i].Offset = cursor
		cursor += e.Length
	}
	return nil
}

func (cv *Converter) latencyStart() int64 { return time.Now().UnixMicro() }

// latencyRecord records the elapsed microseconds since start into the
// converter's write-latency histogram (spec.md §9's telemetry surface).
func (cv *Converter) latencyRecord(start int64) {
	elapsed := time.Now().UnixMicro() - start
	if elapsed < 1 {
		elapsed = 1 // RecordValue's configured minimum
	}
	_ = cv.latency.RecordValue(elapsed)
}

// finalize writes back the final ToC, truncates the file to the last
// brick's end, appends the maxmin and histogram blocks after the brick
// bodies, and closes out the container (spec.md §4.5 step 7).
func (cv *Converter) finalize() error {
	if err := cv.o.RewriteTOCEntries(); err != nil {
		return err
	}
	// Brick bodies are written with WriteAt, which leaves the file position
	// at BricksBase; the trailing blocks must start after the last body.
	end := cv.o.BricksBase() + cv.nextBrickOffset()
	if err := cv.c.File().Truncate(end); err != nil {
		return err
	}
	if err := cv.c.File().SeekStart(end); err != nil {
		return err
	}
	if err := cv.stats.Write(cv.c); err != nil {
		return err
	}
	if cv.hist1D != nil {
		if err := cv.hist1D.Write(cv.c); err != nil {
			return err
		}
	}
	if cv.hist2D != nil {
		if err := cv.hist2D.Write(cv.c); err != nil {
			return err
		}
	}
	return cv.c.Finalize()
}

// Stats returns the per-brick statistics accumulated during Run.
func (cv *Converter) Stats() *maxmin.Block { return cv.stats }
