// Package rebrick implements the Dynamic Rebricker of spec.md §4.9: it
// presents bricks of a different (smaller) size carved on the fly from an
// existing linear-index dataset's physical bricks, backed by an LRU
// byte-budget cache of source bricks and three min/max acceleration modes.
// The LRU eviction policy is grounded on container/list's doubly linked
// list idiom (the same structure convert's write-back cache in
// convert/cache.go uses), generalized here to track a byte budget instead
// of an entry-count capacity.
package rebrick

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/layout"
)

// Source is the capability the rebricker needs from an underlying
// linear-index dataset: fetch a brick's bytes and its voxel size.
type Source interface {
	GetBrickData(dst []byte, key base.BrickKey) error
	ComputeBrickSize(key base.BrickKey) ([3]uint32, error)
	LODCount() int
	SourceLOD(lod int) layout.LOD
	Format() base.VoxelFormat
	Overlap() uint32
	MaxBrickSize() [3]uint64
}

// MinMaxMode selects how the rebricker answers min/max queries (spec.md
// §4.9 "Min/max modes").
type MinMaxMode uint8

const (
	MinMaxSource MinMaxMode = iota
	MinMaxDynamic
	MinMaxPrecompute
)

// Metrics are the rebricker's prometheus instruments for cache hit/miss
// rates.
type Metrics struct {
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	Evictions   prometheus.Counter
}

// NewMetrics registers a fresh Metrics set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits:   prometheus.NewCounter(prometheus.CounterOpts{Name: "brickstore_rebrick_cache_hits_total", Help: "Source-brick cache hits."}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{Name: "brickstore_rebrick_cache_misses_total", Help: "Source-brick cache misses."}),
		Evictions:   prometheus.NewCounter(prometheus.CounterOpts{Name: "brickstore_rebrick_cache_evictions_total", Help: "Source-brick cache evictions."}),
	}
	if reg != nil {
		reg.MustRegister(m.CacheHits, m.CacheMisses, m.Evictions)
	}
	return m
}

// Rebricker presents a target brick layout TBS carved from a source
// dataset's physical bricks (spec.md §4.9).
type Rebricker struct {
	src        Source
	tbs        [3]uint64
	overlap    uint32
	budget     int
	mode       MinMaxMode
	targetLODs []layout.LOD

	cacheBytes int
	cacheOrder *list.List
	cacheIdx   map[base.BrickKey]*list.Element
	metrics    *Metrics

	precomputed map[base.BrickKey][2]float64 // key -> (min, max), populated only in MinMaxPrecompute mode
}

type cacheItem struct {
	key  base.BrickKey
	data []byte
}

// New validates the TBS/overlap constraint and builds the target LOD
// layout (spec.md §4.9 "Constraints enforced"). sourcePath names the
// dataset file the rebricker is carving bricks from; in MinMaxPrecompute
// mode its directory and basename locate the on-disk side-cache file
// (spec.md §6 "Filename is ... basename(source) ... .cached"). It may be
// empty when mode is not MinMaxPrecompute.
func New(src Source, tbs [3]uint64, cacheBudgetBytes int, mode MinMaxMode, metrics *Metrics, sourcePath string) (*Rebricker, error) {
	overlap := src.Overlap()
	sbs := src.MaxBrickSize()
	for d := 0; d < 3; d++ {
		tEff := tbs[d] - 2*uint64(overlap)
		sEff := sbs[d] - 2*uint64(overlap)
		if sEff == 0 || tEff == 0 || sEff%tEff != 0 {
			return nil, base.ConfigInvalidf(
				"rebrick: axis %d target effective size %d does not evenly divide source effective size %d", d, tEff, sEff)
		}
	}

	r := &Rebricker{
		src:         src,
		tbs:         tbs,
		overlap:     overlap,
		budget:      cacheBudgetBytes,
		mode:        mode,
		cacheOrder:  list.New(),
		cacheIdx:    make(map[base.BrickKey]*list.Element),
		metrics:     metrics,
		precomputed: make(map[base.BrickKey][2]float64),
	}

	for lod := 0; lod < src.LODCount(); lod++ {
		sl := src.SourceLOD(lod)
		var bc [3]uint64
		for d := 0; d < 3; d++ {
			eff := tbs[d] - 2*uint64(overlap)
			bc[d] = ceilDiv(sl.PixelSize[d], eff)
		}
		var offset uint64
		if lod > 0 {
			offset = r.targetLODs[lod-1].LODOffset + r.targetLODs[lod-1].TotalBricks()
		}
		r.targetLODs = append(r.targetLODs, layout.LOD{
			Aspect: sl.Aspect, PixelSize: sl.PixelSize, BrickCount: bc, LODOffset: offset,
		})
	}

	if mode == MinMaxPrecompute {
		// spec.md §4.9 "also persist to a side-cache file ... so subsequent
		// opens skip the expensive pass": try the on-disk cache first, and
		// only fall back to a full scan (then persist it) on a miss.
		sourceBasename := filepath.Base(sourcePath)
		path := filepath.Join(filepath.Dir(sourcePath), SideCacheFilename(tbs, sourceBasename))
		hit, err := r.ReadSideCache(path, sourceBasename)
		if err != nil {
			return nil, err
		}
		if !hit {
			if err := r.precomputeAll(); err != nil {
				return nil, err
			}
			if err := r.WriteSideCache(path, sourceBasename); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// targetBricksPerSourceBrick returns, per axis, how many target bricks
// tile one source brick's effective span.
func (r *Rebricker) targetBricksPerSourceBrick() [3]uint64 {
	sbs := r.src.MaxBrickSize()
	var out [3]uint64
	for d := 0; d < 3; d++ {
		sEff := sbs[d] - 2*uint64(r.overlap)
		tEff := r.tbs[d] - 2*uint64(r.overlap)
		out[d] = sEff / tEff
	}
	return out
}

// mapToSource maps a target key to its containing source key and the
// target brick's (x,y,z) offset within that source brick, in voxels
// (spec.md §4.9 "Rebricking").
func (r *Rebricker) mapToSource(targetKey base.BrickKey) (base.BrickKey, [3]uint64) {
	tl := r.targetLODs[targetKey.LOD]
	tCoord := layout.IndexToBrickCoords(tl, targetKey.Index)
	perSource := r.targetBricksPerSourceBrick()

	sourceCoord := base.BrickCoord3D{X: tCoord.X / perSource[0], Y: tCoord.Y / perSource[1], Z: tCoord.Z / perSource[2]}
	localIdx := [3]uint64{tCoord.X % perSource[0], tCoord.Y % perSource[1], tCoord.Z % perSource[2]}

	sl := r.src.SourceLOD(int(targetKey.LOD))
	tEff := [3]uint64{r.tbs[0] - 2*uint64(r.overlap), r.tbs[1] - 2*uint64(r.overlap), r.tbs[2] - 2*uint64(r.overlap)}
	voxelOffset := [3]uint64{localIdx[0] * tEff[0], localIdx[1] * tEff[1], localIdx[2] * tEff[2]}

	sourceKey := base.BrickKey{
		Timestep: targetKey.Timestep,
		LOD:      targetKey.LOD,
		Index:    layout.BrickCoordsToIndex(sl, sourceCoord),
	}
	return sourceKey, voxelOffset
}

func (r *Rebricker) getSourceBrick(key base.BrickKey) ([]byte, [3]uint32, error) {
	if el, ok := r.cacheIdx[key]; ok {
		r.cacheOrder.MoveToFront(el)
		if r.metrics != nil {
			r.metrics.CacheHits.Inc()
		}
		item := el.Value.(*cacheItem)
		n, err := r.src.ComputeBrickSize(key)
		if err != nil {
			return nil, n, err
		}
		return item.data, n, nil
	}
	if r.metrics != nil {
		r.metrics.CacheMisses.Inc()
	}
	n, err := r.src.ComputeBrickSize(key)
	if err != nil {
		return nil, n, err
	}
	data := make([]byte, int(n[0])*int(n[1])*int(n[2])*r.src.Format().BytesPerVoxel())
	if err := r.src.GetBrickData(data, key); err != nil {
		return nil, n, err
	}
	r.admit(key, data)
	return data, n, nil
}

func (r *Rebricker) admit(key base.BrickKey, data []byte) {
	el := r.cacheOrder.PushFront(&cacheItem{key: key, data: data})
	r.cacheIdx[key] = el
	r.cacheBytes += len(data)
	for r.cacheBytes > r.budget && r.cacheOrder.Len() > 1 {
		back := r.cacheOrder.Back()
		item := back.Value.(*cacheItem)
		r.cacheOrder.Remove(back)
		delete(r.cacheIdx, item.key)
		r.cacheBytes -= len(item.data)
		if r.metrics != nil {
			r.metrics.Evictions.Inc()
		}
	}
}

// GetBrick copies the target brick's typed bytes into dst, which must hold
// at least the voxel count ComputeTargetBrickSize reports for targetKey
// times BytesPerVoxel (spec.md §4.9 "GetBrick (typed)").
func (r *Rebricker) GetBrick(dst []byte, targetKey base.BrickKey) error {
	sourceKey, voxelOffset := r.mapToSource(targetKey)
	srcData, srcSize, err := r.getSourceBrick(sourceKey)
	if err != nil {
		return err
	}
	stride := r.src.Format().BytesPerVoxel()
	tn := r.ComputeTargetBrickSize(targetKey)

	if voxelOffset[0]+uint64(tn[0]) > uint64(srcSize[0]) ||
		voxelOffset[1]+uint64(tn[1]) > uint64(srcSize[1]) ||
		voxelOffset[2]+uint64(tn[2]) > uint64(srcSize[2]) {
		return base.OutOfRangef("rebrick: target brick %+v does not fit inside its source brick", targetKey)
	}

	for z := uint64(0); z < uint64(tn[2]); z++ {
		for y := uint64(0); y < uint64(tn[1]); y++ {
			srcRowOff := ((voxelOffset[2]+z)*uint64(srcSize[1])*uint64(srcSize[0]) + (voxelOffset[1]+y)*uint64(srcSize[0]) + voxelOffset[0]) * uint64(stride)
			dstRowOff := (z*uint64(tn[1])*uint64(tn[0]) + y*uint64(tn[0])) * uint64(stride)
			rowBytes := uint64(tn[0]) * uint64(stride)
			copy(dst[dstRowOff:dstRowOff+rowBytes], srcData[srcRowOff:srcRowOff+rowBytes])
		}
	}
	return nil
}

// ComputeTargetBrickSize returns the target brick's voxel count, including
// ghost overlap, following the same interior/boundary rule as the octree
// layout (spec.md §3).
func (r *Rebricker) ComputeTargetBrickSize(key base.BrickKey) [3]uint32 {
	l := r.targetLODs[key.LOD]
	coord := layout.IndexToBrickCoords(l, key.Index)
	eff := layout.EffectiveBrickSize(r.tbs, r.overlap)
	return layout.BrickVoxelCount(l, r.tbs, eff, r.overlap, coord)
}

// MinMax returns (min, max) for a target brick per the configured mode
// (spec.md §4.9 "Min/max modes").
func (r *Rebricker) MinMax(targetKey base.BrickKey, sourceMinMax func(base.BrickKey) (float64, float64, error)) (float64, float64, error) {
	switch r.mode {
	case MinMaxSource:
		sourceKey, _ := r.mapToSource(targetKey)
		return sourceMinMax(sourceKey)
	case MinMaxPrecompute:
		v, ok := r.precomputed[targetKey]
		if !ok {
			return 0, 0, base.OutOfRangef("rebrick: no precomputed min/max for %+v", targetKey)
		}
		return v[0], v[1], nil
	default: // MinMaxDynamic
		return r.scanMinMax(targetKey)
	}
}

func (r *Rebricker) scanMinMax(key base.BrickKey) (float64, float64, error) {
	n := r.ComputeTargetBrickSize(key)
	data := make([]byte, int(n[0])*int(n[1])*int(n[2])*r.src.Format().BytesPerVoxel())
	if err := r.GetBrick(data, key); err != nil {
		return 0, 0, err
	}
	min, max := scanExtrema(data, r.src.Format())
	return min, max, nil
}

// scanExtrema walks every scalar sample of component 0 across data (a
// typed, possibly multi-component voxel buffer), widening per component
// type the same way convert.sampleAsFloat does. An unknown component type,
// or a buffer that is not a whole number of voxels, yields (0, 0).
func scanExtrema(data []byte, f base.VoxelFormat) (float64, float64) {
	stride := f.BytesPerVoxel()
	if stride == 0 || len(data) == 0 || len(data)%stride != 0 {
		return 0, 0
	}
	widen, ok := scalarWidener(f.Type)
	if !ok {
		return 0, 0
	}
	min, max := widen(data[0:f.Type.Size()]), widen(data[0:f.Type.Size()])
	for off := 0; off+stride <= len(data); off += stride {
		v := widen(data[off : off+f.Type.Size()])
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// scalarWidener returns a function widening one component 0 scalar's raw
// little-endian bytes to float64, for the component types scanExtrema
// supports.
func scalarWidener(t base.ComponentType) (func([]byte) float64, bool) {
	switch t {
	case base.ComponentU8:
		return func(b []byte) float64 { return float64(b[0]) }, true
	case base.ComponentI8:
		return func(b []byte) float64 { return float64(int8(b[0])) }, true
	case base.ComponentU16:
		return func(b []byte) float64 { return float64(uint16(b[0]) | uint16(b[1])<<8) }, true
	case base.ComponentI16:
		return func(b []byte) float64 { return float64(int16(uint16(b[0]) | uint16(b[1])<<8)) }, true
	case base.ComponentU32:
		return func(b []byte) float64 { return float64(binary.LittleEndian.Uint32(b)) }, true
	case base.ComponentI32:
		return func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }, true
	case base.ComponentU64:
		return func(b []byte) float64 { return float64(binary.LittleEndian.Uint64(b)) }, true
	case base.ComponentI64:
		return func(b []byte) float64 { return float64(int64(binary.LittleEndian.Uint64(b))) }, true
	case base.ComponentF32:
		return func(b []byte) float64 {
			bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
			return float64(math.Float32frombits(bits))
		}, true
	case base.ComponentF64:
		return func(b []byte) float64 {
			var bits uint64
			for i := 0; i < 8; i++ {
				bits |= uint64(b[i]) << (8 * i)
			}
			return math.Float64frombits(bits)
		}, true
	default:
		return nil, false
	}
}

func (r *Rebricker) precomputeAll() error {
	for lod, l := range r.targetLODs {
		for idx := l.LODOffset; idx < l.LODOffset+l.TotalBricks(); idx++ {
			key := base.BrickKey{LOD: uint32(lod), Index: idx}
			min, max, err := r.scanMinMax(key)
			if err != nil {
				return err
			}
			r.precomputed[key] = [2]float64{min, max}
		}
	}
	return nil
}

// SideCacheFilename returns the on-disk name of the precompute mode's
// side-cache file (spec.md §6 "Filename is '.' + '{bx}x{by}x{bz}-' +
// basename(source) + '.cached'").
func SideCacheFilename(tbs [3]uint64, sourceBasename string) string {
	return fmt.Sprintf(".%dx%dx%d-%s.cached", tbs[0], tbs[1], tbs[2], sourceBasename)
}

// sideCacheTag is the xxhash64 of the source basename and TBS, stored in
// the side-cache file so a later open can detect a stale cache without
// re-scanning (spec.md §4.9 "subsequent opens skip the expensive pass" —
// validating the tag is the cheap check that makes that safe).
func sideCacheTag(tbs [3]uint64, sourceBasename string) uint64 {
	h := xxhash.New()
	_, _ = h.Write([]byte(fmt.Sprintf("%d,%d,%d,%s", tbs[0], tbs[1], tbs[2], sourceBasename)))
	return h.Sum64()
}
