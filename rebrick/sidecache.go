package rebrick

import (
	"encoding/binary"
	"math"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/vfile"
)

func floatBits(f float64) uint64      { return math.Float64bits(f) }
func floatFromBits(b uint64) float64  { return math.Float64frombits(b) }

// WriteSideCache persists r's precomputed min/max table to path, tagged
// with an xxhash64 of (TBS, sourceBasename) so a later open can validate
// the cache applies to the same source and target brick size without
// re-scanning (spec.md §6 "Min/max side cache").
func (r *Rebricker) WriteSideCache(path, sourceBasename string) error {
	if r.mode != MinMaxPrecompute {
		return base.ConfigInvalidf("rebrick: WriteSideCache requires MinMaxPrecompute mode")
	}
	f, err := vfile.Create(path, false)
	if err != nil {
		return err
	}
	defer f.Close()

	tag := sideCacheTag(r.tbs, sourceBasename)
	header := make([]byte, 16)
	binary.LittleEndian.PutUint64(header[0:8], tag)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(r.precomputed)))
	if _, err := f.Write(header); err != nil {
		return err
	}
	for key, mm := range r.precomputed {
		rec := make([]byte, 8+8+8+8+8)
		binary.LittleEndian.PutUint64(rec[0:8], key.Timestep)
		binary.LittleEndian.PutUint64(rec[8:16], uint64(key.LOD))
		binary.LittleEndian.PutUint64(rec[16:24], key.Index)
		binary.LittleEndian.PutUint64(rec[24:32], floatBits(mm[0]))
		binary.LittleEndian.PutUint64(rec[32:40], floatBits(mm[1]))
		if _, err := f.Write(rec); err != nil {
			return err
		}
	}
	return f.Sync()
}

// ReadSideCache loads a previously written side-cache file and installs it
// as r's precomputed table, returning false (without error) if the file's
// tag does not match (TBS, sourceBasename) — the caller should fall back to
// a fresh precompute pass in that case.
func (r *Rebricker) ReadSideCache(path, sourceBasename string) (bool, error) {
	f, err := vfile.OpenReadOnly(path, false)
	if err != nil {
		return false, nil
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil {
		return false, err
	}
	if n != 16 {
		return false, base.ShortTransferf("rebrick: truncated side-cache header")
	}
	tag := binary.LittleEndian.Uint64(header[0:8])
	if tag != sideCacheTag(r.tbs, sourceBasename) {
		return false, nil
	}
	count := binary.LittleEndian.Uint64(header[8:16])

	precomputed := make(map[base.BrickKey][2]float64, count)
	rec := make([]byte, 40)
	for i := uint64(0); i < count; i++ {
		n, err := f.Read(rec)
		if err != nil {
			return false, err
		}
		if n != len(rec) {
			return false, base.ShortTransferf("rebrick: truncated side-cache record %d", i)
		}
		key := base.BrickKey{
			Timestep: binary.LittleEndian.Uint64(rec[0:8]),
			LOD:      uint32(binary.LittleEndian.Uint64(rec[8:16])),
			Index:    binary.LittleEndian.Uint64(rec[16:24]),
		}
		precomputed[key] = [2]float64{
			floatFromBits(binary.LittleEndian.Uint64(rec[24:32])),
			floatFromBits(binary.LittleEndian.Uint64(rec[32:40])),
		}
	}
	r.precomputed = precomputed
	r.mode = MinMaxPrecompute
	return true, nil
}
