// Package maxmin implements the per-brick, per-component acceleration
// block of spec.md §4.7: a {min, max, min_gradient, max_gradient} record
// per brick per component, plus a running global aggregate per component.
// It is grounded on the container/TOC pairing in octree: a MaxMin is
// written and read as a plain container block payload (semantic
// base.SemanticBrickMaxMin), the same way octree's TOC is a payload inside
// a block, just without a LOD table.
package maxmin

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/internal/base"
)

// Entry is one brick's per-component extrema.
type Entry struct {
	Min         []float64
	Max         []float64
	MinGradient []float64
	MaxGradient []float64
}

func newSentinelEntry(components int) Entry {
	e := Entry{
		Min:         make([]float64, components),
		Max:         make([]float64, components),
		MinGradient: make([]float64, components),
		MaxGradient: make([]float64, components),
	}
	for c := 0; c < components; c++ {
		e.Min[c] = math.Inf(1)
		e.Max[c] = math.Inf(-1)
		e.MinGradient[c] = math.Inf(1)
		e.MaxGradient[c] = math.Inf(-1)
	}
	return e
}

// Block holds every brick's Entry plus a running global aggregate.
type Block struct {
	Components int
	Entries    []Entry
	Global     Entry
}

// New creates an empty MaxMin block for the given component count.
func New(components int) *Block {
	return &Block{Components: components, Global: newSentinelEntry(components)}
}

// StartNewBrick appends a fresh all-sentinel entry and returns its index.
func (b *Block) StartNewBrick() int {
	b.Entries = append(b.Entries, newSentinelEntry(b.Components))
	return len(b.Entries) - 1
}

// Merge updates the most recently started brick's entry and the global
// aggregate with one more component-wise observation.
func (b *Block) Merge(component int, v, gradient float64) {
	if len(b.Entries) == 0 {
		panic(errors.AssertionFailedf("maxmin: Merge called before StartNewBrick"))
	}
	e := &b.Entries[len(b.Entries)-1]
	if v < e.Min[component] {
		e.Min[component] = v
	}
	if v > e.Max[component] {
		e.Max[component] = v
	}
	if gradient < e.MinGradient[component] {
		e.MinGradient[component] = gradient
	}
	if gradient > e.MaxGradient[component] {
		e.MaxGradient[component] = gradient
	}
	if v < b.Global.Min[component] {
		b.Global.Min[component] = v
	}
	if v > b.Global.Max[component] {
		b.Global.Max[component] = v
	}
	if gradient < b.Global.MinGradient[component] {
		b.Global.MinGradient[component] = gradient
	}
	if gradient > b.Global.MaxGradient[component] {
		b.Global.MaxGradient[component] = gradient
	}
}

// Get returns the entry for a brick index.
func (b *Block) Get(brickIndex int) Entry { return b.Entries[brickIndex] }

// GlobalEntry returns the running global aggregate across every brick
// merged so far.
func (b *Block) GlobalEntry() Entry { return b.Global }

// Write persists the block as a plain sequence of records preceded by
// brick-count and component-count (spec.md §4.7 "Persistence is a plain
// sequence of records preceded by brick-count and component-count").
func (b *Block) Write(c *container.Container) error {
	_, err := c.BeginBlock("maxmin-0", base.SemanticBrickMaxMin)
	if err != nil {
		return err
	}
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(b.Entries)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(b.Components))
	if _, err := c.File().Write(buf); err != nil {
		return err
	}
	for _, e := range b.Entries {
		if err := writeEntry(c, e); err != nil {
			return err
		}
	}
	if err := writeEntry(c, b.Global); err != nil {
		return err
	}
	return c.FinishBlock()
}

func writeEntry(c *container.Container, e Entry) error {
	buf := make([]byte, 8*4*len(e.Min))
	i := 0
	for _, v := range [][]float64{e.Min, e.Max, e.MinGradient, e.MaxGradient} {
		for _, f := range v {
			binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(f))
			i += 8
		}
	}
	n, err := c.File().Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return base.ShortTransferf("maxmin: short write of entry")
	}
	return nil
}

// Open reads an existing MaxMin block from c.
func Open(c *container.Container) (*Block, error) {
	blk, ok := c.FindBySemantic(base.SemanticBrickMaxMin)
	if !ok {
		return nil, base.FormatInvalidf("maxmin: container has no brick-maxmin block")
	}
	hdr := make([]byte, 16)
	n, err := c.File().ReadAt(hdr, blk.PayloadOffset)
	if err != nil {
		return nil, err
	}
	if n != 16 {
		return nil, base.ShortTransferf("maxmin: truncated block header")
	}
	count := binary.LittleEndian.Uint64(hdr[0:8])
	components := int(binary.LittleEndian.Uint64(hdr[8:16]))

	entrySize := 8 * 4 * components
	body := make([]byte, int(count+1)*entrySize)
	n, err = c.File().ReadAt(body, blk.PayloadOffset+16)
	if err != nil {
		return nil, err
	}
	if n != len(body) {
		return nil, base.ShortTransferf("maxmin: truncated entries (want %d got %d)", len(body), n)
	}
	b := &Block{Components: components}
	off := 0
	for i := uint64(0); i < count; i++ {
		e, consumed := decodeEntry(body[off:], components)
		b.Entries = append(b.Entries, e)
		off += consumed
	}
	b.Global, _ = decodeEntry(body[off:], components)
	return b, nil
}

func decodeEntry(buf []byte, components int) (Entry, int) {
	e := Entry{
		Min:         make([]float64, components),
		Max:         make([]float64, components),
		MinGradient: make([]float64, components),
		MaxGradient: make([]float64, components),
	}
	i := 0
	for _, v := range [][]float64{e.Min, e.Max, e.MinGradient, e.MaxGradient} {
		for c := range v {
			v[c] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i:]))
			i += 8
		}
	}
	return e, i
}
