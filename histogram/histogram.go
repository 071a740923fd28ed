// Package histogram implements the 1D and 2D histogram blocks of spec.md
// §4.6. The 1D histogram counts raw component values into 2^bits bins; the
// 2D histogram cross-tabulates scalar value against gradient magnitude.
// Parallel aggregation of bricks into the 2D table is grounded on
// golang.org/x/sync/errgroup's fan-out-then-join shape; the bin
// table here is summed from independent per-worker partial tables rather
// than shared-memory atomics, since Go has no portable atomic-add-on-slice
// primitive as clean as C++'s std::atomic<uint64_t>&.
package histogram

import (
	"encoding/binary"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/iv3d/brickstore/container"
	"github.com/iv3d/brickstore/internal/base"
)

// Histogram1D is a dense count-per-value-bin table for one integer
// component, per spec.md §4.6.
type Histogram1D struct {
	Bins []uint64
}

// NewHistogram1D builds an empty table sized 2^bits, per the component's
// bit width. Returns ErrUnsupported for float components or bit widths
// above 32 (spec.md §4.6 "skipped for floats ... up to 32 bits").
func NewHistogram1D(c base.ComponentType) (*Histogram1D, error) {
	if c.IsFloat() {
		return nil, base.Unsupportedf("histogram: 1D histogram unsupported for float component type %s", c)
	}
	bits := c.BitsPerComponent()
	if bits > 32 {
		return nil, base.Unsupportedf("histogram: 1D histogram unsupported for %d-bit component type %s", bits, c)
	}
	return &Histogram1D{Bins: make([]uint64, 1<<uint(bits))}, nil
}

// Add increments the bin for one sample, given as the component's raw
// integer value biased so 0 is the smallest representable value (the
// caller is responsible for that bias; Histogram1D only counts bins).
func (h *Histogram1D) Add(bin uint32) {
	if int(bin) < len(h.Bins) {
		h.Bins[bin]++
	}
}

// Truncate shrinks Bins so its length equals the index of the largest
// non-zero bin plus 1 (spec.md §4.6).
func (h *Histogram1D) Truncate() {
	last := -1
	for i, v := range h.Bins {
		if v != 0 {
			last = i
		}
	}
	h.Bins = h.Bins[:last+1]
}

// Compress folds contiguous bins in integer-ratio groups until the
// histogram's length is at most maxTarget. A second call with the same
// maxTarget is a no-op (spec.md §8 idempotence property): once len(Bins)
// <= maxTarget the loop below never executes again.
func (h *Histogram1D) Compress(maxTarget int) {
	if maxTarget <= 0 || len(h.Bins) <= maxTarget {
		return
	}
	for len(h.Bins) > maxTarget {
		group := (len(h.Bins) + maxTarget - 1) / maxTarget
		newLen := (len(h.Bins) + group - 1) / group
		folded := make([]uint64, newLen)
		for i, v := range h.Bins {
			folded[i/group] += v
		}
		h.Bins = folded
	}
}

// Write persists the 1D histogram as a container block.
func (h *Histogram1D) Write(c *container.Container) error {
	_, err := c.BeginBlock("histogram1d-0", base.SemanticHistogram1D)
	if err != nil {
		return err
	}
	buf := make([]byte, 8+8*len(h.Bins))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(h.Bins)))
	for i, v := range h.Bins {
		binary.LittleEndian.PutUint64(buf[8+8*i:], v)
	}
	n, err := c.File().Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return base.ShortTransferf("histogram: short write of 1D histogram")
	}
	return c.FinishBlock()
}

// OpenHistogram1D reads the 1D histogram block from c, if present.
func OpenHistogram1D(c *container.Container) (*Histogram1D, bool, error) {
	blk, ok := c.FindBySemantic(base.SemanticHistogram1D)
	if !ok {
		return nil, false, nil
	}
	if blk.PayloadLength < 8 {
		return &Histogram1D{}, true, nil
	}
	hdr := make([]byte, 8)
	if _, err := c.File().ReadAt(hdr, blk.PayloadOffset); err != nil {
		return nil, false, err
	}
	count := binary.LittleEndian.Uint64(hdr)
	body := make([]byte, 8*count)
	n, err := c.File().ReadAt(body, blk.PayloadOffset+8)
	if err != nil {
		return nil, false, err
	}
	if uint64(n) != 8*count {
		return nil, false, base.ShortTransferf("histogram: truncated 1D histogram body")
	}
	h := &Histogram1D{Bins: make([]uint64, count)}
	for i := range h.Bins {
		h.Bins[i] = binary.LittleEndian.Uint64(body[8*i:])
	}
	return h, true, nil
}

// Histogram2D cross-tabulates scalar value (ScalarBins columns) against
// gradient magnitude (fixed 256 rows), per spec.md §4.6.
type Histogram2D struct {
	ScalarBins     int
	MaxNonZero     float64
	MaxGradient    float64
	Table          []uint64 // row-major: gradient*ScalarBins + scalar
}

const gradientBins = 256

// NewHistogram2D allocates an empty table. maxNonZero and maxGradient must
// be known from a first pass over the data before Add is meaningful (spec.md
// §4.6 "Built in two passes").
func NewHistogram2D(scalarBins int, maxNonZero, maxGradient float64) *Histogram2D {
	return &Histogram2D{
		ScalarBins:  scalarBins,
		MaxNonZero:  maxNonZero,
		MaxGradient: maxGradient,
		Table:       make([]uint64, scalarBins*gradientBins),
	}
}

func (h *Histogram2D) scalarBin(value float64) int {
	if h.MaxNonZero <= 0 {
		return 0
	}
	b := int(value / h.MaxNonZero * float64(h.ScalarBins))
	return clampBin(b, h.ScalarBins)
}

func (h *Histogram2D) gradientBin(gradient float64) int {
	if h.MaxGradient <= 0 {
		return 0
	}
	b := int(gradient / h.MaxGradient * float64(gradientBins))
	return clampBin(b, gradientBins)
}

func clampBin(b, n int) int {
	if b < 0 {
		return 0
	}
	if b >= n {
		return n - 1
	}
	return b
}

// Add increments the (scalar, gradient) bin for one voxel sample.
func (h *Histogram2D) Add(value, gradient float64) {
	s := h.scalarBin(value)
	g := h.gradientBin(gradient)
	h.Table[g*h.ScalarBins+s]++
}

// Merge adds another table's counts into h, element-wise. Used to combine
// per-worker partial tables after a parallel brick scan (spec.md §5
// "Parallel-safe aggregation is required").
func (h *Histogram2D) Merge(other *Histogram2D) {
	for i, v := range other.Table {
		h.Table[i] += v
	}
}

// BuildParallel scans bricks concurrently, each producing an independent
// Histogram2D via scanOne, then reduces them into one table. errgroup
// bounds the fan-out and surfaces the first error, matching the module's
// single-pass-per-brick, many-bricks-at-once concurrency model (spec.md §5
// "the 2D histogram inner loop is parallelizable across the outermost
// brick axis").
func BuildParallel(scalarBins int, maxNonZero, maxGradient float64, brickCount int, scanOne func(brickIndex int, h *Histogram2D) error) (*Histogram2D, error) {
	partials := make([]*Histogram2D, brickCount)
	var g errgroup.Group
	for i := 0; i < brickCount; i++ {
		i := i
		g.Go(func() error {
			partials[i] = NewHistogram2D(scalarBins, maxNonZero, maxGradient)
			return scanOne(i, partials[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	final := NewHistogram2D(scalarBins, maxNonZero, maxGradient)
	for _, p := range partials {
		final.Merge(p)
	}
	return final, nil
}

// Write persists the 2D histogram as a container block.
func (h *Histogram2D) Write(c *container.Container) error {
	_, err := c.BeginBlock("histogram2d-0", base.SemanticHistogram2D)
	if err != nil {
		return err
	}
	buf := make([]byte, 8+8+8+8*len(h.Table))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.ScalarBins))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(h.MaxNonZero))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(h.MaxGradient))
	for i, v := range h.Table {
		binary.LittleEndian.PutUint64(buf[24+8*i:], v)
	}
	n, err := c.File().Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return base.ShortTransferf("histogram: short write of 2D histogram")
	}
	return c.FinishBlock()
}

// OpenHistogram2D reads the 2D histogram block from c, if present.
func OpenHistogram2D(c *container.Container) (*Histogram2D, bool, error) {
	blk, ok := c.FindBySemantic(base.SemanticHistogram2D)
	if !ok {
		return nil, false, nil
	}
	hdr := make([]byte, 24)
	if _, err := c.File().ReadAt(hdr, blk.PayloadOffset); err != nil {
		return nil, false, err
	}
	scalarBins := int(binary.LittleEndian.Uint64(hdr[0:8]))
	h := &Histogram2D{
		ScalarBins:  scalarBins,
		MaxNonZero:  math.Float64frombits(binary.LittleEndian.Uint64(hdr[8:16])),
		MaxGradient: math.Float64frombits(binary.LittleEndian.Uint64(hdr[16:24])),
		Table:       make([]uint64, scalarBins*gradientBins),
	}
	body := make([]byte, 8*len(h.Table))
	n, err := c.File().ReadAt(body, blk.PayloadOffset+24)
	if err != nil {
		return nil, false, err
	}
	if n != len(body) {
		return nil, false, base.ShortTransferf("histogram: truncated 2D histogram body")
	}
	for i := range h.Table {
		h.Table[i] = binary.LittleEndian.Uint64(body[8*i:])
	}
	return h, true, nil
}
