package histogram

import (
	"github.com/guptarohit/asciigraph"
)

// DebugString renders the 1D histogram as an ASCII sparkline, for use
// behind debug.Enabled(...) call sites (spec.md §9 "debug facilities are
// opt-in").
func (h *Histogram1D) DebugString() string {
	if len(h.Bins) == 0 {
		return "histogram1d: empty"
	}
	data := make([]float64, len(h.Bins))
	for i, v := range h.Bins {
		data[i] = float64(v)
	}
	return asciigraph.Plot(data, asciigraph.Height(10))
}
