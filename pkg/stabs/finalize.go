package stabs

import (
	"sort"

	"github.com/go-kit/log/level"
	"github.com/samber/lo"

	"github.com/grafana/symdump/pkg/symbols"
)

// Finalize computes the size of every function and line and adds the
// retained functions to the module. It must be called exactly once, after
// the Reader is done.
//
// A function extends up to the nearest boundary above its start: the start
// of any function, the base of any compilation unit or any explicit end
// address. Its lines extend up to the next line, and the last one up to the
// end of the function.
func (h *DumpHandler) Finalize() {
	if h.current != noFunction {
		h.closeFunction(0)
	}

	boundaries := lo.Uniq(h.boundaries)
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i] < boundaries[j] })
	h.boundaries = nil

	retained := make([]int, 0, len(h.functions))
	for i := range h.functions {
		if !h.functions[i].artifact {
			retained = append(retained, i)
		}
	}
	sort.SliceStable(retained, func(i, j int) bool {
		return h.functions[retained[i]].Address < h.functions[retained[j]].Address
	})

	fallbacks := 0
	res := make([]*symbols.Function, 0, len(retained))
	for n, idx := range retained {
		f := &h.functions[idx].Function
		switch {
		case n+1 < len(retained) && h.functions[retained[n+1]].Address == f.Address:
			// a later duplicate owns the range
			f.Size = 0
		default:
			next, ok := nextBoundary(boundaries, f.Address)
			if ok {
				f.Size = next - f.Address
			} else {
				f.Size = FallbackSize
				fallbacks++
			}
		}
		finalizeLines(f)
		res = append(res, f)
	}

	h.module.AddFunctions(res...)

	dropped := len(h.functions) - len(retained)
	if m := h.opt.metrics; m != nil {
		m.Functions.Add(float64(len(res)))
		m.DroppedFunctions.Add(float64(dropped))
		m.FallbackSizes.Add(float64(fallbacks))
	}
	level.Debug(h.logger).Log("msg", "stabs finalized", "functions", len(res), "dropped", dropped, "fallback_sizes", fallbacks)
	h.functions = nil
}

// nextBoundary returns the smallest boundary strictly greater than addr.
func nextBoundary(boundaries []symbols.Address, addr symbols.Address) (symbols.Address, bool) {
	i := sort.Search(len(boundaries), func(i int) bool {
		return boundaries[i] > addr
	})
	if i == len(boundaries) {
		return 0, false
	}
	return boundaries[i], true
}

func finalizeLines(f *symbols.Function) {
	if len(f.Lines) == 0 {
		return
	}
	sort.SliceStable(f.Lines, func(i, j int) bool {
		return f.Lines[i].Address < f.Lines[j].Address
	})
	end := f.End()
	for i := range f.Lines {
		l := &f.Lines[i]
		next := end
		if i+1 < len(f.Lines) && f.Lines[i+1].Address < end {
			next = f.Lines[i+1].Address
		}
		if l.Address >= next {
			l.Size = 0
			continue
		}
		l.Size = next - l.Address
	}
}
