package estep

// Workspace owns every buffer a backend needs for one call. It grows only
// while preparing a call, so the pixel loops never allocate. A Workspace must
// not be shared between goroutines; reuse it across calls instead.
type Workspace struct {
	mask    []bool    // class -> present in the allowed set
	allowed []uint16  // allowed classes, ascending, background first
	rank    []int32   // class -> position in allowed, or -1
	votes   []int32   // neighbour votes of the current pixel
	q       []float32 // suppressed distribution
	score   []float32 // propagation scores

	seed      []bool
	cur, next []uint16
}

// NewWorkspace returns an empty workspace.
func NewWorkspace() *Workspace {
	return new(Workspace)
}

func grow[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// prepare builds the allowed class tables and sizes the buffers. A compact
// layout stores only the allowed classes per pixel and one row of scores.
func (w *Workspace) prepare(p *ProbabilityMap, l *WeakLabels, compact bool) {
	n := p.Height * p.Width
	w.mask = grow(w.mask, p.Classes)
	w.rank = grow(w.rank, p.Classes)
	for c := range w.mask {
		w.mask[c] = false
		w.rank[c] = -1
	}
	w.mask[Background] = true
	for c := range l.Present {
		w.mask[c] = true
	}
	w.allowed = w.allowed[:0]
	for c, ok := range w.mask {
		if ok {
			w.rank[c] = int32(len(w.allowed))
			w.allowed = append(w.allowed, uint16(c))
		}
	}
	var k = len(w.allowed)
	w.votes = grow(w.votes, k)
	if compact {
		w.q = grow(w.q, n*k)
		w.score = grow(w.score, k)
	} else {
		w.q = grow(w.q, n*p.Classes)
		w.score = grow(w.score, n*p.Classes)
	}
	w.seed = grow(w.seed, n)
	w.cur = grow(w.cur, n)
	w.next = grow(w.next, n)
}
