// Package batch runs the E-step over every image of a mini-batch and
// assembles the pseudo-labels into one [B,H,W] batch.
package batch

import "fmt"
import "sync"

import "github.com/neurlang/weakseg/estep"
import "github.com/neurlang/weakseg/parallel"

// Item is one image of a mini-batch.
type Item struct {
	Probs  *estep.ProbabilityMap
	Labels *estep.WeakLabels
}

// Batch is a row-major [Size, Height, Width] block of pseudo-labels.
type Batch struct {
	Size, Height, Width int
	Data                []uint16
}

// At returns image i as a pseudo-label map sharing the batch memory.
func (b *Batch) At(i int) *estep.PseudoLabelMap {
	n := b.Height * b.Width
	return &estep.PseudoLabelMap{Height: b.Height, Width: b.Width, Data: b.Data[i*n : (i+1)*n : (i+1)*n]}
}

// Sum fingerprints the batch shape and labels. Equal batches always share the
// fingerprint.
func (b *Batch) Sum() [32]byte {
	h := parallel.NewHasher(len(b.Data), b.Size, b.Height, b.Width)
	parallel.ForEach(b.Size, DefaultWorkers(), func(i int) {
		base := i * b.Height * b.Width
		for j, v := range b.At(i).Data {
			h.MustPut(base+j, v)
		}
	})
	return h.Sum()
}

// Compare returns the first position where a and b differ, or -1 when they
// are identical. Batches of different shape differ at position 0.
func Compare(a, b *Batch) int {
	if a.Size != b.Size || a.Height != b.Height || a.Width != b.Width || len(a.Data) != len(b.Data) {
		return 0
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return i
		}
	}
	return -1
}

// Dispatcher runs one engine over whole batches. Images are independent, so
// they are spread over a pool of Workers goroutines; the call still blocks
// until every image is labelled.
type Dispatcher struct {
	Engine  *estep.Engine
	Workers int // 0 selects DefaultWorkers()
}

// New returns a dispatcher with the default worker count.
func New(e *estep.Engine) *Dispatcher {
	return &Dispatcher{Engine: e}
}

func (d *Dispatcher) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return DefaultWorkers()
}

// Run labels every item and returns the batch in input order with the summed
// stats. All items must share one resolution. When several items fail, the
// error of the lowest index is returned.
func (d *Dispatcher) Run(items []Item) (*Batch, estep.Stats, error) {
	var total estep.Stats
	if len(items) == 0 {
		return &Batch{}, total, nil
	}
	for i, it := range items {
		if it.Probs == nil || it.Labels == nil {
			return nil, total, fmt.Errorf("item %d: %w: nil input", i, estep.ErrShapeMismatch)
		}
		if it.Probs.Height != items[0].Probs.Height || it.Probs.Width != items[0].Probs.Width {
			return nil, total, fmt.Errorf("item %d: %w: %dx%d in a batch of %dx%d", i, estep.ErrShapeMismatch,
				it.Probs.Height, it.Probs.Width, items[0].Probs.Height, items[0].Probs.Width)
		}
	}
	h, w := items[0].Probs.Height, items[0].Probs.Width
	if h <= 0 || w <= 0 {
		return nil, total, fmt.Errorf("item 0: %w: probability map is %dx%d", estep.ErrShapeMismatch, h, w)
	}
	out := &Batch{Size: len(items), Height: h, Width: w, Data: make([]uint16, len(items)*h*w)}

	var mut sync.Mutex
	var errs = make([]error, len(items))
	parallel.ForEach(len(items), d.workers(), func(i int) {
		ws := d.Engine.GetWorkspace()
		st, err := d.Engine.InferInto(ws, items[i].Probs, items[i].Labels, out.At(i))
		d.Engine.PutWorkspace(ws)
		if err != nil {
			errs[i] = err
			return
		}
		mut.Lock()
		total.Add(st)
		mut.Unlock()
	})
	for i, err := range errs {
		if err != nil {
			return nil, total, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return out, total, nil
}
