package batch

import (
	"bytes"
	"errors"
	"log"
	"math/rand"
	"strings"
	"testing"

	"github.com/neurlang/weakseg/estep"
)

func init() {
	estep.SetLogger(log.New(&bytes.Buffer{}, "", 0))
}

func randomItems(r *rand.Rand, b, h, w, c int) []Item {
	items := make([]Item, b)
	for i := range items {
		p := estep.NewProbabilityMap(h, w, c)
		for j := 0; j < h*w; j++ {
			px := p.Data[j*c : (j+1)*c]
			var sum float32
			for k := range px {
				px[k] = r.Float32() * r.Float32()
				sum += px[k]
			}
			for k := range px {
				px[k] /= sum
			}
		}
		present := estep.NewLabelSet(uint16(1 + r.Intn(c-1)))
		items[i] = Item{Probs: p, Labels: &estep.WeakLabels{Present: present, Height: h, Width: w}}
	}
	return items
}

func TestRunKeepsInputOrder(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	items := randomItems(r, 9, 13, 11, 6)
	e := estep.MustNew(estep.DefaultConfig(), estep.Reference)
	d := &Dispatcher{Engine: e, Workers: 4}
	got, _, err := d.Run(items)
	if err != nil {
		t.Fatal(err)
	}
	if got.Size != 9 || got.Height != 13 || got.Width != 11 || len(got.Data) != 9*13*11 {
		t.Fatalf("bad batch shape %d %d %d", got.Size, got.Height, got.Width)
	}
	for i, it := range items {
		want, err := e.Infer(it.Probs, it.Labels)
		if err != nil {
			t.Fatal(err)
		}
		at := got.At(i)
		for j := range want.Data {
			if at.Data[j] != want.Data[j] {
				t.Fatalf("image %d pixel %d: batch %d single %d", i, j, at.Data[j], want.Data[j])
			}
		}
	}
}

// shared conformance check: every backend and pool size yields one fingerprint
func TestBackendsAndWorkersAgree(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	items := randomItems(r, 16, 21, 21, 8)
	var first *Batch
	var sum [32]byte
	for _, b := range estep.Backends() {
		for _, workers := range []int{1, 3, 0} {
			d := &Dispatcher{Engine: estep.MustNew(estep.DefaultConfig(), b), Workers: workers}
			got, _, err := d.Run(items)
			if err != nil {
				t.Fatal(err)
			}
			if first == nil {
				first, sum = got, got.Sum()
				continue
			}
			if at := Compare(first, got); at >= 0 {
				t.Fatalf("%s with %d workers differs at %d", b.Name(), workers, at)
			}
			if got.Sum() != sum {
				t.Errorf("%s with %d workers: fingerprint %x, want %x", b.Name(), workers, got.Sum(), sum)
			}
		}
	}
}

func TestRunReportsLowestFailure(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	items := randomItems(r, 6, 4, 4, 3)
	items[4].Labels = &estep.WeakLabels{Present: estep.LabelSet{}}
	items[2].Labels = &estep.WeakLabels{Present: estep.NewLabelSet(1), Height: 8, Width: 8}
	d := New(estep.MustNew(estep.DefaultConfig(), nil))
	got, _, err := d.Run(items)
	if got != nil {
		t.Errorf("batch returned with error")
	}
	if !errors.Is(err, estep.ErrShapeMismatch) || !strings.HasPrefix(err.Error(), "item 2:") {
		t.Errorf("got %v, want item 2 shape mismatch", err)
	}
}

func TestRunRejectsMixedResolution(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	items := append(randomItems(r, 2, 4, 4, 3), randomItems(r, 1, 5, 4, 3)...)
	_, _, err := New(estep.MustNew(estep.DefaultConfig(), nil)).Run(items)
	if !errors.Is(err, estep.ErrShapeMismatch) {
		t.Errorf("got %v, want shape mismatch", err)
	}
}

func TestRunRejectsEmptyResolution(t *testing.T) {
	d := New(estep.MustNew(estep.DefaultConfig(), nil))
	for _, p := range []*estep.ProbabilityMap{
		{Height: -1, Width: 3, Classes: 2},
		{Height: 0, Width: 3, Classes: 2},
		{Height: 3, Width: -2, Classes: 2},
	} {
		items := []Item{{Probs: p, Labels: &estep.WeakLabels{Present: estep.NewLabelSet(1)}}}
		got, _, err := d.Run(items)
		if got != nil || !errors.Is(err, estep.ErrShapeMismatch) {
			t.Errorf("%dx%d: got %v, want shape mismatch", p.Height, p.Width, err)
		}
	}
}

func TestRunCountsStats(t *testing.T) {
	p := estep.NewProbabilityMap(1, 2, 3)
	copy(p.Data, []float32{0, 0, 1, 0.9, 0.05, 0.05})
	items := []Item{
		{Probs: p, Labels: &estep.WeakLabels{Present: estep.NewLabelSet(1)}},
		{Probs: p, Labels: &estep.WeakLabels{Present: estep.NewLabelSet(1)}},
	}
	_, st, err := New(estep.MustNew(estep.DefaultConfig(), nil)).Run(items)
	if err != nil {
		t.Fatal(err)
	}
	if st.Degenerate != 2 || st.Seeded != 4 {
		t.Errorf("got %+v, want 2 degenerate and 4 seeded", st)
	}
}

func TestEmptyBatch(t *testing.T) {
	got, _, err := New(estep.MustNew(estep.DefaultConfig(), nil)).Run(nil)
	if err != nil || got.Size != 0 {
		t.Errorf("got %+v, %v", got, err)
	}
}

func TestCompare(t *testing.T) {
	a := &Batch{Size: 1, Height: 1, Width: 3, Data: []uint16{0, 1, 2}}
	b := &Batch{Size: 1, Height: 1, Width: 3, Data: []uint16{0, 1, 2}}
	if at := Compare(a, b); at != -1 {
		t.Errorf("equal batches differ at %d", at)
	}
	b.Data[2] = 1
	if at := Compare(a, b); at != 2 {
		t.Errorf("got %d, want 2", at)
	}
	if at := Compare(a, &Batch{Size: 1, Height: 3, Width: 1, Data: []uint16{0, 1, 2}}); at != 0 {
		t.Errorf("different shapes compared equal")
	}
}

func TestSumSeesShape(t *testing.T) {
	a := &Batch{Size: 1, Height: 2, Width: 8, Data: make([]uint16, 16)}
	b := &Batch{Size: 2, Height: 4, Width: 2, Data: make([]uint16, 16)}
	if Compare(a, b) != 0 {
		t.Fatalf("batches of different shape compared equal")
	}
	if a.Sum() == b.Sum() {
		t.Errorf("batches of different shape share fingerprint %x", a.Sum())
	}
}

func BenchmarkRun(b *testing.B) {
	r := rand.New(rand.NewSource(5))
	items := randomItems(r, 8, 41, 41, 21)
	d := New(estep.MustNew(estep.DefaultConfig(), nil))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := d.Run(items); err != nil {
			b.Fatal(err)
		}
	}
}
