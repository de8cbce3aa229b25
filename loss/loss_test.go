package loss

import (
	"errors"
	"math"
	"testing"
)

func TestUniformLogits(t *testing.T) {
	logits := make([]float32, 4*5)
	labels := []uint16{0, 1, 4, 2}
	got, err := SparseSoftmaxCrossEntropy(logits, labels, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := math.Log(5); math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLargeLogitsStayFinite(t *testing.T) {
	logits := []float32{1000, 0, -1000, 0, 1000, 0}
	got, err := SparseSoftmaxCrossEntropy(logits, []uint16{0, 0}, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	// first pixel is certain, second costs 1000 nats
	if math.IsInf(got, 0) || math.IsNaN(got) || math.Abs(got-500) > 1e-6 {
		t.Errorf("got %v, want 500", got)
	}
}

func TestGradient(t *testing.T) {
	logits := []float32{0.5, -1, 2, 0.1, 0.1, 0.3}
	labels := []uint16{2, 0}
	grad := make([]float32, len(logits))
	base, err := SparseSoftmaxCrossEntropy(logits, labels, 3, grad)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		var s float32
		for _, g := range grad[i*3 : (i+1)*3] {
			s += g
		}
		if math.Abs(float64(s)) > 1e-6 {
			t.Errorf("pixel %d gradient sums to %v", i, s)
		}
	}
	// central differences
	const eps = 1e-2
	for k := range logits {
		orig := logits[k]
		logits[k] = orig + eps
		up, _ := SparseSoftmaxCrossEntropy(logits, labels, 3, nil)
		logits[k] = orig - eps
		down, _ := SparseSoftmaxCrossEntropy(logits, labels, 3, nil)
		logits[k] = orig
		numeric := (up - down) / (2 * eps)
		if math.Abs(numeric-float64(grad[k])) > 1e-3 {
			t.Errorf("logit %d: analytic %v numeric %v (loss %v)", k, grad[k], numeric, base)
		}
	}
}

func TestShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		logits []float32
		labels []uint16
		grad   []float32
	}{
		{"short logits", make([]float32, 5), []uint16{0, 1}, nil},
		{"label out of range", make([]float32, 6), []uint16{0, 3}, nil},
		{"short gradient", make([]float32, 6), []uint16{0, 1}, make([]float32, 5)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := SparseSoftmaxCrossEntropy(tc.logits, tc.labels, 3, tc.grad); !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("got %v", err)
			}
		})
	}
}
