// Package loss scores raw network logits against E-step pseudo-labels.
package loss

import "errors"
import "fmt"
import "math"

import "gonum.org/v1/gonum/floats"

// ErrShapeMismatch is returned when logits, labels and gradient disagree.
var ErrShapeMismatch = errors.New("loss: shape mismatch")

// SparseSoftmaxCrossEntropy returns the mean over pixels of
// -log softmax(logits)[label]. Logits are row-major [N, classes] and labels
// hold N class indices. When grad is not nil it receives the gradient of the
// mean loss with respect to the logits, (softmax - onehot) / N.
func SparseSoftmaxCrossEntropy(logits []float32, labels []uint16, classes int, grad []float32) (float64, error) {
	if classes <= 0 || len(logits) != len(labels)*classes {
		return 0, fmt.Errorf("%w: %d logits for %d labels of %d classes", ErrShapeMismatch, len(logits), len(labels), classes)
	}
	if grad != nil && len(grad) != len(logits) {
		return 0, fmt.Errorf("%w: gradient holds %d values, want %d", ErrShapeMismatch, len(grad), len(logits))
	}
	if len(labels) == 0 {
		return 0, nil
	}
	var row = make([]float64, classes)
	var sum float64
	var scale = 1 / float64(len(labels))
	for i, label := range labels {
		if int(label) >= classes {
			return 0, fmt.Errorf("%w: label %d at pixel %d out of %d classes", ErrShapeMismatch, label, i, classes)
		}
		for k := range row {
			row[k] = float64(logits[i*classes+k])
		}
		lse := floats.LogSumExp(row)
		sum += lse - row[label]
		if grad != nil {
			g := grad[i*classes : (i+1)*classes]
			for k := range g {
				g[k] = float32(math.Exp(row[k]-lse) * scale)
			}
			g[label] -= float32(scale)
		}
	}
	return sum * scale, nil
}
