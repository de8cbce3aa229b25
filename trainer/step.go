package trainer

import "fmt"

import "github.com/neurlang/weakseg/batch"
import "github.com/neurlang/weakseg/estep"
import "github.com/neurlang/weakseg/loss"

// Network is the network side of a training step.
type Network interface {
	// Forward runs the current mini-batch and returns, per image, the softmax
	// probability map and the raw logits, both at label map resolution.
	Forward() (probs []*estep.ProbabilityMap, logits [][]float32, err error)

	// Backward applies the gradient of the batch loss with respect to the
	// logits returned by the last Forward.
	Backward(grad [][]float32) error
}

// StepFunc runs one training step against the weak labels of the mini-batch
// and returns its loss.
type StepFunc func(weak []*estep.WeakLabels) (float64, error)

// NewStepFunc returns the step function of net. The returned function reuses
// its gradient buffers and must not be called concurrently.
func NewStepFunc(net Network, d *batch.Dispatcher) StepFunc {
	var grads [][]float32
	return func(weak []*estep.WeakLabels) (float64, error) {
		probs, logits, err := net.Forward()
		if err != nil {
			return 0, err
		}
		if len(probs) != len(weak) || len(logits) != len(probs) {
			return 0, fmt.Errorf("%w: %d probability maps, %d logits, %d weak labels",
				estep.ErrShapeMismatch, len(probs), len(logits), len(weak))
		}

		var items = make([]batch.Item, len(probs))
		for i := range items {
			items[i] = batch.Item{Probs: probs[i], Labels: weak[i]}
		}
		labels, _, err := d.Run(items)
		if err != nil {
			return 0, err
		}

		for len(grads) < len(logits) {
			grads = append(grads, nil)
		}
		grads = grads[:len(logits)]
		var total float64
		for i := range logits {
			if cap(grads[i]) < len(logits[i]) {
				grads[i] = make([]float32, len(logits[i]))
			}
			grads[i] = grads[i][:len(logits[i])]
			l, err := loss.SparseSoftmaxCrossEntropy(logits[i], labels.At(i).Data, probs[i].Classes, grads[i])
			if err != nil {
				return 0, fmt.Errorf("image %d: %w", i, err)
			}
			total += l
		}
		if len(logits) == 0 {
			return 0, nil
		}
		var scale = 1 / float32(len(logits))
		for _, g := range grads {
			for k := range g {
				g[k] *= scale
			}
		}
		if err := net.Backward(grads); err != nil {
			return 0, err
		}
		return total / float64(len(logits)), nil
	}
}
