package main

import "fmt"
import "math"

import "github.com/neurlang/weakseg/batch"
import "github.com/neurlang/weakseg/estep"
import "github.com/neurlang/weakseg/trainer"

// pixelNet is the smallest network the trainer can drive: its parameters are
// the logits of every pixel of a fixed set of images.
type pixelNet struct {
	params  [][]float32
	logits  [][]float32
	h, w, c int
	rate    float32
}

func newPixelNet(items []batch.Item, rate float32) *pixelNet {
	n := &pixelNet{rate: rate}
	for _, it := range items {
		p := it.Probs
		n.h, n.w, n.c = p.Height, p.Width, p.Classes
		param := make([]float32, len(p.Data))
		for i, v := range p.Data {
			param[i] = float32(math.Log(float64(v) + 1e-6))
		}
		n.params = append(n.params, param)
		n.logits = append(n.logits, make([]float32, len(p.Data)))
	}
	return n
}

func (n *pixelNet) Forward() ([]*estep.ProbabilityMap, [][]float32, error) {
	probs := make([]*estep.ProbabilityMap, len(n.params))
	for i, param := range n.params {
		copy(n.logits[i], param)
		p := estep.NewProbabilityMap(n.h, n.w, n.c)
		for j := 0; j < n.h*n.w; j++ {
			row, px := param[j*n.c:(j+1)*n.c], p.Data[j*n.c:(j+1)*n.c]
			top := row[0]
			for _, v := range row[1:] {
				top = max(top, v)
			}
			var sum float32
			for k, v := range row {
				px[k] = float32(math.Exp(float64(v - top)))
				sum += px[k]
			}
			for k := range px {
				px[k] /= sum
			}
		}
		probs[i] = p
	}
	return probs, n.logits, nil
}

func (n *pixelNet) Backward(grad [][]float32) error {
	if len(grad) != len(n.params) {
		return fmt.Errorf("%d gradients for %d images", len(grad), len(n.params))
	}
	// gradients are averaged over every pixel of the batch
	scale := n.rate * float32(len(n.params)*n.h*n.w)
	for i, g := range grad {
		for k, v := range g {
			n.params[i][k] -= scale * v
		}
	}
	return nil
}

// runTraining fits a pixelNet to the pseudo-labels of one synthetic batch.
func runTraining(d *batch.Dispatcher, items []batch.Item, steps, every int) error {
	net := newPixelNet(items, 0.5)
	weak := make([]*estep.WeakLabels, len(items))
	for i, it := range items {
		weak[i] = it.Labels
	}
	next := func(int) ([]*estep.WeakLabels, error) {
		return weak, nil
	}
	return trainer.NewLoopFunc(trainer.NewStepFunc(net, d), next, steps, every)()
}

