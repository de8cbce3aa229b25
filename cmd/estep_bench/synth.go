package main

import "math"
import "math/rand"

import "github.com/neurlang/weakseg/batch"
import "github.com/neurlang/weakseg/estep"
import "github.com/neurlang/weakseg/weaklabel"

type disc struct {
	class      int
	cy, cx, rr float64 // centre and squared radius, as fractions of the image
}

// scene draws 1 to 3 foreground discs over background.
func scene(r *rand.Rand, classes int) (discs []disc) {
	for n := 1 + r.Intn(3); n > 0 && classes > 1; n-- {
		rad := 0.15 + 0.25*r.Float64()
		discs = append(discs, disc{1 + r.Intn(classes-1), r.Float64(), r.Float64(), rad * rad})
	}
	return
}

// coarse paints the scene at input resolution with a void ring around every
// disc, the way coarse annotations leave object boundaries unlabelled.
func coarse(discs []disc, input int) *weaklabel.CoarseLabelMap {
	m := &weaklabel.CoarseLabelMap{Height: input, Width: input, Data: make([]uint8, input*input)}
	for y := 0; y < input; y++ {
		for x := 0; x < input; x++ {
			fy, fx := float64(y)/float64(input), float64(x)/float64(input)
			for _, d := range discs {
				d2 := (fy-d.cy)*(fy-d.cy) + (fx-d.cx)*(fx-d.cx)
				switch {
				case d2 < 0.8*d.rr:
					m.Data[y*input+x] = uint8(d.class)
				case d2 < d.rr:
					m.Data[y*input+x] = weaklabel.Ignore
				}
			}
		}
	}
	return m
}

// softmax renders the scene at label map resolution as network output: a soft
// bump per disc plus per-class noise, absent classes only get noise.
func softmax(r *rand.Rand, discs []disc, h, w, c int) *estep.ProbabilityMap {
	p := estep.NewProbabilityMap(h, w, c)
	logits := make([]float64, c)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fy, fx := float64(y)/float64(h), float64(x)/float64(w)
			for k := range logits {
				logits[k] = r.NormFloat64()
			}
			logits[estep.Background] += 1.5
			for _, d := range discs {
				d2 := (fy-d.cy)*(fy-d.cy) + (fx-d.cx)*(fx-d.cx)
				logits[d.class] += 4 * math.Exp(-d2/d.rr)
			}
			top := logits[0]
			for _, v := range logits[1:] {
				if v > top {
					top = v
				}
			}
			var sum float64
			for k := range logits {
				logits[k] = math.Exp(logits[k] - top)
				sum += logits[k]
			}
			px := p.Pixel(y, x)
			for k := range px {
				px[k] = float32(logits[k] / sum)
			}
		}
	}
	return p
}

// synthesize draws one image: its weak labels come from a coarse annotation
// shrunk to the label map, its probabilities from a noisy rendering.
func synthesize(r *rand.Rand, input, classes int) (batch.Item, error) {
	discs := scene(r, classes)
	h, w := weaklabel.DeepLabStrides.OutputSize(input, input)
	l, err := weaklabel.FromCoarse(coarse(discs, input), h, w, classes)
	if err != nil {
		return batch.Item{}, err
	}
	return batch.Item{Probs: softmax(r, discs, h, w, classes), Labels: l}, nil
}

func synthesizeBatch(r *rand.Rand, size, input, classes int) ([]batch.Item, error) {
	items := make([]batch.Item, size)
	for i := range items {
		it, err := synthesize(r, input, classes)
		if err != nil {
			return nil, err
		}
		items[i] = it
	}
	return items, nil
}
