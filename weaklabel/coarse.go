// Package weaklabel derives the weak label set of an image from its coarse
// annotation or its image-level tags, at the resolution of the network output.
package weaklabel

import "fmt"

import "github.com/neurlang/weakseg/estep"

// Ignore marks void pixels in a coarse label map.
const Ignore = 255

// CoarseLabelMap is a row-major [Height, Width] class map. Its pixel values
// only tell which classes occur; they are never used as targets.
type CoarseLabelMap struct {
	Height, Width int
	Data          []uint8
}

// Shrink resizes m to height x width by nearest neighbour sampling, taking
// source row floor(y*m.Height/height) and column floor(x*m.Width/width).
func Shrink(m *CoarseLabelMap, height, width int) (*CoarseLabelMap, error) {
	if m == nil || m.Height <= 0 || m.Width <= 0 || len(m.Data) != m.Height*m.Width {
		return nil, fmt.Errorf("%w: malformed coarse label map", estep.ErrShapeMismatch)
	}
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: cannot shrink to %dx%d", estep.ErrShapeMismatch, height, width)
	}
	o := &CoarseLabelMap{Height: height, Width: width, Data: make([]uint8, height*width)}
	for y := 0; y < height; y++ {
		sy := y * m.Height / height
		for x := 0; x < width; x++ {
			sx := x * m.Width / width
			o.Data[y*width+x] = m.Data[sy*m.Width+sx]
		}
	}
	return o, nil
}

// Present collects the classes below classes that occur in m. Void and out
// of range values are skipped; background is always present.
func Present(m *CoarseLabelMap, classes int) estep.LabelSet {
	s := estep.NewLabelSet()
	for _, v := range m.Data {
		if v != Ignore && int(v) < classes {
			s[uint16(v)] = struct{}{}
		}
	}
	return s
}

// FromCoarse shrinks m to the network output resolution and returns the
// classes it contains, sized for that resolution.
func FromCoarse(m *CoarseLabelMap, height, width, classes int) (*estep.WeakLabels, error) {
	small, err := Shrink(m, height, width)
	if err != nil {
		return nil, err
	}
	return &estep.WeakLabels{Present: Present(small, classes), Height: height, Width: width}, nil
}

// FromTags builds weak labels from image-level tags.
func FromTags(tags []int, height, width, classes int) (*estep.WeakLabels, error) {
	s := estep.NewLabelSet()
	for _, t := range tags {
		if t < 0 || t >= classes {
			return nil, fmt.Errorf("%w: tag %d out of %d classes", estep.ErrShapeMismatch, t, classes)
		}
		s[uint16(t)] = struct{}{}
	}
	return &estep.WeakLabels{Present: s, Height: height, Width: width}, nil
}
