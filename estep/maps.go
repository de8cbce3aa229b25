// Package estep implements the weak-label inference step (E-step) that turns a
// softmax probability map and an image-level label set into a dense per-pixel
// pseudo-label map, used as the training target for that iteration.
package estep

import "fmt"
import "sort"

// Background is the class index of the background class.
const Background = 0

// MaxClasses is the largest number of classes a pseudo-label can address.
const MaxClasses = 1 << 16

// ProbabilityMap is a row-major [Height, Width, Classes] softmax output.
type ProbabilityMap struct {
	Height, Width, Classes int
	Data                   []float32
}

// NewProbabilityMap allocates a zeroed probability map.
func NewProbabilityMap(height, width, classes int) *ProbabilityMap {
	return &ProbabilityMap{
		Height:  height,
		Width:   width,
		Classes: classes,
		Data:    make([]float32, height*width*classes),
	}
}

// Pixel returns the class distribution of pixel (y, x).
func (p *ProbabilityMap) Pixel(y, x int) []float32 {
	i := (y*p.Width + x) * p.Classes
	return p.Data[i : i+p.Classes]
}

// LabelSet is the set of classes known to be present in an image.
type LabelSet map[uint16]struct{}

// NewLabelSet creates a label set from class indices. Background is added
// implicitly.
func NewLabelSet(classes ...uint16) LabelSet {
	s := make(LabelSet, len(classes)+1)
	s[Background] = struct{}{}
	for _, c := range classes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether class c is present.
func (s LabelSet) Has(c uint16) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the classes in ascending order.
func (s LabelSet) Sorted() (o []uint16) {
	o = make([]uint16, 0, len(s))
	for c := range s {
		o = append(o, c)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return
}

// WeakLabels is the image-level annotation of one image.
type WeakLabels struct {
	Present LabelSet

	// Height and Width are the label map resolution the set was derived at.
	// Zero leaves the probability map resolution unchecked.
	Height, Width int
}

// PseudoLabelMap holds one class index per pixel.
type PseudoLabelMap struct {
	Height, Width int
	Data          []uint16
}

// NewPseudoLabelMap allocates a pseudo-label map of the given size.
func NewPseudoLabelMap(height, width int) *PseudoLabelMap {
	return &PseudoLabelMap{
		Height: height,
		Width:  width,
		Data:   make([]uint16, height*width),
	}
}

// At returns the label of pixel (y, x).
func (m *PseudoLabelMap) At(y, x int) uint16 {
	return m.Data[y*m.Width+x]
}

// Stats counts what happened to the pixels of one call.
type Stats struct {
	Seeded     int // pixels fixed by the seeding pass
	Degenerate int // pixels without surviving mass, forced to background
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Seeded += o.Seeded
	s.Degenerate += o.Degenerate
}

func check(p *ProbabilityMap, l *WeakLabels) error {
	if p == nil || l == nil {
		return fmt.Errorf("%w: nil input", ErrShapeMismatch)
	}
	if len(l.Present) == 0 {
		return ErrEmptyLabelSet
	}
	if p.Height <= 0 || p.Width <= 0 || p.Classes <= 0 {
		return fmt.Errorf("%w: probability map is %dx%dx%d", ErrShapeMismatch, p.Height, p.Width, p.Classes)
	}
	if p.Classes > MaxClasses {
		return fmt.Errorf("%w: %d classes exceed %d", ErrShapeMismatch, p.Classes, MaxClasses)
	}
	if len(p.Data) != p.Height*p.Width*p.Classes {
		return fmt.Errorf("%w: probability map holds %d values, want %d",
			ErrShapeMismatch, len(p.Data), p.Height*p.Width*p.Classes)
	}
	if (l.Height != 0 || l.Width != 0) && (l.Height != p.Height || l.Width != p.Width) {
		return fmt.Errorf("%w: probability map is %dx%d, labels are %dx%d",
			ErrShapeMismatch, p.Height, p.Width, l.Height, l.Width)
	}
	for c := range l.Present {
		if int(c) >= p.Classes {
			return fmt.Errorf("%w: present class %d out of %d classes", ErrShapeMismatch, c, p.Classes)
		}
	}
	return nil
}
