package estep

import "errors"

var (
	// ErrShapeMismatch is returned when the probability map does not agree with
	// the label map resolution or with its own declared dimensions.
	ErrShapeMismatch = errors.New("estep: shape mismatch")

	// ErrInvalidConfig is returned for thresholds outside (0,1) or num_iter < 1.
	ErrInvalidConfig = errors.New("estep: invalid config")

	// ErrEmptyLabelSet is returned for an empty weak label set. Background is
	// always present, so an empty set is a caller bug.
	ErrEmptyLabelSet = errors.New("estep: empty label set")
)
