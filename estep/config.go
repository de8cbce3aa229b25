package estep

import "fmt"

// Config holds the fixed parameters of the label inference engine.
// It is set once per training run and never changed mid-run.
type Config struct {
	BgP float32 // background seed threshold on the (suppressed) probability
	FgP float32 // foreground seed threshold on the (suppressed) probability

	NumIter int // number of propagation passes, always run to completion

	SuppressOthers bool    // zero the mass of classes absent from the weak labels
	MarginOthers   float32 // floor on the surviving mass when renormalizing
}

// DefaultConfig returns the thresholds used for PASCAL VOC training.
func DefaultConfig() Config {
	return Config{
		BgP:            0.4,
		FgP:            0.2,
		NumIter:        5,
		SuppressOthers: true,
		MarginOthers:   1e-5,
	}
}

// Validate reports ErrInvalidConfig if any threshold lies outside (0,1)
// or NumIter is lower than 1.
func (c Config) Validate() error {
	if !(c.BgP > 0 && c.BgP < 1) {
		return fmt.Errorf("%w: bg_p %v not in (0,1)", ErrInvalidConfig, c.BgP)
	}
	if !(c.FgP > 0 && c.FgP < 1) {
		return fmt.Errorf("%w: fg_p %v not in (0,1)", ErrInvalidConfig, c.FgP)
	}
	if c.NumIter < 1 {
		return fmt.Errorf("%w: num_iter %d is lower than 1", ErrInvalidConfig, c.NumIter)
	}
	if !(c.MarginOthers > 0 && c.MarginOthers < 1) {
		return fmt.Errorf("%w: margin_others %v not in (0,1)", ErrInvalidConfig, c.MarginOthers)
	}
	return nil
}
