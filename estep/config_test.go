package estep

import (
	"errors"
	"math"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		edit func(c *Config)
		ok   bool
	}{
		{"default", func(c *Config) {}, true},
		{"bg_p zero", func(c *Config) { c.BgP = 0 }, false},
		{"bg_p one", func(c *Config) { c.BgP = 1 }, false},
		{"bg_p nan", func(c *Config) { c.BgP = nan }, false},
		{"fg_p negative", func(c *Config) { c.FgP = -0.2 }, false},
		{"fg_p high", func(c *Config) { c.FgP = 0.999 }, true},
		{"num_iter zero", func(c *Config) { c.NumIter = 0 }, false},
		{"num_iter one", func(c *Config) { c.NumIter = 1 }, true},
		{"margin zero", func(c *Config) { c.MarginOthers = 0 }, false},
		{"no suppression", func(c *Config) { c.SuppressOthers = false }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.edit(&c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("MustNew accepted an invalid config")
		}
	}()
	MustNew(Config{}, nil)
}

func TestLabelSet(t *testing.T) {
	s := NewLabelSet(5, 2, 5)
	if !s.Has(Background) || !s.Has(2) || !s.Has(5) || s.Has(3) {
		t.Errorf("bad membership %v", s)
	}
	sorted := s.Sorted()
	if len(sorted) != 3 || sorted[0] != 0 || sorted[1] != 2 || sorted[2] != 5 {
		t.Errorf("Sorted() = %v", sorted)
	}
}
