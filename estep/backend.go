package estep

import "fmt"

// Backend is one implementation of the inference passes. Implementations must
// produce identical labels for identical inputs.
type Backend interface {
	// Name reports the name the backend is selected by.
	Name() string

	// Run labels one image into out, which holds Height*Width entries. Inputs
	// have already been checked. Run must not retain p, l or out.
	Run(ws *Workspace, c *Config, p *ProbabilityMap, l *WeakLabels, out []uint16) Stats
}

// Reference is the portable backend, one pass at a time over all classes.
var Reference Backend = reference{}

// Optimized is the fused backend over the compact allowed class list.
var Optimized Backend = optimized{}

// Default is the backend used when none is requested.
var Default Backend = Reference

// Backends lists every available backend.
func Backends() []Backend {
	return []Backend{Reference, Optimized}
}

// ByName selects a backend by its name. The empty name selects Default.
func ByName(name string) (Backend, error) {
	if name == "" {
		return Default, nil
	}
	for _, b := range Backends() {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("estep: unknown backend %q", name)
}
