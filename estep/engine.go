package estep

import "fmt"
import "sync"

// Engine runs inference with one validated Config and one Backend. It holds
// no per-call state and is safe for concurrent use.
type Engine struct {
	config  Config
	backend Backend
	pool    sync.Pool
}

// New validates c and returns an engine. A nil backend selects Default.
func New(c Config, b Backend) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if b == nil {
		b = Default
	}
	e := &Engine{config: c, backend: b}
	e.pool.New = func() interface{} {
		return NewWorkspace()
	}
	return e, nil
}

// MustNew is like New but panics on an invalid config.
func MustNew(c Config, b Backend) *Engine {
	e, err := New(c, b)
	if err != nil {
		panic(err.Error())
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Backend returns the engine backend.
func (e *Engine) Backend() Backend {
	return e.backend
}

// GetWorkspace takes a workspace from the engine pool.
func (e *Engine) GetWorkspace() *Workspace {
	return e.pool.Get().(*Workspace)
}

// PutWorkspace returns a workspace to the engine pool.
func (e *Engine) PutWorkspace(ws *Workspace) {
	e.pool.Put(ws)
}

// InferInto labels one image into out using the buffers of ws.
func (e *Engine) InferInto(ws *Workspace, p *ProbabilityMap, l *WeakLabels, out *PseudoLabelMap) (Stats, error) {
	if err := check(p, l); err != nil {
		return Stats{}, err
	}
	if out == nil || len(out.Data) != p.Height*p.Width {
		return Stats{}, fmt.Errorf("%w: output cannot hold %dx%d labels", ErrShapeMismatch, p.Height, p.Width)
	}
	out.Height, out.Width = p.Height, p.Width
	st := e.backend.Run(ws, &e.config, p, l, out.Data)
	if st.Degenerate > 0 {
		warnf("%d of %d pixels had no surviving mass, labelled background", st.Degenerate, len(out.Data))
	}
	return st, nil
}

// Infer labels one image into a fresh pseudo-label map.
func (e *Engine) Infer(p *ProbabilityMap, l *WeakLabels) (*PseudoLabelMap, error) {
	if err := check(p, l); err != nil {
		return nil, err
	}
	out := NewPseudoLabelMap(p.Height, p.Width)
	ws := e.GetWorkspace()
	defer e.PutWorkspace(ws)
	if _, err := e.InferInto(ws, p, l, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Infer labels one image with config c on the Default backend.
func Infer(p *ProbabilityMap, l *WeakLabels, c Config) (*PseudoLabelMap, error) {
	e, err := New(c, nil)
	if err != nil {
		return nil, err
	}
	return e.Infer(p, l)
}
