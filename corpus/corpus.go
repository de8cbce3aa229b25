// Package corpus stores recorded E-step inputs together with the labels one
// backend produced for them, so another build or backend can replay them.
// The file is protobuf wire format.
package corpus

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/neurlang/weakseg/estep"
)

// ErrCorrupt is returned for undecodable corpus data.
var ErrCorrupt = errors.New("corpus: corrupt data")

// ErrConfigMismatch is returned when a corpus is replayed with another config
// than it was recorded with.
var ErrConfigMismatch = errors.New("corpus: config mismatch")

// Record is one recorded call.
type Record struct {
	Probs    *estep.ProbabilityMap
	Labels   *estep.WeakLabels
	Expected []uint16
}

// Corpus is a set of records produced with one config and backend.
type Corpus struct {
	Backend string
	Config  estep.Config
	Records []Record
}

// New returns an empty corpus for engine e.
func New(e *estep.Engine) *Corpus {
	return &Corpus{Backend: e.Backend().Name(), Config: e.Config()}
}

// Add runs e on one input and records the result.
func (c *Corpus) Add(e *estep.Engine, p *estep.ProbabilityMap, l *estep.WeakLabels) error {
	out, err := e.Infer(p, l)
	if err != nil {
		return err
	}
	c.Records = append(c.Records, Record{Probs: p, Labels: l, Expected: out.Data})
	return nil
}

// Verify replays every record on e and returns how many records came out
// different from what was recorded. e must use the recorded config.
func Verify(e *estep.Engine, c *Corpus) (mismatches int, err error) {
	if e.Config() != c.Config {
		return 0, fmt.Errorf("%w: recorded %+v, replaying %+v", ErrConfigMismatch, c.Config, e.Config())
	}
	for i, r := range c.Records {
		out, err := e.Infer(r.Probs, r.Labels)
		if err != nil {
			return mismatches, fmt.Errorf("record %d: %w", i, err)
		}
		if len(out.Data) != len(r.Expected) {
			mismatches++
			continue
		}
		for j := range out.Data {
			if out.Data[j] != r.Expected[j] {
				mismatches++
				break
			}
		}
	}
	return
}

// Marshal encodes the corpus.
func (c *Corpus) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, c.Backend)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalConfig(c.Config))
	for _, r := range c.Records {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalRecord(r))
	}
	return b
}

// Unmarshal decodes a corpus.
func Unmarshal(b []byte) (*Corpus, error) {
	c := new(Corpus)
	err := fields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case 1:
			c.Backend = string(v)
		case 2:
			cfg, err := unmarshalConfig(v)
			if err != nil {
				return err
			}
			c.Config = cfg
		case 3:
			r, err := unmarshalRecord(v)
			if err != nil {
				return err
			}
			c.Records = append(c.Records, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Write writes the encoded corpus to w.
func Write(w io.Writer, c *Corpus) error {
	_, err := w.Write(c.Marshal())
	return err
}

// Read decodes a corpus from r.
func Read(r io.Reader) (*Corpus, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

// WriteFile writes the corpus to the named file.
func WriteFile(name string, c *Corpus) error {
	return os.WriteFile(name, c.Marshal(), 0666)
}

// ReadFile reads a corpus from the named file.
func ReadFile(name string) (*Corpus, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

func marshalConfig(c estep.Config) (b []byte) {
	b = protowire.AppendTag(b, 1, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(c.BgP))
	b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(c.FgP))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.NumIter))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(c.SuppressOthers))
	b = protowire.AppendTag(b, 5, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(c.MarginOthers))
	return
}

func unmarshalConfig(b []byte) (c estep.Config, err error) {
	err = fields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case 1:
			c.BgP = math.Float32frombits(uint32(x))
		case 2:
			c.FgP = math.Float32frombits(uint32(x))
		case 3:
			c.NumIter = int(x)
		case 4:
			c.SuppressOthers = protowire.DecodeBool(x)
		case 5:
			c.MarginOthers = math.Float32frombits(uint32(x))
		}
		return nil
	})
	return
}

func marshalRecord(r Record) (b []byte) {
	p := r.Probs
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Height))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Width))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Classes))

	var packed = make([]byte, 0, 4*len(p.Data))
	for _, v := range p.Data {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)

	packed = packed[:0]
	for _, c := range r.Labels.Present.Sorted() {
		packed = protowire.AppendVarint(packed, uint64(c))
	}
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Labels.Height))
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Labels.Width))

	packed = packed[:0]
	for _, v := range r.Expected {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	b = protowire.AppendTag(b, 8, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	return
}

func unmarshalRecord(b []byte) (r Record, err error) {
	p := new(estep.ProbabilityMap)
	l := &estep.WeakLabels{Present: estep.LabelSet{}}
	err = fields(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch num {
		case 1:
			p.Height = int(x)
		case 2:
			p.Width = int(x)
		case 3:
			p.Classes = int(x)
		case 4:
			if len(v)%4 != 0 {
				return fmt.Errorf("%w: probabilities are %d bytes", ErrCorrupt, len(v))
			}
			p.Data = make([]float32, 0, len(v)/4)
			for len(v) > 0 {
				u, n := protowire.ConsumeFixed32(v)
				p.Data = append(p.Data, math.Float32frombits(u))
				v = v[n:]
			}
		case 5:
			return varints(v, func(u uint16) { l.Present[u] = struct{}{} })
		case 6:
			l.Height = int(x)
		case 7:
			l.Width = int(x)
		case 8:
			return varints(v, func(u uint16) { r.Expected = append(r.Expected, u) })
		}
		return nil
	})
	r.Probs, r.Labels = p, l
	return
}

func varints(b []byte, put func(uint16)) error {
	for len(b) > 0 {
		u, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		if u > math.MaxUint16 {
			return fmt.Errorf("%w: class %d out of range", ErrCorrupt, u)
		}
		put(uint16(u))
		b = b[n:]
	}
	return nil
}

// fields walks the fields of one message. Length delimited values arrive in
// v, scalar values in x; unknown wire types are skipped.
func fields(b []byte, field func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]
		var v []byte
		var x uint64
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var u uint32
			u, n = protowire.ConsumeFixed32(b)
			x = uint64(u)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				b = b[n:]
				continue
			}
		}
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]
		if err := field(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}
