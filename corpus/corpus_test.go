package corpus

import (
	"bytes"
	"errors"
	"log"
	"math/rand"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/neurlang/weakseg/estep"
)

func init() {
	estep.SetLogger(log.New(&bytes.Buffer{}, "", 0))
}

func record(t *testing.T, e *estep.Engine, n int) *Corpus {
	r := rand.New(rand.NewSource(int64(n)))
	c := New(e)
	for i := 0; i < n; i++ {
		h, w, k := 1+r.Intn(9), 1+r.Intn(9), 2+r.Intn(6)
		p := estep.NewProbabilityMap(h, w, k)
		for j := range p.Data {
			p.Data[j] = r.Float32()
		}
		for j := 0; j < h*w; j++ {
			var s float32
			for _, v := range p.Data[j*k : (j+1)*k] {
				s += v
			}
			for m := j * k; m < (j+1)*k; m++ {
				p.Data[m] /= s
			}
		}
		l := &estep.WeakLabels{Present: estep.NewLabelSet(uint16(1 + r.Intn(k-1))), Height: h, Width: w}
		if err := c.Add(e, p, l); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

// a corpus recorded on one backend replays identically on every backend
func TestReplayAcrossBackends(t *testing.T) {
	cfg := estep.DefaultConfig()
	cfg.NumIter = 3
	c := record(t, estep.MustNew(cfg, estep.Reference), 25)

	name := filepath.Join(t.TempDir(), "corpus.pb")
	if err := WriteFile(name, c); err != nil {
		t.Fatal(err)
	}
	back, err := ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if back.Backend != "reference" || back.Config != cfg || len(back.Records) != 25 {
		t.Fatalf("header came back as %q %+v with %d records", back.Backend, back.Config, len(back.Records))
	}
	for _, b := range estep.Backends() {
		bad, err := Verify(estep.MustNew(back.Config, b), back)
		if err != nil {
			t.Fatal(err)
		}
		if bad != 0 {
			t.Errorf("%s: %d of %d records differ", b.Name(), bad, len(back.Records))
		}
	}
}

func TestVerifyCountsMismatches(t *testing.T) {
	e := estep.MustNew(estep.DefaultConfig(), nil)
	c := record(t, e, 4)
	c.Records[1].Expected[0] ^= 1
	c.Records[3].Expected = c.Records[3].Expected[1:]
	var buf bytes.Buffer
	if err := Write(&buf, c); err != nil {
		t.Fatal(err)
	}
	back, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	bad, err := Verify(e, back)
	if err != nil {
		t.Fatal(err)
	}
	if bad != 2 {
		t.Errorf("got %d mismatches, want 2", bad)
	}
}

func TestCorruptData(t *testing.T) {
	c := record(t, estep.MustNew(estep.DefaultConfig(), nil), 1)
	b := c.Marshal()
	if _, err := Unmarshal(b[:len(b)-3]); !errors.Is(err, ErrCorrupt) {
		t.Errorf("truncated corpus: got %v", err)
	}
	if _, err := Unmarshal([]byte{0xff}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("garbage: got %v", err)
	}
}

func TestVerifyRefusesOtherConfig(t *testing.T) {
	c := record(t, estep.MustNew(estep.DefaultConfig(), nil), 2)
	cfg := estep.DefaultConfig()
	cfg.NumIter = 1
	if _, err := Verify(estep.MustNew(cfg, nil), c); !errors.Is(err, ErrConfigMismatch) {
		t.Errorf("got %v, want config mismatch", err)
	}
}

func TestLabelOutOfRange(t *testing.T) {
	var packed []byte
	packed = protowire.AppendVarint(packed, 1)
	packed = protowire.AppendVarint(packed, 1<<16)
	for _, num := range []protowire.Number{5, 8} {
		var rec []byte
		rec = protowire.AppendTag(rec, num, protowire.BytesType)
		rec = protowire.AppendBytes(rec, packed)
		var b []byte
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
		if _, err := Unmarshal(b); !errors.Is(err, ErrCorrupt) {
			t.Errorf("field %d holding 65536: got %v", num, err)
		}
	}
}
