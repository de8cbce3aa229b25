package main

import "flag"
import "fmt"
import "log"
import "math/rand"
import "os"
import "time"

import "github.com/klauspost/cpuid/v2"
import "gonum.org/v1/gonum/stat"

import "github.com/neurlang/weakseg/batch"
import "github.com/neurlang/weakseg/corpus"
import "github.com/neurlang/weakseg/estep"
import "github.com/neurlang/weakseg/weaklabel"

func main() {
	backend := flag.String("backend", "", "E-step backend: reference or optimized (default: platform choice)")
	workers := flag.Int("workers", 0, "worker goroutines per batch (0: one per physical core)")
	size := flag.Int("batch", 8, "images per mini-batch")
	input := flag.Int("input", 321, "input crop size, the label map is this size after the network strides")
	classes := flag.Int("classes", 21, "number of classes including background")
	steps := flag.Int("steps", 20, "number of mini-batches to label")
	seed := flag.Int64("seed", 1, "synthetic data seed")
	compare := flag.Bool("compare", false, "check every backend produces identical batches")
	scaling := flag.Bool("scaling", false, "fit runtime against H*W*C*num_iter")
	train := flag.Int("train", 0, "after the run, train a per-pixel logit model on one batch for this many steps")
	record := flag.String("record", "", "write the first mini-batch as a conformance corpus to this file")
	verify := flag.String("verify", "", "replay a conformance corpus and report mismatching records")
	logfile := flag.String("log", "", "append degeneracy warnings to this file")
	pgo := flag.Bool("pgo", false, "collect a cpu profile into default.pgo until interrupted")

	cfg := estep.DefaultConfig()
	flag.Func("bg_p", "background seed threshold (default 0.4)", float32Flag(&cfg.BgP))
	flag.Func("fg_p", "foreground seed threshold (default 0.2)", float32Flag(&cfg.FgP))
	flag.IntVar(&cfg.NumIter, "num_iter", cfg.NumIter, "propagation passes")
	flag.BoolVar(&cfg.SuppressOthers, "suppress_others", cfg.SuppressOthers, "suppress classes absent from the weak labels")
	flag.Parse()

	if *classes < 1 || *classes >= weaklabel.Ignore {
		log.Fatalf("classes must lie in [1,%d)", weaklabel.Ignore)
	}
	if *pgo {
		profileUntilSignal()
	}
	if *logfile != "" {
		if err := estep.SetLogFile(*logfile); err != nil {
			log.Fatal(err)
		}
	}

	be, err := estep.ByName(*backend)
	if err != nil {
		log.Fatal(err)
	}
	engine, err := estep.New(cfg, be)
	if err != nil {
		log.Fatal(err)
	}

	if *verify != "" {
		c, err := corpus.ReadFile(*verify)
		if err != nil {
			log.Fatal(err)
		}
		if c.Config != cfg {
			engine, err = estep.New(c.Config, be)
			if err != nil {
				log.Fatal(err)
			}
		}
		bad, err := corpus.Verify(engine, c)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%d of %d records recorded by %s differ on %s\n", bad, len(c.Records), c.Backend, be.Name())
		if bad != 0 {
			os.Exit(1)
		}
		return
	}

	h, w := weaklabel.DeepLabStrides.OutputSize(*input, *input)
	d := &batch.Dispatcher{Engine: engine, Workers: *workers}
	if d.Workers == 0 {
		d.Workers = batch.DefaultWorkers()
	}
	fmt.Printf("cpu: %s, %d physical cores, backend: %s, workers: %d, label map: %dx%dx%d (stride %d)\n",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, be.Name(), d.Workers, h, w, *classes,
		weaklabel.DeepLabStrides.Total())

	r := rand.New(rand.NewSource(*seed))
	var seconds []float64
	var total estep.Stats
	for i := 0; i < *steps; i++ {
		items, err := synthesizeBatch(r, *size, *input, *classes)
		if err != nil {
			log.Fatal(err)
		}
		start := time.Now()
		b, st, err := d.Run(items)
		if err != nil {
			// a shape problem is systemic, report it and drop the step
			println("step", i, "failed:", err.Error())
			continue
		}
		seconds = append(seconds, time.Since(start).Seconds())
		total.Add(st)
		fmt.Printf("%x\n", b.Sum())

		if *compare {
			for _, other := range estep.Backends() {
				if other.Name() == be.Name() {
					continue
				}
				od := &batch.Dispatcher{Engine: estep.MustNew(cfg, other), Workers: d.Workers}
				ob, _, err := od.Run(items)
				if err != nil {
					log.Fatal(err)
				}
				if at := batch.Compare(b, ob); at >= 0 {
					fmt.Printf("step %d: %s and %s differ at label %d\n", i, be.Name(), other.Name(), at)
					os.Exit(1)
				}
			}
		}
		if *record != "" && i == 0 {
			c := corpus.New(engine)
			for _, it := range items {
				if err := c.Add(engine, it.Probs, it.Labels); err != nil {
					log.Fatal(err)
				}
			}
			if err := corpus.WriteFile(*record, c); err != nil {
				log.Fatal(err)
			}
		}
	}
	if len(seconds) > 0 {
		mean, std := stat.MeanStdDev(seconds, nil)
		fmt.Printf("[batch latency] %.3fms +- %.3fms over %d batches, %d seeded, %d degenerate pixels\n",
			mean*1e3, std*1e3, len(seconds), total.Seeded, total.Degenerate)
	}
	if *scaling {
		runScaling(engine, r, *classes)
	}
	if *train > 0 {
		items, err := synthesizeBatch(r, *size, *input, *classes)
		if err != nil {
			log.Fatal(err)
		}
		if err := runTraining(d, items, *train, max(1, *train/10)); err != nil {
			log.Fatal(err)
		}
	}
}

// runScaling times single images of growing size and fits a line through
// runtime against H*W*C*num_iter.
func runScaling(e *estep.Engine, r *rand.Rand, classes int) {
	var work, seconds []float64
	ws := e.GetWorkspace()
	defer e.PutWorkspace(ws)
	for _, input := range []int{81, 161, 241, 321, 481, 641} {
		it, err := synthesize(r, input, classes)
		if err != nil {
			log.Fatal(err)
		}
		side := it.Probs.Height
		out := estep.NewPseudoLabelMap(it.Probs.Height, it.Probs.Width)
		const repeat = 20
		start := time.Now()
		for n := 0; n < repeat; n++ {
			if _, err := e.InferInto(ws, it.Probs, it.Labels, out); err != nil {
				log.Fatal(err)
			}
		}
		work = append(work, float64(side*side*classes*e.Config().NumIter))
		seconds = append(seconds, time.Since(start).Seconds()/repeat)
	}
	alpha, beta := stat.LinearRegression(work, seconds, nil, false)
	r2 := stat.RSquared(work, seconds, nil, alpha, beta)
	fmt.Printf("[scaling] %.3fns per pixel*class*pass, offset %.3fus, r2 %.4f\n", beta*1e9, alpha*1e6, r2)
}

func float32Flag(dst *float32) func(string) error {
	return func(s string) error {
		var v float32
		if _, err := fmt.Sscan(s, &v); err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
