package trainer

import "errors"
import "fmt"

import "github.com/neurlang/weakseg/estep"
import "github.com/neurlang/weakseg/loss"

// NewLoopFunc returns a loop running steps training steps. next supplies the
// weak labels of step i. Every every steps the loss is printed. A step whose
// shapes do not fit is reported and skipped; any other error ends the loop.
func NewLoopFunc(step StepFunc, next func(i int) ([]*estep.WeakLabels, error), steps, every int) func() error {
	return func() error {
		var skipped int
		for i := 0; i < steps; i++ {
			weak, err := next(i)
			if err != nil {
				return err
			}
			l, err := step(weak)
			if errors.Is(err, estep.ErrShapeMismatch) || errors.Is(err, loss.ErrShapeMismatch) {
				skipped++
				fmt.Printf("iteration:%d skipped: %v\n", i, err)
				continue
			}
			if err != nil {
				return err
			}
			if every > 0 && i%every == every-1 {
				fmt.Printf("iteration:%d, loss:%f, skipped:%d\n", i, l, skipped)
			}
		}
		return nil
	}
}
