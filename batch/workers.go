package batch

import "runtime"

import "github.com/klauspost/cpuid/v2"

// DefaultWorkers reports the worker pool size for this machine: one worker per
// physical core, falling back to the logical CPU count. Can't return 0.
func DefaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
