package main

import "os"
import "os/signal"
import "runtime/pprof"
import "syscall"

// profileUntilSignal collects a CPU profile into default.pgo until the process
// is interrupted.
func profileUntilSignal() {
	f, err := os.Create("default.pgo")
	if err != nil {
		println(err.Error())
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		println(err.Error())
		f.Close()
		return
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		pprof.StopCPUProfile()
		f.Close()
		os.Exit(130)
	}()
}
