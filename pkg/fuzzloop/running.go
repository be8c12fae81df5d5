// Package fuzzloop ties the Depot, Executor, branch Map and Strategy
// dispatcher together into the worker pool that drives a fuzzing session
// (C9, spec §4.9, §5).
package fuzzloop

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// RunningFlag is the cooperative-cancellation signal spec §5 describes: a
// global flag polled at the top of each fuzz-loop iteration, inside the
// solver's epoch loop, and between every executor run. Adapted from the
// teacher's pkg/emergency.Controller, narrowed to the one thing the fuzz
// loop needs — a flag, not a stop-file watcher or callback registry.
type RunningFlag struct {
	v int32
}

// NewRunningFlag returns a flag that starts set (running).
func NewRunningFlag() *RunningFlag {
	f := &RunningFlag{}
	atomic.StoreInt32(&f.v, 1)
	return f
}

// Running reports whether workers should keep going.
func (f *RunningFlag) Running() bool { return atomic.LoadInt32(&f.v) == 1 }

// Stop clears the flag; all workers drain on their next poll.
func (f *RunningFlag) Stop() { atomic.StoreInt32(&f.v, 0) }

// StopOnSignal clears the flag on SIGINT/SIGTERM (spec §5 "On SIGINT, the
// flag is cleared and all workers drain").
func (f *RunningFlag) StopOnSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		f.Stop()
		signal.Stop(sigCh)
	}()
}
