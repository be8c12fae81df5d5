package fuzzloop

import "testing"

func TestRunningFlagStartsTrueAndStops(t *testing.T) {
	f := NewRunningFlag()
	if !f.Running() {
		t.Fatal("expected a fresh RunningFlag to start running")
	}
	f.Stop()
	if f.Running() {
		t.Fatal("expected Running() to be false after Stop()")
	}
}

func TestRunningFlagStopIsIdempotent(t *testing.T) {
	f := NewRunningFlag()
	f.Stop()
	f.Stop()
	if f.Running() {
		t.Fatal("Running() should remain false after repeated Stop()")
	}
}
