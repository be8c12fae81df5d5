package shm

import (
	"testing"

	"github.com/jihwankim/gradfuzz/pkg/cond"
)

func TestBranchTableResetAndTrace(t *testing.T) {
	table, err := NewBranchTable(16)
	if err != nil {
		t.Skipf("SysV shared memory unavailable in this sandbox: %v", err)
	}
	defer table.Close()

	table.Reset()
	trace := table.Trace()
	if len(trace) != 16 {
		t.Fatalf("len(Trace()) = %d, want 16", len(trace))
	}
	for i, v := range trace {
		if v != 0 {
			t.Fatalf("trace[%d] = %d after Reset, want 0", i, v)
		}
	}
}

func TestCondSlotWriteRead(t *testing.T) {
	slot, err := NewCondSlot()
	if err != nil {
		t.Skipf("SysV shared memory unavailable in this sandbox: %v", err)
	}
	defer slot.Close()

	want := cond.Base{
		Cmpid:     1,
		Context:   2,
		Order:     3,
		Condition: cond.ConditionTrue,
		Op:        cond.NewOp(cond.PredGt, true, 0),
		Size:      4,
		Arg1:      100,
		Arg2:      200,
	}
	if err := slot.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := slot.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}
