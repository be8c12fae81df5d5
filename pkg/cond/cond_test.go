package cond

import "testing"

func TestOpPacking(t *testing.T) {
	cases := []struct {
		name   string
		pred   Predicate
		signed bool
		mask   Op
	}{
		{"eq-unsigned", PredEq, false, 0},
		{"gt-signed-exploit", PredGt, true, MaskExploitInt},
		{"switch", PredSwitch, false, MaskSwitch},
		{"fn", PredFn, false, MaskFn},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			o := NewOp(c.pred, c.signed, c.mask)
			if got := o.Predicate(); got != c.pred {
				t.Fatalf("Predicate() = %v, want %v", got, c.pred)
			}
			if got := o.Signed(); got != c.signed {
				t.Fatalf("Signed() = %v, want %v", got, c.signed)
			}
			if c.mask != 0 && !o.Has(c.mask) {
				t.Fatalf("Has(%v) = false, want true", c.mask)
			}
		})
	}
}

func TestIdTotalOrder(t *testing.T) {
	ids := []Id{
		{Cmpid: 1, Context: 0, Order: 0, Op: 0},
		{Cmpid: 1, Context: 0, Order: 1, Op: 0},
		{Cmpid: 1, Context: 1, Order: 0, Op: 0},
		{Cmpid: 2, Context: 0, Order: 0, Op: 0},
		{Cmpid: 2, Context: 0, Order: 0, Op: 1},
	}
	for i := 0; i < len(ids)-1; i++ {
		if !ids[i].Less(ids[i+1]) {
			t.Fatalf("expected ids[%d] < ids[%d]: %v, %v", i, i+1, ids[i], ids[i+1])
		}
		if ids[i+1].Less(ids[i]) {
			t.Fatalf("order not antisymmetric at %d", i)
		}
	}
}

func TestBaseRoundTrip(t *testing.T) {
	b := Base{
		Cmpid:     42,
		Context:   7,
		Order:     3,
		Belong:    1,
		Condition: ConditionTrue,
		Op:        NewOp(PredGe, true, MaskExploitMem),
		Size:      4,
		Lb1:       100,
		Lb2:       200,
		Arg1:      0xdeadbeef,
		Arg2:      0xcafebabe,
	}
	buf, err := b.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(buf) != BaseWireSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), BaseWireSize)
	}
	var got Base
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got != b {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, b)
	}
}

func TestBaseUnmarshalShortBuffer(t *testing.T) {
	var b Base
	if err := b.UnmarshalBinary(make([]byte, BaseWireSize-1)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestPriorityRotation(t *testing.T) {
	want := []Class{ClassExplore, ClassAFL, ClassExploit, ClassExplore, ClassAFL, ClassExploit}
	p := Priority(0)
	for i, w := range want {
		if got := p.Class(); got != w {
			t.Fatalf("step %d: Class() = %v, want %v", i, got, w)
		}
		p++
	}
}

func TestPriorityIncSaturatesAtDone(t *testing.T) {
	p := Priority(Done - 1)
	next := p.Inc(Done)
	if next != Done {
		t.Fatalf("Inc past maxPriority = %v, want the Done sentinel", next)
	}
}

func TestStmtGetFuzzTypeDispatch(t *testing.T) {
	base := Base{Op: NewOp(PredEq, false, 0)}
	s := NewStmt(base, nil, nil)
	s.State = StateOneByte
	if got := s.GetFuzzType(); got != FuzzOneByte {
		t.Fatalf("GetFuzzType() = %v, want FuzzOneByte", got)
	}
	s.State = StateGradient
	if got := s.GetFuzzType(); got != FuzzGradient {
		t.Fatalf("GetFuzzType() = %v, want FuzzGradient", got)
	}

	exploitBase := Base{Op: NewOp(PredGt, true, MaskExploitInt)}
	es := NewStmt(exploitBase, nil, nil)
	if got := es.GetFuzzType(); got != FuzzExploit {
		t.Fatalf("GetFuzzType() = %v, want FuzzExploit", got)
	}
}

func TestStmtRecordAttemptMarksDone(t *testing.T) {
	s := NewStmt(Base{Op: NewOp(PredEq, false, 0)}, nil, nil)
	s.Condition = ConditionDone
	s.RecordAttempt()
	if s.State != StateDone {
		t.Fatalf("State = %v, want StateDone", s.State)
	}
	if s.Priority != Done {
		t.Fatalf("Priority = %v, want Done", s.Priority)
	}
}

func TestStmtMergeUnionsOffsets(t *testing.T) {
	s := NewStmt(Base{}, []uint32{1, 2}, nil)
	s.Merge(Base{}, []uint32{2, 3})
	if len(s.Offsets) != 3 {
		t.Fatalf("len(Offsets) = %d, want 3: %v", len(s.Offsets), s.Offsets)
	}
}
