package strategy

import (
	"math/rand"
	"testing"

	"github.com/jihwankim/gradfuzz/pkg/cond"
)

func newStmt(offsets []uint32) *cond.Stmt {
	base := cond.Base{Cmpid: 1, Op: cond.NewOp(cond.PredEq, false, 0)}
	return cond.NewStmt(base, offsets, nil)
}

func TestRunOneByteFindsTargetAndReportsDone(t *testing.T) {
	s := newStmt([]uint32{0})
	seed := []byte{0x00}

	eval := func(buf []byte) (float64, bool, bool) {
		if buf[0] == 0x42 {
			return 0, true, true
		}
		return 1, false, false
	}

	d := New(Limits{}, rand.New(rand.NewSource(1)))
	if err := d.runOneByte(s, seed, eval); err != nil {
		t.Fatalf("runOneByte: %v", err)
	}
	if s.State == cond.StateUnsolvable {
		t.Fatal("State = Unsolvable, want the search to stop once 0x42 reports done")
	}
}

func TestRunOneByteMarksUnsolvableWhenNeverFound(t *testing.T) {
	s := newStmt([]uint32{0})
	seed := []byte{0x00}
	eval := func(buf []byte) (float64, bool, bool) { return 1, false, false }

	d := New(Limits{}, rand.New(rand.NewSource(1)))
	if err := d.runOneByte(s, seed, eval); err != nil {
		t.Fatalf("runOneByte: %v", err)
	}
	if s.State != cond.StateUnsolvable {
		t.Fatalf("State = %v, want Unsolvable", s.State)
	}
}

func TestRunDeterministicStopsOnDone(t *testing.T) {
	s := newStmt([]uint32{0, 1})
	seed := []byte{0x00, 0x00}

	calls := 0
	eval := func(buf []byte) (float64, bool, bool) {
		calls++
		return 1, calls == 3, false
	}

	d := New(Limits{MaxSearchExecNum: 100}, rand.New(rand.NewSource(1)))
	if err := d.runDeterministic(s, seed, eval); err != nil {
		t.Fatalf("runDeterministic: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (stop at first done)", calls)
	}
}

func TestRunLengthAppendsIncreasingSteps(t *testing.T) {
	s := newStmt([]uint32{0})
	seed := []byte{0xAA}

	var sawLens []int
	eval := func(buf []byte) (float64, bool, bool) {
		sawLens = append(sawLens, len(buf))
		return 1, false, false
	}

	d := New(Limits{MaxInputLen: 64}, rand.New(rand.NewSource(1)))
	if err := d.runLength(s, seed, eval); err != nil {
		t.Fatalf("runLength: %v", err)
	}
	if len(sawLens) < len(lengthSteps) {
		t.Fatalf("saw %d candidate lengths, want at least %d", len(sawLens), len(lengthSteps))
	}
	for i := 1; i < len(sawLens); i++ {
		if sawLens[i] <= sawLens[i-1] {
			t.Fatalf("candidate lengths %v are not strictly increasing", sawLens)
		}
	}
}

func TestRunFnSubstitutesMagicBytes(t *testing.T) {
	s := newStmt([]uint32{0, 1, 2, 3})
	s.MagicBytes = [][]byte{{'1', '2', '3', '4'}}
	seed := []byte{'A', 'A', 'A', 'A'}

	var gotCandidate []byte
	eval := func(buf []byte) (float64, bool, bool) {
		gotCandidate = append([]byte(nil), buf...)
		return 0, true, true
	}

	d := New(Limits{}, rand.New(rand.NewSource(1)))
	if err := d.runFn(s, seed, eval); err != nil {
		t.Fatalf("runFn: %v", err)
	}
	if string(gotCandidate) != "1234" {
		t.Fatalf("candidate = %q, want %q", gotCandidate, "1234")
	}
}

func TestHavocProducesDifferentLengthOrContent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	in := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out := havoc(in, rng)
	if out == nil || string(out) == string(in) {
		t.Fatalf("havoc(%v) = %v, want a different length or content", in, out)
	}
}

func TestAddSubWindowTouchesWholeWidthLittleEndian(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x00, 0x00}
	addSubWindow(buf, 0, 4, false, 1)
	want := []byte{0x01, 0x00, 0x00, 0x00}
	if string(buf) != string(want) {
		t.Fatalf("buf = %v, want %v", buf, want)
	}
}

func TestAddSubWindowTouchesWholeWidthBigEndian(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x00, 0x00}
	addSubWindow(buf, 0, 4, true, 1)
	want := []byte{0x00, 0x00, 0x00, 0x01}
	if string(buf) != string(want) {
		t.Fatalf("buf = %v, want %v", buf, want)
	}
}

func TestAddSubWindowCarriesAcrossBytes(t *testing.T) {
	// 0x00ff + 1 = 0x0100: the carry must propagate into the second byte,
	// something a single-byte buf[idx]+=delta could never do.
	buf := []byte{0xff, 0x00}
	addSubWindow(buf, 0, 2, false, 1)
	want := []byte{0x00, 0x01}
	if string(buf) != string(want) {
		t.Fatalf("buf = %v, want %v", buf, want)
	}
}
