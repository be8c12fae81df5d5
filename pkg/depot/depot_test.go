package depot

import (
	"path/filepath"
	"testing"

	"github.com/jihwankim/gradfuzz/pkg/cond"
)

func baseWith(cmpid uint32) cond.Base {
	return cond.Base{Cmpid: cmpid, Op: cond.NewOp(cond.PredEq, false, 0)}
}

func TestAddIsIdempotentByCondId(t *testing.T) {
	d := New(300)
	d.Add(baseWith(1), []uint32{0, 1}, []byte{1, 2})
	d.Add(baseWith(1), []uint32{2}, []byte{1, 2})

	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (repeat Add must merge, not duplicate)", d.Len())
	}
	s, ok := d.Lookup(baseWith(1).Id())
	if !ok {
		t.Fatal("expected condition to be present")
	}
	if len(s.Offsets) != 3 {
		t.Fatalf("len(Offsets) = %d, want 3 after merge", len(s.Offsets))
	}
}

func TestGetEntryThenUpdateEntryRoundTrip(t *testing.T) {
	d := New(300)
	d.Add(baseWith(1), nil, nil)
	d.Add(baseWith(2), nil, nil)

	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}

	s, ok := d.GetEntry()
	if !ok {
		t.Fatal("GetEntry() returned false, want true")
	}
	if d.Len() != 1 {
		t.Fatalf("Len() = %d after pop, want 1 (same condition must not be fuzzed twice concurrently)", d.Len())
	}

	d.UpdateEntry(s)
	if d.Len() != 2 {
		t.Fatalf("Len() = %d after UpdateEntry, want 2", d.Len())
	}
}

func TestUpdateEntryDropsDoneConditions(t *testing.T) {
	d := New(300)
	d.Add(baseWith(1), nil, nil)
	s, _ := d.GetEntry()
	s.State = cond.StateDone
	d.UpdateEntry(s)

	if d.Len() != 0 {
		t.Fatalf("Len() = %d, want 0: a Done condition must not be rescheduled", d.Len())
	}
}

func TestGetEntryEmptyQueue(t *testing.T) {
	d := New(300)
	if _, ok := d.GetEntry(); ok {
		t.Fatal("GetEntry() on an empty depot should return false")
	}
}

func TestDumpLoadRoundTrip(t *testing.T) {
	d := New(300)
	d.Add(baseWith(1), []uint32{0, 1, 2}, []byte{9, 9, 9})
	d.Add(baseWith(2), []uint32{4}, []byte{1})

	path := filepath.Join(t.TempDir(), "cond_queue.csv")
	if err := Dump(d, path); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	loaded, err := Load(path, 300)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != d.Len() {
		t.Fatalf("loaded.Len() = %d, want %d", loaded.Len(), d.Len())
	}
	s, ok := loaded.Lookup(baseWith(1).Id())
	if !ok {
		t.Fatal("expected condition 1 to survive round trip")
	}
	if len(s.Offsets) != 3 {
		t.Fatalf("len(Offsets) = %d, want 3", len(s.Offsets))
	}
}
