package branch

import "testing"

func TestObserveNewEdgeIsNovel(t *testing.T) {
	m := New()
	trace := make([]uint16, 16)
	trace[5] = 1

	isNovel, hasNewEdge, edgeCount := m.Observe(trace, StatusNormal)
	if !isNovel || !hasNewEdge {
		t.Fatalf("first observation of edge 5 should be novel and new: novel=%v newEdge=%v", isNovel, hasNewEdge)
	}
	if edgeCount != 1 {
		t.Fatalf("edgeCount = %d, want 1", edgeCount)
	}
}

func TestObserveIdempotentOnRepeat(t *testing.T) {
	m := New()
	trace := make([]uint16, 16)
	trace[5] = 1

	m.Observe(trace, StatusNormal)
	isNovel, hasNewEdge, _ := m.Observe(trace, StatusNormal)
	if isNovel || hasNewEdge {
		t.Fatalf("repeating the exact same trace must not be novel: novel=%v newEdge=%v", isNovel, hasNewEdge)
	}
}

func TestObserveNovelOnBucketTransitionOnly(t *testing.T) {
	m := New()
	trace := make([]uint16, 16)
	trace[5] = 1
	m.Observe(trace, StatusNormal)

	// Same edge, hit count crosses into a new bucket (2 -> bucket 2).
	trace[5] = 2
	isNovel, hasNewEdge, _ := m.Observe(trace, StatusNormal)
	if !isNovel {
		t.Fatal("crossing into a new hit-count bucket on a known edge should be novel")
	}
	if hasNewEdge {
		t.Fatal("hasNewEdge should be false: the edge itself was already seen")
	}
}

func TestBucketMonotonic(t *testing.T) {
	prev := -1
	for c := 0; c < 256; c++ {
		b := int(bucketLUT[c])
		if b < prev {
			t.Fatalf("bucket(%d) = %d is less than bucket(%d) = %d: buckets must be monotonic", c, b, c-1, prev)
		}
		prev = b
	}
}

func TestStatusMapsAreIndependent(t *testing.T) {
	m := New()
	trace := make([]uint16, 16)
	trace[3] = 1

	m.Observe(trace, StatusNormal)
	isNovel, _, _ := m.Observe(trace, StatusTimeout)
	if !isNovel {
		t.Fatal("the timeout map is independent of the normal map and should still be novel")
	}
}

func TestDedupCrashByFrameHash(t *testing.T) {
	m := New()
	stderr := "==123==ERROR: AddressSanitizer: heap-buffer-overflow on address 0xdead\n" +
		"    #0 0x1234 in foo bar.c:10\n" +
		"    #1 0x5678 in main main.c:20\n" +
		"SUMMARY: AddressSanitizer: heap-buffer-overflow bar.c:10 in foo\n"

	_, firstNew := m.DedupCrash(stderr)
	if !firstNew {
		t.Fatal("first occurrence of a crash must be new")
	}
	_, secondNew := m.DedupCrash(stderr)
	if secondNew {
		t.Fatal("identical stack frames must dedup")
	}

	other := "==124==ERROR: AddressSanitizer: SEGV on unknown address\n" +
		"    #0 0x9999 in baz baz.c:5\n" +
		"SUMMARY: AddressSanitizer: SEGV baz.c:5 in baz\n"
	info, newCrash := m.DedupCrash(other)
	if !newCrash {
		t.Fatal("a different stack must not dedup against the first crash")
	}
	if info.ErrorKind == "" {
		t.Fatal("ErrorKind should be extracted")
	}
	if m.CrashCount() != 2 {
		t.Fatalf("CrashCount() = %d, want 2", m.CrashCount())
	}
}

func TestDedupHangByTrace(t *testing.T) {
	m := New()
	trace := []uint16{0, 3, 0, 1}

	_, firstNew := m.DedupHang(trace)
	if !firstNew {
		t.Fatal("first occurrence of a hang trace must be new")
	}
	_, secondNew := m.DedupHang(trace)
	if secondNew {
		t.Fatal("identical traces must dedup")
	}

	other := []uint16{0, 0, 7, 1}
	_, newHang := m.DedupHang(other)
	if !newHang {
		t.Fatal("a different trace must not dedup against the first hang")
	}
}

func TestCoversSuperset(t *testing.T) {
	if !Covers(0b1111, 0b0101) {
		t.Fatal("0b1111 should cover 0b0101")
	}
	if Covers(0b0101, 0b1111) {
		t.Fatal("0b0101 should not cover 0b1111")
	}
}
