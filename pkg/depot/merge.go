package depot

import "github.com/jihwankim/gradfuzz/pkg/cond"

// MergeDumps loads two cond_queue.csv dumps from independent sessions
// against the same target and unions them into a single Depot: a CondId
// present in both keeps the lower (more urgent) priority and the union of
// both offset sets. This is the offline counterpart of Rust Angora's
// merge_csv tool, recovered from original_source/ as a supplemented feature
// (spec.md's distillation dropped it; spec.md's explicit Non-goals don't
// exclude it).
func MergeDumps(pathA, pathB string, maxPriority cond.Priority) (*Depot, error) {
	a, err := Load(pathA, maxPriority)
	if err != nil {
		return nil, err
	}
	b, err := Load(pathB, maxPriority)
	if err != nil {
		return nil, err
	}

	merged := New(maxPriority)
	for _, s := range a.All() {
		ms := merged.Add(s.Base, s.Offsets, s.Variable)
		ms.Priority = s.Priority
		ms.IsDesirable = s.IsDesirable
		ms.State = s.State
	}
	for _, s := range b.All() {
		ms := merged.Add(s.Base, s.Offsets, s.Variable)
		if s.Priority < ms.Priority {
			ms.Priority = s.Priority
		}
		ms.IsDesirable = ms.IsDesirable || s.IsDesirable
	}
	return merged, nil
}
