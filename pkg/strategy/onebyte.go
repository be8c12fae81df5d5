package strategy

import "github.com/jihwankim/gradfuzz/pkg/cond"

// runOneByte is the first-pass strategy for a condition whose tainted set
// is exactly one byte: enumerate all 256 values, then mark the condition
// Unsolvable regardless of outcome — a single byte that doesn't solve the
// condition after exhaustive search won't solve it on a second pass either
// (spec §4.8 "One-byte").
func (d *Dispatcher) runOneByte(s *cond.Stmt, seed []byte, eval Eval) error {
	if len(s.Offsets) != 1 || int(s.Offsets[0]) >= len(seed) {
		s.State = cond.StateUnsolvable
		return nil
	}
	offset := s.Offsets[0]
	buf := append([]byte(nil), seed...)

	for v := 0; v < 256; v++ {
		buf[offset] = byte(v)
		s.RecordAttempt()
		_, done, _ := eval(buf)
		if done || s.Condition == cond.ConditionDone {
			return nil
		}
	}
	s.State = cond.StateUnsolvable
	return nil
}
