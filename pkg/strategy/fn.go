package strategy

import "github.com/jihwankim/gradfuzz/pkg/cond"

// runFn substitutes a condition's recorded magic bytes (from a
// memcmp/strcmp comparison site) into the tainted offsets and runs once
// per candidate (spec §4.8 "Fn (memcmp/strcmp)").
func (d *Dispatcher) runFn(s *cond.Stmt, seed []byte, eval Eval) error {
	if len(s.MagicBytes) == 0 {
		s.State = cond.StateUnsolvable
		return nil
	}
	for _, magic := range s.MagicBytes {
		candidate := substituteAt(seed, s.Offsets, magic)
		s.RecordAttempt()
		_, done, _ := eval(candidate)
		if done || s.Condition == cond.ConditionDone {
			return nil
		}
	}
	s.State = cond.StateUnsolvable
	return nil
}
