package strategy

import "github.com/jihwankim/gradfuzz/pkg/cond"

var lengthSteps = []int{1, 2, 4, 8}

// runLength appends either a small (1,2,4,8-byte) or a random-size
// zero-filled tail, up to MaxInputLen (spec §4.8 "Length").
func (d *Dispatcher) runLength(s *cond.Stmt, seed []byte, eval Eval) error {
	maxLen := d.Limits.MaxInputLen
	if maxLen <= 0 {
		maxLen = 1 << 20
	}

	for _, step := range lengthSteps {
		if len(seed)+step > maxLen {
			break
		}
		candidate := append(append([]byte(nil), seed...), make([]byte, step)...)
		s.RecordAttempt()
		_, done, _ := eval(candidate)
		if done || s.Condition == cond.ConditionDone {
			return nil
		}
	}

	if len(seed) < maxLen {
		extra := maxLen - len(seed)
		if extra > 4096 {
			extra = 4096
		}
		candidate := append(append([]byte(nil), seed...), make([]byte, extra)...)
		s.RecordAttempt()
		eval(candidate)
	}
	return nil
}
