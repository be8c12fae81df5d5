package strategy

import "github.com/jihwankim/gradfuzz/pkg/cond"

// runDeterministic flips one bit at a time across the tainted offsets,
// capped at MaxSearchExecNum (spec §4.8 "Deterministic bitflip").
func (d *Dispatcher) runDeterministic(s *cond.Stmt, seed []byte, eval Eval) error {
	limit := d.Limits.MaxSearchExecNum
	if limit <= 0 {
		limit = 8 * len(seed)
	}

	buf := append([]byte(nil), seed...)
	bits := bitIndices(s.Offsets, len(seed))

	execs := 0
	for _, bit := range bits {
		if execs >= limit {
			break
		}
		byteIdx := bit / 8
		mask := byte(1) << uint(7-bit%8)
		buf[byteIdx] ^= mask
		s.RecordAttempt()
		execs++

		_, done, _ := eval(buf)
		buf[byteIdx] ^= mask // restore before the next flip

		if done || s.Condition == cond.ConditionDone {
			return nil
		}
	}
	return nil
}

// bitIndices enumerates every bit position covered by offsets, in offset
// order, clamped to the buffer's actual length.
func bitIndices(offsets []uint32, bufLen int) []int {
	var bits []int
	for _, off := range offsets {
		if int(off) >= bufLen {
			continue
		}
		for b := 0; b < 8; b++ {
			bits = append(bits, int(off)*8+b)
		}
	}
	return bits
}
