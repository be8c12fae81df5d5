package strategy

import (
	"encoding/binary"
	"math/rand"

	"github.com/jihwankim/gradfuzz/pkg/cond"
)

// interestingBytes are the classic AFL "interesting value" substitutions.
var interestingBytes = []byte{0x00, 0x01, 0x7f, 0x80, 0xff}

// runAFL performs splice-and-havoc mutation: splice two buffers at a point
// between their first and last differing byte, then apply a stack of
// random mutations (spec §4.8 "AFL havoc").
func (d *Dispatcher) runAFL(s *cond.Stmt, seed []byte, eval Eval) error {
	limit := d.Limits.MaxSearchExecNum
	if limit <= 0 {
		limit = 1000
	}

	buf := append([]byte(nil), seed...)
	if len(s.Variable) > 0 {
		buf = splice(buf, s.Variable, d.Rng)
	}

	for i := 0; i < limit; i++ {
		candidate := havoc(buf, d.Rng)
		s.RecordAttempt()
		_, done, novel := eval(candidate)
		if done || s.Condition == cond.ConditionDone {
			return nil
		}
		if novel {
			buf = candidate
		}
	}
	return nil
}

// splice finds the first and last differing byte between a and b, picks a
// random split point in [first, last), and copies b's bytes from first
// through the split point over a copy of a, a cheap way to recombine two
// otherwise unrelated inputs that still share structure outside the
// spliced span.
func splice(a, b []byte, rng *rand.Rand) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	first, last := -1, -1
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 || last <= first {
		return append([]byte(nil), a...)
	}
	out := append([]byte(nil), a...)
	splitAt := first + rng.Intn(last-first)
	copy(out[first:splitAt+1], b[first:splitAt+1])
	return out
}

// addSubWindow reads the width-byte window at buf[idx:idx+width] as an
// unsigned integer in the given endianness, adds delta (mod 2^(width*8)),
// and writes the result back, giving true multi-byte AFL-style ADD/SUB
// havoc instead of a single-byte increment (spec §4.8).
func addSubWindow(buf []byte, idx, width int, be bool, delta int64) {
	window := buf[idx : idx+width]
	var v uint64
	if be {
		switch width {
		case 1:
			v = uint64(window[0])
		case 2:
			v = uint64(binary.BigEndian.Uint16(window))
		case 4:
			v = uint64(binary.BigEndian.Uint32(window))
		case 8:
			v = binary.BigEndian.Uint64(window)
		}
	} else {
		switch width {
		case 1:
			v = uint64(window[0])
		case 2:
			v = uint64(binary.LittleEndian.Uint16(window))
		case 4:
			v = uint64(binary.LittleEndian.Uint32(window))
		case 8:
			v = binary.LittleEndian.Uint64(window)
		}
	}

	v = uint64(int64(v) + delta)

	if be {
		switch width {
		case 1:
			window[0] = byte(v)
		case 2:
			binary.BigEndian.PutUint16(window, uint16(v))
		case 4:
			binary.BigEndian.PutUint32(window, uint32(v))
		case 8:
			binary.BigEndian.PutUint64(window, v)
		}
	} else {
		switch width {
		case 1:
			window[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(window, uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(window, uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(window, v)
		}
	}
}

// havoc applies a stack of 1-4 random mutations, each one of: bit flip,
// 1/2/4/8-byte window add/sub in either endian, substituting an interesting
// byte, deleting one byte, or inserting one random byte (spec §4.8
// "stacked random mutations").
func havoc(in []byte, rng *rand.Rand) []byte {
	buf := append([]byte(nil), in...)
	stackLen := 1 + rng.Intn(4)
	for i := 0; i < stackLen && len(buf) > 0; i++ {
		switch rng.Intn(5) {
		case 0:
			idx := rng.Intn(len(buf) * 8)
			buf[idx/8] ^= 1 << uint(7-idx%8)
		case 1:
			width := []int{1, 2, 4, 8}[rng.Intn(4)]
			if len(buf) >= width {
				idx := rng.Intn(len(buf) - width + 1)
				delta := int64(rng.Intn(35) - 17)
				be := rng.Intn(2) == 0
				addSubWindow(buf, idx, width, be, delta)
			}
		case 2:
			idx := rng.Intn(len(buf))
			buf[idx] = interestingBytes[rng.Intn(len(interestingBytes))]
		case 3:
			if len(buf) > 1 {
				idx := rng.Intn(len(buf))
				buf = append(buf[:idx], buf[idx+1:]...)
			}
		case 4:
			idx := rng.Intn(len(buf) + 1)
			v := byte(rng.Intn(256))
			buf = append(buf[:idx], append([]byte{v}, buf[idx:]...)...)
		}
	}
	return buf
}
