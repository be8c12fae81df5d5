package mutinput

import "math"

// Numeral is a segment's current value widened into a float64, along with
// the representable bounds for its width and signedness. Every read/write
// operation on a segment goes through a Numeral so the solver never has to
// know the segment's concrete width.
type Numeral struct {
	Value  float64
	Min    float64
	Max    float64
	Size   uint8
	Signed bool
}

func bounds(size uint8, signed bool) (min, max float64) {
	bits := uint(size) * 8
	if signed {
		max = float64(int64(1)<<(bits-1)) - 1
		min = -float64(int64(1) << (bits - 1))
	} else {
		max = math.Ldexp(1, int(bits)) - 1
		min = 0
	}
	return
}

func readBytes(buf []byte, off int, size uint8, endian Endian) uint64 {
	var v uint64
	switch endian {
	case BE:
		for k := 0; k < int(size); k++ {
			v = v<<8 | uint64(buf[off+k])
		}
	default: // LE and SplitEndian (size 1, order irrelevant)
		for k := int(size) - 1; k >= 0; k-- {
			v = v<<8 | uint64(buf[off+k])
		}
	}
	return v
}

func writeBytes(buf []byte, off int, size uint8, endian Endian, v uint64) {
	switch endian {
	case BE:
		for k := int(size) - 1; k >= 0; k-- {
			buf[off+k] = byte(v)
			v >>= 8
		}
	default:
		for k := 0; k < int(size); k++ {
			buf[off+k] = byte(v)
			v >>= 8
		}
	}
}

func toSigned(v uint64, size uint8) int64 {
	bits := uint(size) * 8
	if bits == 64 {
		return int64(v)
	}
	signBit := uint64(1) << (bits - 1)
	if v&signBit != 0 {
		return int64(v) - int64(uint64(1)<<bits)
	}
	return int64(v)
}

func fromSigned(v int64, size uint8) uint64 {
	bits := uint(size) * 8
	if bits == 64 {
		return uint64(v)
	}
	mask := uint64(1)<<bits - 1
	return uint64(v) & mask
}

// NthVal reads the i'th segment's current value as a Numeral.
func (m *MutInput) NthVal(i int) Numeral {
	s := m.segs[i]
	raw := readBytes(m.buf, s.Offset, s.Size, s.Endian)
	min, max := bounds(s.Size, s.Sign)
	var value float64
	if s.Sign {
		value = float64(toSigned(raw, s.Size))
	} else {
		value = float64(raw)
	}
	return Numeral{Value: value, Min: min, Max: max, Size: s.Size, Signed: s.Sign}
}

// clampToDelta returns the largest delta with the same sign as delta whose
// magnitude is <= |delta| and which keeps value+result within [min,max],
// halving the magnitude until it fits (spec §4.5 add_nth: "halves Δ on
// overflow until representable").
func clampToDelta(value, delta, min, max float64) float64 {
	if delta == 0 {
		return 0
	}
	d := delta
	for {
		nv := value + d
		if nv >= min && nv <= max {
			return d
		}
		d /= 2
		if math.Abs(d) < 1 {
			// Saturate at the boundary in the direction of delta.
			if delta > 0 {
				return max - value
			}
			return min - value
		}
	}
}

// AddNth adds delta to the i'th segment's value, saturating by halving the
// step until the result is representable, and returns the actual delta
// applied (spec §4.5 add_nth).
func (m *MutInput) AddNth(i int, delta float64) float64 {
	s := m.segs[i]
	n := m.NthVal(i)
	actual := clampToDelta(n.Value, delta, n.Min, n.Max)
	newVal := n.Value + actual
	m.writeNth(i, newVal)
	_ = s
	return actual
}

// SetNth sets the i'th segment's value to target, clamped to its
// representable range. If ceil is true and target isn't an integer it is
// rounded up rather than truncated.
func (m *MutInput) SetNth(i int, target float64, ceil bool) {
	n := m.NthVal(i)
	if ceil {
		target = math.Ceil(target)
	} else {
		target = math.Trunc(target)
	}
	if target < n.Min {
		target = n.Min
	}
	if target > n.Max {
		target = n.Max
	}
	m.writeNth(i, target)
}

func (m *MutInput) writeNth(i int, value float64) {
	s := m.segs[i]
	var raw uint64
	if s.Sign {
		raw = fromSigned(int64(value), s.Size)
	} else {
		raw = uint64(value)
	}
	writeBytes(m.buf, s.Offset, s.Size, s.Endian, raw)
}

// AddDeltaWithCoefficients applies deltas[k]*coeffs[k] to each segment
// simultaneously, honoring each segment's saturation independently. Used by
// the gradient solver to apply a scaled descent step across every segment
// in one candidate move (spec §4.7 step 3).
func (m *MutInput) AddDeltaWithCoefficients(deltas []float64, coeffs []float64) []float64 {
	actual := make([]float64, len(deltas))
	for i := range deltas {
		if i >= m.Len() {
			break
		}
		d := deltas[i] * coeffs[i]
		actual[i] = m.AddNth(i, d)
	}
	return actual
}

// SplitMeta splits the i'th segment, which must have size 2, 4 or 8, into
// that many size-1 SplitEndian segments covering the same bytes in the same
// order, for when the solver finds no consistent multi-byte interpretation
// (spec §4.5 split_meta). It returns the number of segments inserted.
func (m *MutInput) SplitMeta(i int) int {
	s := m.segs[i]
	if s.Size <= 1 {
		return 1
	}
	children := make([]Segment, 0, s.Size)
	for k := 0; k < int(s.Size); k++ {
		children = append(children, Segment{
			Offset:      s.Offset + k,
			Size:        1,
			Sign:        s.Sign,
			Endian:      SplitEndian,
			Info:        s.Info,
			groupOffset: s.Offset,
			groupSize:   s.Size,
		})
	}
	m.segs = append(m.segs[:i], append(children, m.segs[i+1:]...)...)
	return len(children)
}

// Unsplit finds a maximal run of adjacent SplitEndian segments starting at
// index i that share the same origin group and recombines them into a
// single multi-byte segment with the given endianness, the inverse of
// SplitMeta. It is a no-op and returns false if segment i was never split.
func (m *MutInput) Unsplit(i int, endian Endian) bool {
	s := m.segs[i]
	if s.Endian != SplitEndian || s.groupSize == 0 {
		return false
	}
	end := i
	for end+1 < len(m.segs) && m.segs[end+1].groupOffset == s.groupOffset && m.segs[end+1].groupSize == s.groupSize {
		end++
	}
	if end-i+1 != int(s.groupSize) {
		return false
	}
	merged := Segment{
		Offset: s.groupOffset,
		Size:   s.groupSize,
		Sign:   s.Sign,
		Endian: endian,
		Info:   s.Info,
	}
	m.segs = append(m.segs[:i], append([]Segment{merged}, m.segs[end+1:]...)...)
	return true
}
