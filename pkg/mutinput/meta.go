// Package mutinput implements the typed-byte mutation view (MutInput, C6):
// an ordered set of non-overlapping segments over a seed's taint-tainted
// bytes, each carrying the width, signedness and endianness the solver needs
// to treat it as a single numeral rather than an opaque byte run.
package mutinput

// Endian is a multi-byte segment's assumed byte order, or Split if the
// segment has been broken down into independent single-byte segments
// because the solver found no consistent multi-byte interpretation.
type Endian uint8

const (
	LE Endian = iota
	BE
	SplitEndian
)

func (e Endian) String() string {
	switch e {
	case LE:
		return "le"
	case BE:
		return "be"
	case SplitEndian:
		return "split"
	default:
		return "unknown"
	}
}

// DynSign is the result of a single cliff-input sign inference probe:
// unknown until a probe is run, then unsigned or signed depending on
// whether the wraparound behaved smoothly or jumped (spec §4.5
// infer_dyn_sign).
type DynSign uint8

const (
	SignUnknown DynSign = iota
	SignUnsigned
	SignSigned
)

// SignInfo blends a segment's static (taint/Op-derived) signedness with two
// dynamic sign fields, DynN and DynS. InferDynSign probes both the unsigned
// and the signed wraparound boundary and writes the one combined verdict
// into both fields. Prob is the blended probability the segment should be
// treated as signed: static contributes weight 1, each dynamic field weight 2.
type SignInfo struct {
	StaticSign bool
	DynN       DynSign
	DynS       DynSign
	Prob       float64
}

// blend recomputes Prob from StaticSign, DynN and DynS.
func (si *SignInfo) blend() {
	weight := 1.0
	total := 1.0
	if si.StaticSign {
		weight = 1.0
	} else {
		weight = 0.0
	}
	for _, d := range []DynSign{si.DynN, si.DynS} {
		switch d {
		case SignSigned:
			weight += 2.0
			total += 2.0
		case SignUnsigned:
			total += 2.0
		case SignUnknown:
			// contributes no weight, no additional total
		}
	}
	if total == 0 {
		si.Prob = 0
		return
	}
	si.Prob = weight / total
}

// Segment is one ordered, non-overlapping span of a MutInput's owned
// buffer: an offset, a width, the endianness to read it with, and the
// signedness information the solver consults when choosing a descent
// direction.
type Segment struct {
	Offset int
	Size   uint8 // 1, 2, 4 or 8; SplitEndian segments are always size 1
	Sign   bool  // signedness currently selected for descent
	Endian Endian
	Info   SignInfo

	// groupOffset/groupSize record the extent of the original multi-byte
	// segment a SplitEndian child was produced from, so Unsplit can find
	// and recombine its siblings. Unused (zero) for segments that were
	// never split.
	groupOffset int
	groupSize   uint8
}

func (s Segment) signed() bool { return s.Sign }
