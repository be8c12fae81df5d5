package mutinput

import "math"

// Evaluator runs the objective function for a candidate buffer, the same
// black-box evaluation the gradient solver drives (pkg/objective, pkg/
// executor). InferDynSign and InferEndian only ever call it with the
// MutInput's own buffer temporarily mutated and restored.
type Evaluator func(buf []byte) float64

// smoothJumpThreshold is the magnitude below which a change in objective
// across a wraparound boundary is considered "smooth" rather than a "jump".
// Chosen relative to the objective function's epsilon (1) in pkg/objective:
// a smooth wraparound should change f by an amount on the order of the
// operand step (1-2), a signedness-inconsistent wraparound jumps by close
// to the full width of the operand's range.
const smoothJumpThreshold = 4.0

// InferDynSign probes the i'th segment (which must have Size > 1) at the
// unsigned and signed wraparound cliffs and derives one dynamic sign verdict
// from the pair (spec §4.5 infer_dyn_sign): smooth across the unsigned cliff
// and a jump across the signed one means signed, the reverse means unsigned,
// anything else is unknown. That single verdict is written to both DynN and
// DynS; there are no separate per-cliff verdicts. Segment bytes are restored before
// returning. The segment's SignInfo is updated and its blended Prob
// recomputed; InferDynSign does not itself change Sign — callers choose the
// descent sign from the blended probability (consensus or sampled).
func (m *MutInput) InferDynSign(i int, eval Evaluator) {
	s := m.segs[i]
	if s.Size <= 1 {
		return
	}
	orig := append([]byte(nil), m.buf[s.Offset:s.Offset+int(s.Size)]...)
	defer copy(m.buf[s.Offset:s.Offset+int(s.Size)], orig)

	bits := uint(s.Size) * 8
	allOnes := uint64(1)<<bits - 1
	zero := uint64(0)
	maxSigned := uint64(1)<<(bits-1) - 1
	minSigned := uint64(1) << (bits - 1)

	evalAt := func(raw uint64) float64 {
		writeBytes(m.buf, s.Offset, s.Size, s.Endian, raw)
		return eval(m.buf)
	}

	deltaUnsigned := math.Abs(evalAt(zero) - evalAt(allOnes))
	deltaSigned := math.Abs(evalAt(minSigned) - evalAt(maxSigned))

	smoothUnsigned := deltaUnsigned <= smoothJumpThreshold
	smoothSigned := deltaSigned <= smoothJumpThreshold

	verdict := SignUnknown
	switch {
	case smoothUnsigned && !smoothSigned:
		verdict = SignSigned
	case !smoothUnsigned && smoothSigned:
		verdict = SignUnsigned
	}

	s.Info.DynN = verdict
	s.Info.DynS = verdict
	s.Info.blend()
	m.segs[i] = s
}

// CommitSign sets the i'th segment's Sign from its current blended
// SignInfo.Prob: consensus (Prob strictly above 0.5 selects signed) when
// sample is nil, otherwise sampled from the blended probability using
// sample() (a uniform [0,1) draw) so callers can reproduce Angora's
// probabilistic fallback for ambiguous segments.
func (m *MutInput) CommitSign(i int, sample func() float64) {
	s := m.segs[i]
	var signed bool
	if sample == nil {
		signed = s.Info.Prob > 0.5
	} else {
		signed = sample() < s.Info.Prob
	}
	s.Sign = signed
	m.segs[i] = s
}
