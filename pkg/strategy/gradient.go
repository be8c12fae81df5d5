package strategy

import (
	"github.com/jihwankim/gradfuzz/pkg/cond"
	"github.com/jihwankim/gradfuzz/pkg/mutinput"
	"github.com/jihwankim/gradfuzz/pkg/solver"
)

// runGradient builds a MutInput over s.Offsets and delegates descent to
// pkg/solver (spec §4.7, dispatched per spec §4.8 "Gradient"/"Exploit").
// exploit relaxes the solved predicate from exact equality to f<=0, since
// an exploit condition's goal is to cross a boundary, not hit one value.
func (d *Dispatcher) runGradient(s *cond.Stmt, seed []byte, eval Eval, exploit bool) error {
	mi := mutinput.New(seed, s.Offsets, d.Limits.AssumeBE, false)
	if mi.Len() == 0 {
		s.State = cond.StateUnsolvable
		return nil
	}

	maxEpoch := d.Limits.MaxEpoch
	maxRounds := d.Limits.MaxRestartRounds
	if maxRounds <= 0 {
		maxRounds = 8
	}

	sv := solver.New(solver.Config{
		MaxEpoch:                 maxEpoch,
		MaxNumMinimalOptimaRound: maxRounds,
		Exact:                    !exploit,
		Rng:                      d.Rng,
		DisableDynSign:           d.Limits.DisableDynSign,
		DisableDynEndian:         d.Limits.DisableDynEndian,
	}, solverEvalAdapter(eval), 0)

	candidates := magicCandidates(s, seed)
	best, _ := sv.Initialize(mi, candidates)
	mi.Assign(best)

	outcome := sv.Solve(mi, nil)
	s.FuzzTimes++
	s.StateTimes[s.State]++

	switch outcome {
	case solver.Solved:
		return nil
	case solver.Unable, solver.LeadsToHigherValue, solver.ZeroGrad:
		s.NumMinOptima++
		s.State = s.State.Next()
	case solver.Exhausted:
		s.State = s.State.Next()
	}
	return nil
}

// magicCandidates returns the magic-bytes snapshot and its reversed form
// as additional initialization candidates (spec §4.7 "Initialization").
func magicCandidates(s *cond.Stmt, seed []byte) [][]byte {
	var out [][]byte
	for _, magic := range s.MagicBytes {
		if len(magic) == 0 {
			continue
		}
		out = append(out, substituteAt(seed, s.Offsets, magic))
		out = append(out, substituteAt(seed, s.Offsets, reversed(magic)))
	}
	return out
}

func substituteAt(seed []byte, offsets []uint32, bytes []byte) []byte {
	buf := append([]byte(nil), seed...)
	for i, off := range offsets {
		if i >= len(bytes) || int(off) >= len(buf) {
			break
		}
		buf[off] = bytes[i]
	}
	return buf
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
