package solver

import (
	"math"

	"github.com/jihwankim/gradfuzz/pkg/mutinput"
)

// interestingConstants are the classic boundary values probed when
// restarting from a new start point (spec §4.7 step 5).
var interestingConstants = []float64{-1, 0, 1, math.MinInt8, math.MaxInt8, math.MinInt16, math.MaxInt16, math.MinInt32, math.MaxInt32}

// inferDynSigns runs infer_dyn_sign across every multi-byte segment once,
// on the solver's second visit to a condition (spec §4.7 "Second-time
// entry"); single-byte segments are skipped by InferDynSign itself.
func (s *Solver) inferDynSigns(mi *mutinput.MutInput) {
	for i := 0; i < mi.Len(); i++ {
		mi.InferDynSign(i, func(buf []byte) float64 {
			f, _ := s.evalCached(buf)
			return f
		})
		mi.CommitSign(i, nil)
	}
}

// maybeInferEndian runs infer_endian on any segment that still holds an
// unsplit multi-byte shape, on epoch 0 of the second visit (spec §4.7 step
// 1's parenthetical).
func (s *Solver) maybeInferEndian(mi *mutinput.MutInput) {
	for i := 0; i < mi.Len(); i++ {
		seg := mi.Segment(i)
		if seg.Size > 1 {
			mi.InferEndian(i, func(buf []byte) float64 {
				f, _ := s.evalCached(buf)
				return f
			})
		}
	}
}

// restart picks a new start point by either substituting a byte with an
// interesting constant or uniformly randomizing the whole buffer, each
// restart consuming one of the solver's MAX_NUM_MINIMAL_OPTIMA_ROUND
// tokens (spec §4.7 step 5). It reports false once tokens are exhausted.
func (s *Solver) restart(mi *mutinput.MutInput, tokensLeft *int) bool {
	if *tokensLeft <= 0 {
		return false
	}
	*tokensLeft--

	if mi.Len() == 0 {
		return true
	}
	if s.cfg.Rng.Intn(2) == 0 {
		i := s.cfg.Rng.Intn(mi.Len())
		c := interestingConstants[s.cfg.Rng.Intn(len(interestingConstants))]
		mi.SetNth(i, c, s.cfg.Rng.Intn(2) == 0)
	} else {
		mi.RandomizeAll(s.cfg.Rng)
	}
	return true
}
