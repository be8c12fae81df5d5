package solver

import (
	"math"
	"sort"

	"github.com/jihwankim/gradfuzz/pkg/mutinput"
)

// gradient estimates the partial derivative of f at each segment of mi by
// a perturbation-and-double scheme: step 1, 2, 4, ... up to 256 in each
// direction, stopping at the first step where f actually changes (spec
// §4.7 step 1). Evaluating both directions restores mi's original bytes
// before returning.
func (s *Solver) gradient(mi *mutinput.MutInput, _ float64) []float64 {
	base := append([]byte(nil), mi.Bytes()...)
	grad := make([]float64, mi.Len())

	for i := 0; i < mi.Len(); i++ {
		grad[i] = s.partialAt(mi, i)
		mi.Assign(base)
	}
	return grad
}

func (s *Solver) partialAt(mi *mutinput.MutInput, i int) float64 {
	baseF, _ := s.evalCached(mi.Bytes())

	var plusF, minusF float64
	var plusStep, minusStep float64
	havePlus, haveMinus := false, false

	for step := minStep; step <= maxStep; step *= 2 {
		if !havePlus {
			applied := mi.AddNth(i, step)
			if applied != 0 {
				f, _ := s.evalCached(mi.Bytes())
				if f != baseF {
					plusF, plusStep, havePlus = f, applied, true
				}
				mi.AddNth(i, -applied)
			}
		}
		if !haveMinus {
			applied := mi.AddNth(i, -step)
			if applied != 0 {
				f, _ := s.evalCached(mi.Bytes())
				if f != baseF {
					minusF, minusStep, haveMinus = f, applied, true
				}
				mi.AddNth(i, -applied)
			}
		}
		if havePlus && haveMinus {
			break
		}
	}

	if !havePlus && !haveMinus {
		return 0
	}
	if !havePlus {
		return (baseF - minusF) / -minusStep
	}
	if !haveMinus {
		return (plusF - baseF) / plusStep
	}
	totalStep := plusStep - minusStep
	if totalStep == 0 {
		return 0
	}
	return (plusF - minusF) / totalStep
}

// split partitions gradient coordinates into the indices whose gradient is
// positive and those whose is negative, each sorted by descending
// magnitude (spec §4.7 step 2 "Ordering").
func split(grad []float64) (pos, neg []int) {
	for i, g := range grad {
		switch {
		case g > 0:
			pos = append(pos, i)
		case g < 0:
			neg = append(neg, i)
		}
	}
	sort.Slice(pos, func(a, b int) bool { return math.Abs(grad[pos[a]]) > math.Abs(grad[pos[b]]) })
	sort.Slice(neg, func(a, b int) bool { return math.Abs(grad[neg[a]]) > math.Abs(grad[neg[b]]) })
	return pos, neg
}

// newtonFactor computes the Newton-normalized step scale: for a subgroup of
// coordinates, max(|grad|) / sum(grad^2); the overall factor is the
// minimum over the positive and negative subgroups (spec §4.7 step 2).
func newtonFactor(grad []float64, pos, neg []int) float64 {
	f1 := subgroupFactor(grad, pos)
	f2 := subgroupFactor(grad, neg)
	switch {
	case f1 == 0:
		return f2
	case f2 == 0:
		return f1
	default:
		return math.Min(f1, f2)
	}
}

func subgroupFactor(grad []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	maxAbs := 0.0
	sumSq := 0.0
	for _, i := range idx {
		g := grad[i]
		if math.Abs(g) > maxAbs {
			maxAbs = math.Abs(g)
		}
		sumSq += g * g
	}
	if sumSq == 0 {
		return 0
	}
	return maxAbs / sumSq
}

func scale(grad []float64, factor float64) []float64 {
	out := make([]float64, len(grad))
	for i, g := range grad {
		out[i] = g * factor
	}
	return out
}

// tryCandidates attempts the three descent moves of spec §4.7 step 3: the
// positive subset alone, the negative subset alone, and (when both exist)
// their sequential composition. It returns the best resulting buffer and
// objective if any candidate strictly improves |curF|, plus a classifying
// Outcome (Unable if every candidate was +Inf, LeadsToHigherValue if some
// were finite but none improved) for when none do.
func (s *Solver) tryCandidates(mi *mutinput.MutInput, deltas []float64, pos, neg []int, curF float64) (bestF float64, bestBuf []byte, outcome Outcome) {
	base := append([]byte(nil), mi.Bytes()...)
	bestAbs := math.Abs(curF)
	sawFinite := false
	allInf := true

	tryMove := func(idx []int) {
		if len(idx) == 0 {
			return
		}
		moveVec := selectDeltas(deltas, idx)
		coeffs := make([]float64, len(moveVec))
		for i := range coeffs {
			coeffs[i] = 1
		}
		mi.AddDeltaWithCoefficients(moveVec, coeffs)
		f, _ := s.evalCached(mi.Bytes())
		if !math.IsInf(f, 1) {
			allInf = false
			sawFinite = true
		}
		if math.Abs(f) < bestAbs {
			bestAbs = math.Abs(f)
			bestF = f
			bestBuf = append([]byte(nil), mi.Bytes()...)
		}
		mi.Assign(base)
	}

	tryMove(pos)
	tryMove(neg)
	if len(pos) > 0 && len(neg) > 0 {
		combined := append(append([]int{}, pos...), neg...)
		tryMove(combined)
	}

	if bestBuf != nil {
		return bestF, bestBuf, Solved
	}
	if allInf {
		return 0, nil, Unable
	}
	if sawFinite {
		return 0, nil, LeadsToHigherValue
	}
	return 0, nil, Unable
}

// selectDeltas builds a full-length delta vector with non-idx entries
// zeroed, so AddDeltaWithCoefficients only moves the selected subgroup.
func selectDeltas(deltas []float64, idx []int) []float64 {
	out := make([]float64, len(deltas))
	for _, i := range idx {
		out[i] = deltas[i]
	}
	return out
}

// lsbHop is the fallback move for a discrete landscape where no
// coefficient-scaled move changes f: increment the LSB coordinate of the
// negative group and decrement the LSB of the positive group by 1 in
// isolation (spec §4.7 "LSB hop").
func (s *Solver) lsbHop(mi *mutinput.MutInput, pos, neg []int, curF float64) ([]byte, float64, Outcome) {
	base := append([]byte(nil), mi.Bytes()...)
	bestAbs := math.Abs(curF)
	var bestBuf []byte
	var bestF float64

	try := func(i int, delta float64) {
		applied := mi.AddNth(i, delta)
		if applied == 0 {
			return
		}
		f, _ := s.evalCached(mi.Bytes())
		if math.Abs(f) < bestAbs {
			bestAbs = math.Abs(f)
			bestF = f
			bestBuf = append([]byte(nil), mi.Bytes()...)
		}
		mi.Assign(base)
	}
	if len(neg) > 0 {
		try(neg[len(neg)-1], 1)
	}
	if len(pos) > 0 {
		try(pos[len(pos)-1], -1)
	}
	if bestBuf == nil {
		return nil, 0, LeadsToHigherValue
	}
	return bestBuf, bestF, Solved
}
