// Package solver implements the gradient-descent constraint solver (C7,
// spec §4.7): coordinate-wise finite-difference descent over a MutInput,
// treating the objective as a black box.
package solver

import (
	"math"
	"math/rand"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cespare/xxhash/v2"

	"github.com/jihwankim/gradfuzz/pkg/mutinput"
)

// Outcome classifies how an epoch or the whole solve ended.
type Outcome uint8

const (
	// Continuing means the epoch loop should keep running (internal use).
	Continuing Outcome = iota
	// Solved means the objective reached its solved condition, or the
	// child reported the target branch flipped.
	Solved
	// Unable means every candidate move evaluated to +Inf (a nested
	// constraint trap).
	Unable
	// LeadsToHigherValue means some candidates were finite but none
	// improved on the current value: a local minimum.
	LeadsToHigherValue
	// ZeroGrad means the gradient was all-zero from the very first epoch.
	ZeroGrad
	// Exhausted means max_epoch or the restart-token budget ran out
	// without solving.
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Solved:
		return "Solved"
	case Unable:
		return "Unable"
	case LeadsToHigherValue:
		return "LeadsToHigherValue"
	case ZeroGrad:
		return "ZeroGrad"
	case Exhausted:
		return "Exhausted"
	default:
		return "Continuing"
	}
}

// Eval is the black-box objective the solver minimizes: it runs the target
// on buf and returns the computed distance plus whether the executor
// observed the condition transition to DONE (an early exit independent of
// f reaching its solved value).
type Eval func(buf []byte) (f float64, done bool)

// Config are the solver's tunables (spec §4.7, §9).
type Config struct {
	MaxEpoch                 int
	MaxNumMinimalOptimaRound int
	Exact                    bool // equality target: f==0 required, not just f<=0
	Rng                      *rand.Rand

	// DisableDynSign skips infer_dyn_sign's second-visit signedness probe
	// (spec §6's disable_dyn_sign toggle).
	DisableDynSign bool
	// DisableDynEndian skips infer_endian's second-visit byte-order probe
	// (spec §6's disable_dyn_endian toggle).
	DisableDynEndian bool
}

const (
	minStep = 1.0
	maxStep = 256.0
)

// Solver holds a small eval-memoization cache (keyed by buffer content) so
// repeated gradient probes of an already-seen buffer don't re-invoke the
// target.
type Solver struct {
	cfg   Config
	eval  Eval
	cache *fastcache.Cache
}

// New constructs a Solver. cacheBytes sizes the memoization cache; pass 0
// for a small default.
func New(cfg Config, eval Eval, cacheBytes int) *Solver {
	if cfg.Rng == nil {
		cfg.Rng = rand.New(rand.NewSource(1))
	}
	if cacheBytes <= 0 {
		cacheBytes = 4 << 20
	}
	return &Solver{cfg: cfg, eval: eval, cache: fastcache.New(cacheBytes)}
}

func (s *Solver) evalCached(buf []byte) (float64, bool) {
	h := xxhash.Sum64(buf)
	var key [8]byte
	for i := range key {
		key[i] = byte(h >> (8 * i))
	}
	if v, ok := s.cache.HasGet(nil, key[:]); ok && len(v) == 9 {
		bits := uint64(0)
		for i := 0; i < 8; i++ {
			bits |= uint64(v[i]) << (8 * i)
		}
		return math.Float64frombits(bits), v[8] != 0
	}
	f, done := s.eval(buf)
	var v [9]byte
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		v[i] = byte(bits >> (8 * i))
	}
	if done {
		v[8] = 1
	}
	s.cache.Set(key[:], v[:])
	return f, done
}

// Initialize picks, among the original seed and any additional candidate
// buffers (e.g. the magic-bytes snapshot and its reversed form), the one
// with the smallest |f| to start descent from (spec §4.7 Initialization).
func (s *Solver) Initialize(mi *mutinput.MutInput, candidates [][]byte) (best []byte, f float64) {
	best = append([]byte(nil), mi.Bytes()...)
	f, _ = s.evalCached(best)
	bestAbs := math.Abs(f)
	for _, c := range candidates {
		cf, _ := s.evalCached(c)
		if math.Abs(cf) < bestAbs {
			best = c
			f = cf
			bestAbs = math.Abs(cf)
		}
	}
	return best, f
}

// Solve runs the epoch loop described in spec §4.7 starting from mi's
// current buffer, mutating mi in place and returning the terminal outcome.
// running is polled between evaluations for cooperative cancellation
// (spec §5).
func (s *Solver) Solve(mi *mutinput.MutInput, running func() bool) Outcome {
	if mi.Len() == 0 {
		return Unable
	}

	f, done := s.evalCached(mi.Bytes())
	if done || solvedEnough(s.cfg.Exact, f) {
		return Solved
	}

	if !s.cfg.DisableDynSign {
		s.inferDynSigns(mi)
	}

	step := minStep
	tokensLeft := s.cfg.MaxNumMinimalOptimaRound
	if tokensLeft <= 0 {
		tokensLeft = 32
	}
	maxEpoch := s.cfg.MaxEpoch
	if maxEpoch <= 0 {
		maxEpoch = 200
	}

	for epoch := 0; epoch < maxEpoch; epoch++ {
		if running != nil && !running() {
			return Exhausted
		}

		if epoch == 0 && !s.cfg.DisableDynEndian {
			s.maybeInferEndian(mi)
		}

		grad := s.gradient(mi, step)
		if allZero(grad) && epoch == 0 {
			return ZeroGrad
		}

		pos, neg := split(grad)
		factor := newtonFactor(grad, pos, neg)
		descend := scale(grad, -factor*step)

		bestF, bestBuf, kind := s.tryCandidates(mi, descend, pos, neg, f)
		if bestBuf == nil {
			bestBuf, bestF, kind = s.lsbHop(mi, pos, neg, f)
		}

		if bestBuf != nil && math.Abs(bestF) < math.Abs(f) {
			mi.Assign(bestBuf)
			f = bestF
			step = math.Min(step*2, maxStep)
			if solvedEnough(s.cfg.Exact, f) {
				return Solved
			}
			continue
		}

		// no improvement at this step
		if step > minStep {
			step = math.Max(step/2, minStep)
			continue
		}

		switch kind {
		case Unable:
			if !s.restart(mi, &tokensLeft) {
				return Exhausted
			}
			f, _ = s.evalCached(mi.Bytes())
			step = minStep
		case LeadsToHigherValue:
			if !s.restart(mi, &tokensLeft) {
				return Exhausted
			}
			f, _ = s.evalCached(mi.Bytes())
			step = minStep
		default:
			return LeadsToHigherValue
		}
	}
	return Exhausted
}

func solvedEnough(exact bool, f float64) bool {
	if math.IsInf(f, 1) {
		return false
	}
	if exact {
		return f == 0
	}
	return f <= 0
}

func allZero(grad []float64) bool {
	for _, g := range grad {
		if g != 0 {
			return false
		}
	}
	return true
}
