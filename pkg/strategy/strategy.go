// Package strategy dispatches a condition to one of the secondary fuzzing
// strategies by its CondStmt.GetFuzzType() (C8, spec §4.8): one-byte,
// deterministic bitflip, gradient descent, exploit, AFL havoc, length
// extension, and fn (memcmp/strcmp) magic-byte substitution.
package strategy

import (
	"math/rand"

	"github.com/jihwankim/gradfuzz/pkg/cond"
	"github.com/jihwankim/gradfuzz/pkg/solver"
)

// Eval runs the target once on buf and reports the objective, whether the
// executor observed the condition reach DONE, and whether this input was
// novel enough to be queued. It is the same black-box shape pkg/solver
// consumes, widened with the novelty bit the non-gradient strategies need
// to decide when to keep mutating vs. move on.
type Eval func(buf []byte) (f float64, done bool, novel bool)

// Limits bounds how much work each strategy may do on one condition before
// giving up (spec §4.8's MAX_SEARCH_EXEC_NUM / MAX_EXPLOIT_EXEC_NUM /
// MAX_INPUT_LEN, spec §9).
type Limits struct {
	MaxSearchExecNum  int
	MaxExploitExecNum int
	MaxInputLen       int
	MaxEpoch          int
	MaxRestartRounds  int

	// AssumeBE makes runGradient's MutInput treat multi-byte segments as
	// big-endian by default instead of little-endian (spec.md:106's
	// assume_be toggle).
	AssumeBE bool
	// DisableDynSign and DisableDynEndian turn off the solver's
	// second-visit infer_dyn_sign/infer_endian probes (spec §6's
	// disable_dyn_sign/disable_dyn_endian toggles).
	DisableDynSign   bool
	DisableDynEndian bool
	// DisableAFL and DisableExploitation fall a condition back to ordinary
	// gradient descent instead of dispatching to havoc or the exploit
	// strategy (spec §6's disable_afl/disable_exploitation toggles).
	DisableAFL          bool
	DisableExploitation bool
}

// Dispatcher runs the strategy selected by a CondStmt's FuzzType.
type Dispatcher struct {
	Limits Limits
	Rng    *rand.Rand
}

// New constructs a Dispatcher with the given limits. A nil rng gets a
// freshly seeded one.
func New(limits Limits, rng *rand.Rand) *Dispatcher {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Dispatcher{Limits: limits, Rng: rng}
}

// Run executes the strategy matching s.GetFuzzType() against seed, using
// eval to probe candidates; strategies read s.Offsets/s.Variable but do not
// write them.
// It mutates s.State/s.NumMinOptima as the underlying strategy reports
// progress, matching spec §4.9's "dispatch by fuzz type" step.
func (d *Dispatcher) Run(s *cond.Stmt, seed []byte, eval Eval) error {
	switch s.GetFuzzType() {
	case cond.FuzzOneByte:
		return d.runOneByte(s, seed, eval)
	case cond.FuzzDeterministic:
		return d.runDeterministic(s, seed, eval)
	case cond.FuzzGradient:
		return d.runGradient(s, seed, eval, false)
	case cond.FuzzExploit:
		if d.Limits.DisableExploitation {
			return d.runGradient(s, seed, eval, false)
		}
		return d.runGradient(s, seed, eval, true)
	case cond.FuzzAFL:
		if d.Limits.DisableAFL {
			return d.runGradient(s, seed, eval, false)
		}
		return d.runAFL(s, seed, eval)
	case cond.FuzzLen:
		return d.runLength(s, seed, eval)
	case cond.FuzzFn:
		return d.runFn(s, seed, eval)
	default:
		return d.runGradient(s, seed, eval, false)
	}
}

func solverEvalAdapter(eval Eval) solver.Eval {
	return func(buf []byte) (float64, bool) {
		f, done, _ := eval(buf)
		return f, done
	}
}
