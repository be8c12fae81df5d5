// Package objective implements the per-condition distance function (C3's
// "f") the gradient solver minimizes via black-box evaluations of the
// target: spec.md §4.6. Go has no native 128-bit integer, and the two
// operands must be widened losslessly before subtracting (MinInt64-1 must
// not wrap in int64 arithmetic), so the widening uses
// github.com/holiman/uint256's 256-bit fixed-width integer rather than
// reaching for math/big.
package objective

import (
	"math"

	"github.com/holiman/uint256"
	"github.com/jihwankim/gradfuzz/pkg/cond"
)

// Epsilon is the margin a strict inequality must clear to be considered
// satisfied (spec §4.6).
const Epsilon = 1.0

// Unreachable is the objective value assigned to a condition the target
// never reached during a run.
var Unreachable = math.Inf(1)

// normalize maps a size-byte operand into an order-preserving unsigned
// representation: unsigned values pass through unchanged, signed values
// have their sign bit flipped so that [MIN..0) lands in [0, 2^(n-1)) and
// [0..MAX] lands in [2^(n-1), 2^n) — the same relative order as the signed
// values, expressed without a sign (spec §4.6 "sign-preserving widening").
func normalize(raw uint64, size uint8, signed bool) uint64 {
	if !signed {
		return raw
	}
	bits := uint(size) * 8
	if bits >= 64 {
		return raw ^ (1 << 63)
	}
	signBit := uint64(1) << (bits - 1)
	return raw ^ signBit
}

// wideSub computes a-b with a and b treated as order-preserving unsigned
// normalized operands, widened into 256 bits so the subtraction never
// wraps, and returns the signed float64 result.
func wideSub(a, b uint64) float64 {
	wa := new(uint256.Int).SetUint64(a)
	wb := new(uint256.Int).SetUint64(b)
	diff := new(uint256.Int).Sub(wa, wb)
	if diff.Bit(255) == 0 {
		return float64(diff.Uint64())
	}
	mag := new(uint256.Int).Neg(diff)
	return -float64(mag.Uint64())
}

func isExploratory(pred cond.Predicate) bool {
	switch pred {
	case cond.PredEq, cond.PredNe, cond.PredGt, cond.PredGe, cond.PredLt, cond.PredLe:
		return true
	default:
		return false
	}
}

// EffectivePredicate is the predicate whose table row Distance and Solved
// must agree on: ordinarily the condition's own predicate, but when the
// branch currently taken is the one an exploratory predicate already
// satisfies, spec.md §4.6 has the solver flip to the predicate's negation
// and aim at that branch's row instead ("flip the predicate to its
// negation") — e.g. an NE condition observed not-equal this run re-targets
// EQ, since NE is already true and there is nothing left to search for.
func EffectivePredicate(op cond.Op, observed cond.Condition) cond.Predicate {
	pred := op.Predicate()
	if observed == cond.ConditionTrue && isExploratory(pred) {
		return pred.Negate()
	}
	return pred
}

// distanceForPredicate evaluates spec.md's table row for pred directly,
// given the already size-masked, order-preserving-normalized operands.
func distanceForPredicate(pred cond.Predicate, na, nb uint64) float64 {
	switch pred {
	case cond.PredEq:
		return wideSub(na, nb)
	case cond.PredNe:
		if na == nb {
			return 1
		}
		return 0
	case cond.PredGt:
		return wideSub(nb, na) + Epsilon
	case cond.PredGe:
		return wideSub(nb, na)
	case cond.PredLt:
		return wideSub(na, nb) + Epsilon
	case cond.PredLe:
		return wideSub(na, nb)
	case cond.PredSwitch:
		return wideSub(na, nb)
	default:
		return wideSub(na, nb)
	}
}

// Distance computes the objective f for a single condition observation:
// arg1/arg2 are the raw, size-byte operand values the child recorded,
// signed and size come from the condition's packed Op, and observed is the
// branch outcome the child actually took. Distance implements spec.md's
// table verbatim, evaluated against EffectivePredicate's row rather than
// the condition's own predicate when the branch needs flipping (spec
// §4.6): the negation is a different table row, not a sign flip of the
// original one.
func Distance(op cond.Op, size uint8, arg1, arg2 uint64, observed cond.Condition) float64 {
	bits := uint(size) * 8
	var mask uint64 = math.MaxUint64
	if bits < 64 {
		mask = 1<<bits - 1
	}
	a1 := arg1 & mask
	a2 := arg2 & mask
	signed := op.Signed()
	na := normalize(a1, size, signed)
	nb := normalize(a2, size, signed)

	if op.Has(cond.MaskAFL) || op.Has(cond.MaskLen) || op.Has(cond.MaskFn) {
		return math.Abs(wideSub(na, nb))
	}

	return distanceForPredicate(EffectivePredicate(op, observed), na, nb)
}

// Solved reports whether an objective value counts as having satisfied its
// condition: exact equality for equality-flavored predicates, f<=0 for
// ordered comparisons (spec §4.6).
func Solved(pred cond.Predicate, f float64) bool {
	if math.IsInf(f, 1) {
		return false
	}
	switch pred {
	case cond.PredEq, cond.PredNe, cond.PredSwitch:
		return f == 0
	default:
		return f <= 0
	}
}
