package objective

import (
	"math"
	"testing"

	"github.com/jihwankim/gradfuzz/pkg/cond"
)

func TestDistanceEquality(t *testing.T) {
	op := cond.NewOp(cond.PredEq, false, 0)
	f := Distance(op, 4, 10, 7, cond.ConditionFalse)
	if f != 3 {
		t.Fatalf("Distance = %v, want 3", f)
	}
	if Solved(cond.PredEq, f) {
		t.Fatal("Solved should be false for nonzero equality distance")
	}
	f2 := Distance(op, 4, 7, 7, cond.ConditionFalse)
	if !Solved(cond.PredEq, f2) {
		t.Fatal("Solved should be true when operands are equal")
	}
}

func TestDistanceSignedWideningDoesNotOverflow(t *testing.T) {
	op := cond.NewOp(cond.PredEq, true, 0)
	minInt32 := uint64(uint32(math.MinInt32))
	f := Distance(op, 4, minInt32, 1, cond.ConditionFalse)
	want := float64(int64(math.MinInt32) - 1)
	if f != want {
		t.Fatalf("Distance = %v, want %v (must not overflow int32 arithmetic)", f, want)
	}
}

func TestDistanceGreaterThanEpsilon(t *testing.T) {
	op := cond.NewOp(cond.PredGt, true, 0)
	f := Distance(op, 4, 5, 5, cond.ConditionFalse) // a>b false when a==b
	if f != Epsilon {
		t.Fatalf("Distance = %v, want Epsilon", f)
	}
}

func TestEffectivePredicateNegatesOnlyOnExploratoryTrueBranch(t *testing.T) {
	op := cond.NewOp(cond.PredEq, false, 0)
	if got := EffectivePredicate(op, cond.ConditionFalse); got != cond.PredEq {
		t.Fatalf("EffectivePredicate(false) = %v, want unchanged PredEq", got)
	}
	if got := EffectivePredicate(op, cond.ConditionTrue); got != cond.PredNe {
		t.Fatalf("EffectivePredicate(true) = %v, want PredNe", got)
	}
}

// TestDistanceUsesNegatedRowNotSignFlip pins down spec.md §4.6's "flip the
// predicate to its negation, then evaluate that row" behavior: an NE
// condition observed not-equal this run (the ordinary, already-true case)
// must not be reported solved just because the branch hasn't flipped to
// a==b yet.
func TestDistanceUsesNegatedRowNotSignFlip(t *testing.T) {
	op := cond.NewOp(cond.PredNe, false, 0)
	f := Distance(op, 4, 3, 4, cond.ConditionTrue) // a != b holds: NE observed true
	pred := EffectivePredicate(op, cond.ConditionTrue)
	if pred != cond.PredEq {
		t.Fatalf("EffectivePredicate = %v, want PredEq", pred)
	}
	if Solved(pred, f) {
		t.Fatal("an untouched NE condition must not report solved on its first, unmodified run")
	}
}

// TestDistanceEqualObservedTrueNegatesToNotEqual mirrors the PredEq half of
// the same bug: a==b this run (EQ observed true) must negate to the NE row,
// not a sign-flipped EQ row, and must not be solved while a still equals b.
func TestDistanceEqualObservedTrueNegatesToNotEqual(t *testing.T) {
	op := cond.NewOp(cond.PredEq, false, 0)
	f := Distance(op, 4, 7, 7, cond.ConditionTrue) // a == b holds: EQ observed true
	pred := EffectivePredicate(op, cond.ConditionTrue)
	if pred != cond.PredNe {
		t.Fatalf("EffectivePredicate = %v, want PredNe", pred)
	}
	if Solved(pred, f) {
		t.Fatal("an untouched EQ condition must not report solved while operands are still equal")
	}
}

// TestDistanceGreaterThanBarelyTrueNotSolved covers the a==b+1 boundary
// from the GT/LE pair: the branch has not flipped (a is still greater than
// b), so it must not be reported solved even though the old sign-flipped
// implementation let exactly this case through.
func TestDistanceGreaterThanBarelyTrueNotSolved(t *testing.T) {
	op := cond.NewOp(cond.PredGt, false, 0)
	f := Distance(op, 4, 6, 5, cond.ConditionTrue) // a=b+1: a>b holds, barely
	pred := EffectivePredicate(op, cond.ConditionTrue)
	if pred != cond.PredLe {
		t.Fatalf("EffectivePredicate = %v, want PredLe", pred)
	}
	if Solved(pred, f) {
		t.Fatal("a=b+1 still satisfies a>b; the branch has not flipped and must not be solved")
	}
}

func TestSolvedUnreachable(t *testing.T) {
	if Solved(cond.PredEq, Unreachable) {
		t.Fatal("Solved must be false for Unreachable")
	}
}

func TestDistanceNotEqual(t *testing.T) {
	op := cond.NewOp(cond.PredNe, false, 0)
	if f := Distance(op, 4, 3, 3, cond.ConditionFalse); f != 1 {
		t.Fatalf("Distance(ne, equal operands) = %v, want 1", f)
	}
	if f := Distance(op, 4, 3, 4, cond.ConditionFalse); f != 0 {
		t.Fatalf("Distance(ne, unequal operands) = %v, want 0", f)
	}
}
