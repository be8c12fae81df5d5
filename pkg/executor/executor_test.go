package executor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jihwankim/gradfuzz/pkg/branch"
	"github.com/jihwankim/gradfuzz/pkg/cond"
)

func newTestExecutor(t *testing.T, cfg Config) *Executor {
	t.Helper()
	e, err := New(cfg, branch.New())
	if err != nil {
		t.Skipf("shared memory unavailable in this sandbox: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestRunNormalExitClassifiesNormal(t *testing.T) {
	cfg := Config{
		TargetPath: "/bin/true",
		TimeLimit:  2 * time.Second,
	}
	e := newTestExecutor(t, cfg)

	base := cond.Base{Cmpid: 1, Op: cond.NewOp(cond.PredEq, false, 0)}
	res, err := e.Run(context.Background(), []byte("AAAA"), &base)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusNormal {
		t.Fatalf("Status = %v, want Normal", res.Status)
	}
}

func TestRunTimeoutClassifiesTimeout(t *testing.T) {
	cfg := Config{
		TargetPath: "/bin/sleep",
		TargetArgs: []string{"5"},
		TimeLimit:  50 * time.Millisecond,
		TmoutSkip:  1,
	}
	e := newTestExecutor(t, cfg)

	base := cond.Base{Cmpid: 1, Op: cond.NewOp(cond.PredEq, false, 0)}
	res, err := e.Run(context.Background(), []byte("x"), &base)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusTimeout {
		t.Fatalf("Status = %v, want Timeout", res.Status)
	}
}

func TestRunUnreachableBranchYieldsInfiniteObjective(t *testing.T) {
	cfg := Config{
		TargetPath: "/bin/true",
		TimeLimit:  2 * time.Second,
	}
	e := newTestExecutor(t, cfg)

	base := cond.Base{Cmpid: 1, Op: cond.NewOp(cond.PredEq, false, 0)}
	res, err := e.Run(context.Background(), []byte("AAAA"), &base)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// /bin/true never writes to the condition slot, so the branch was
	// never reached: the objective must be +Inf (spec §4.4 step 6).
	if !math.IsInf(res.Objective, 1) {
		t.Fatalf("Objective = %v, want +Inf (unreachable)", res.Objective)
	}
}

func TestRunRestartsForkserverAfterConfiguredRunCount(t *testing.T) {
	cfg := Config{
		TargetPath:   "/bin/true",
		TimeLimit:    2 * time.Second,
		RestartEvery: 2,
	}
	e := newTestExecutor(t, cfg)
	base := cond.Base{Cmpid: 1, Op: cond.NewOp(cond.PredEq, false, 0)}

	for i := 0; i < 3; i++ {
		if _, err := e.Run(context.Background(), []byte("AAAA"), &base); err != nil {
			t.Fatalf("Run[%d]: %v", i, err)
		}
	}
	if e.runCount != 3 {
		t.Fatalf("runCount = %d, want 3", e.runCount)
	}
}
