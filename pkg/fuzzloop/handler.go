package fuzzloop

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jihwankim/gradfuzz/pkg/branch"
	"github.com/jihwankim/gradfuzz/pkg/cond"
	"github.com/jihwankim/gradfuzz/pkg/executor"
	"github.com/jihwankim/gradfuzz/pkg/objective"
	"github.com/jihwankim/gradfuzz/pkg/strategy"
)

// SearchHandler binds the running flag, one worker's Executor, the
// condition being fuzzed, and its seed buffer together for the duration of
// one dispatch (spec §4.9 "Build a SearchHandler binding (running flag,
// executor, cond, seed buffer)").
type SearchHandler struct {
	Running *RunningFlag
	Exec    *executor.Executor
	Stmt    *cond.Stmt
	Seed    []byte

	// Branch dedups hangs against every pattern already seen (DedupHang),
	// mirroring how crash dedup already runs inside Exec.
	Branch *branch.Map

	// OutputDir, if set, is where a novel crash or hang gets persisted
	// (spec §6's crashes/ and hangs/ directories).
	OutputDir string
}

// Eval adapts the Executor to the strategy.Eval shape: run the candidate,
// report its objective, whether the executor saw DONE, and whether it was
// novel enough that the coverage map changed (the strategy's signal to keep
// exploring from this candidate rather than the last-accepted one).
func (h *SearchHandler) Eval(ctx context.Context) strategy.Eval {
	return func(buf []byte) (float64, bool, bool) {
		if !h.Running.Running() {
			return 0, true, false
		}
		res, err := h.Exec.Run(ctx, buf, &h.Stmt.Base)
		if err != nil {
			return 0, false, false
		}
		h.persist(res, buf)
		pred := objective.EffectivePredicate(h.Stmt.Op, res.Observed)
		done := res.Observed == cond.ConditionDone || objective.Solved(pred, res.Objective)
		return res.Objective, done, res.IsNovel
	}
}

// persist writes a deduplicated crashing or timing-out input to disk,
// named with a fresh UUID so concurrent workers never collide on a
// filename (spec §6's crashes/ and hangs/ directories; promoted
// google/uuid dependency, SPEC_FULL.md §2).
func (h *SearchHandler) persist(res executor.Result, buf []byte) {
	if h.OutputDir == "" {
		return
	}
	var sub string
	switch {
	case res.Status == executor.StatusCrash && res.NewCrash:
		sub = "crashes"
	case res.Status == executor.StatusTimeout:
		if h.Branch == nil {
			return
		}
		if _, isNew := h.Branch.DedupHang(res.Trace); !isNew {
			return
		}
		sub = "hangs"
	default:
		return
	}
	path := filepath.Join(h.OutputDir, sub, "id-"+uuid.NewString())
	_ = os.WriteFile(path, buf, 0644)
}
