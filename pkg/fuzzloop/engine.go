package fuzzloop

import (
	"context"
	"sync"

	"github.com/JekaMas/workerpool"

	"github.com/jihwankim/gradfuzz/pkg/branch"
	"github.com/jihwankim/gradfuzz/pkg/cond"
	"github.com/jihwankim/gradfuzz/pkg/depot"
	"github.com/jihwankim/gradfuzz/pkg/executor"
	"github.com/jihwankim/gradfuzz/pkg/stats"
	"github.com/jihwankim/gradfuzz/pkg/strategy"
)

// SeedSource supplies the current best-known input bytes for a condition,
// e.g. the queue entry it was discovered from.
type SeedSource interface {
	SeedFor(s *cond.Stmt) []byte
}

// Engine owns the shared state every worker reads from and writes back to
// (spec §5: "N worker threads share the Depot, the Branch map ..., and a
// shared ChartStats. Each worker owns its own Executor").
type Engine struct {
	Depot      *depot.Depot
	Branch     *branch.Map
	Metrics    *stats.Metrics
	Logger     *stats.Logger
	Seeds      SeedSource
	NewExecutor func() (*executor.Executor, error)
	Dispatcher *strategy.Dispatcher
	Running    *RunningFlag

	// OutputDir, if set, is where a worker persists deduplicated crashing
	// and timing-out inputs (spec §6's on-disk crashes/ and hangs/
	// directories). Each file is named with a fresh UUID so concurrent
	// workers never collide on a filename.
	OutputDir string
}

// Run starts workers workers pulling from the Depot until the RunningFlag
// is cleared or the depot's minimum priority reaches DONE (spec §4.9: "pull
// (cond, priority); if priority is DONE, stop"). It returns the first
// worker error encountered, if any.
func (e *Engine) Run(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	pool := workerpool.New(workers)

	var mu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i := 0; i < workers; i++ {
		pool.Submit(func() {
			recordErr(e.workerLoop(ctx))
		})
	}
	pool.StopWait()
	return firstErr
}

func (e *Engine) workerLoop(ctx context.Context) error {
	exec, err := e.NewExecutor()
	if err != nil {
		return err
	}
	defer exec.Close()

	for e.Running.Running() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		s, ok := e.Depot.GetEntry()
		if !ok {
			return nil // queue drained or every condition is DONE
		}
		if s.Condition == cond.ConditionDone {
			e.Depot.UpdateEntry(s)
			continue
		}

		seed := e.Seeds.SeedFor(s)
		handler := &SearchHandler{Running: e.Running, Exec: exec, Stmt: s, Seed: seed, Branch: e.Branch, OutputDir: e.OutputDir}

		if err := e.Dispatcher.Run(s, seed, handler.Eval(ctx)); err != nil {
			e.Logger.Warn("strategy run failed", "cond", s.Id().String(), "error", err)
		}

		if s.State == cond.StateDone || s.Condition == cond.ConditionDone {
			e.Metrics.ConditionsSolved.Inc()
		}
		e.Metrics.QueueDepth.Set(float64(e.Depot.Len()))
		e.Metrics.UniqueEdges.Set(float64(e.Branch.EdgeCount()))
		e.Metrics.CoverageDensity.Set(e.Branch.Density())

		e.Depot.UpdateEntry(s)
	}
	return nil
}
