// Package executor wraps the forkserver channel (C5, spec §4.4): writing a
// candidate input, zeroing and reading back the shared-memory branch table
// and condition slot, classifying the exit, and computing the objective.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/jihwankim/gradfuzz/pkg/branch"
	"github.com/jihwankim/gradfuzz/pkg/cond"
	"github.com/jihwankim/gradfuzz/pkg/fuzzerr"
	"github.com/jihwankim/gradfuzz/pkg/objective"
	"github.com/jihwankim/gradfuzz/pkg/shm"
)

// Mode selects whether the target is invoked for a fast, untained
// coverage-only run or a slow tainting run that recovers offsets (a
// supplemented feature recovered from original_source/fuzzer/src/executor,
// track.rs's fast/track executor split — spec.md's distillation mentions
// only "the executor" without naming this split explicitly).
type Mode uint8

const (
	ModeFast Mode = iota
	ModeTrack
)

// Status classifies how a run terminated.
type Status uint8

const (
	StatusNormal Status = iota
	StatusTimeout
	StatusCrash
	StatusSkip
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusTimeout:
		return "Timeout"
	case StatusCrash:
		return "Crash"
	case StatusSkip:
		return "Skip"
	default:
		return "Unknown"
	}
}

// Config are the executor's resource and retry limits (spec §5, §9).
type Config struct {
	TargetPath    string
	TargetArgs    []string // one element == "@@" is replaced by the temp input path
	UseStdin      bool
	Mode          Mode
	TimeLimit     time.Duration // fast-run timeout (TIME_LIMIT)
	TimeLimitMult int           // TIME_LIMIT_TRACK = TimeLimit * TimeLimitMult for ModeTrack
	MemLimitMB    int64
	TmoutSkip     int // consecutive-timeout retry budget before accepting Timeout
	RestartEvery  int // reopen the forkserver after this many runs
	WorkDir       string

	// RateLimit, if positive, caps executions per second dispatched through
	// this Executor — a resource-constrained-host throttle, not part of the
	// forkserver protocol itself. Zero means unlimited.
	RateLimit float64
}

// Result is one run's outcome: the classified exit plus the objective value
// computed from whatever the child wrote to the condition slot.
type Result struct {
	Status   Status
	Trace    []uint16
	IsNovel  bool
	NewEdge  bool
	EdgeHits int
	Objective float64
	Observed  cond.Condition
	Crash     branch.CrashInfo
	NewCrash  bool
	Stderr    string
}

// Executor owns one forkserver child plus its shared-memory branch table and
// condition slot; it is not safe for concurrent use — the fuzz loop gives
// each worker its own Executor (spec §5 "each worker owns its own
// Executor").
type Executor struct {
	cfg   Config
	table *shm.BranchTable
	slot  *shm.CondSlot
	bmap  *branch.Map

	mu       sync.Mutex
	runCount int
	cmd      *exec.Cmd
	limiter  *rate.Limiter
}

// New allocates the shared-memory channels and spawns the first child. bmap
// is the shared branch coverage map every worker's Executor reports into.
func New(cfg Config, bmap *branch.Map) (*Executor, error) {
	table, err := shm.NewBranchTable(branch.Size)
	if err != nil {
		return nil, fuzzerr.New(fuzzerr.SharedMemMapFail, "branch table", err)
	}
	slot, err := shm.NewCondSlot()
	if err != nil {
		table.Close()
		return nil, fuzzerr.New(fuzzerr.SharedMemMapFail, "condition slot", err)
	}
	e := &Executor{cfg: cfg, table: table, slot: slot, bmap: bmap}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return e, nil
}

// Close releases the executor's shared-memory channels and kills any live
// child process.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	err1 := e.table.Close()
	err2 := e.slot.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (e *Executor) timeout() time.Duration {
	if e.cfg.Mode == ModeTrack {
		mult := e.cfg.TimeLimitMult
		if mult <= 0 {
			mult = 20
		}
		return e.cfg.TimeLimit * time.Duration(mult)
	}
	return e.cfg.TimeLimit
}

// Run executes one candidate input against a condition, following the
// sequence in spec §4.4: write input, zero channels, seed the slot with
// (cmpid,context,op), run with timeout and retry-on-timeout, read back the
// branch table and observe it, compute the objective.
func (e *Executor) Run(ctx context.Context, input []byte, c *cond.Base) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("executor: rate limit: %w", err)
		}
	}

	inputPath, cleanup, err := e.writeInput(input)
	if err != nil {
		return Result{}, fmt.Errorf("executor: write input: %w", err)
	}
	defer cleanup()

	e.table.Reset()
	e.slot.Reset()
	seed := cond.Base{Cmpid: c.Cmpid, Context: c.Context, Op: c.Op}
	if err := e.slot.Write(seed); err != nil {
		return Result{}, fuzzerr.New(fuzzerr.SharedMemMapFail, "seed cond slot", err)
	}

	tmoutSkip := e.cfg.TmoutSkip
	if tmoutSkip <= 0 {
		tmoutSkip = 3
	}

	var status Status
	var stderr string
	var execErr error
	for attempt := 0; attempt <= tmoutSkip; attempt++ {
		status, stderr, execErr = e.runOnce(ctx, inputPath, input)
		if status != StatusTimeout {
			break
		}
	}
	if execErr != nil && status != StatusCrash {
		return Result{}, fuzzerr.New(fuzzerr.ForkserverDead, "run", execErr)
	}

	e.runCount++
	if e.cfg.RestartEvery > 0 && e.runCount%e.cfg.RestartEvery == 0 {
		e.killChild()
	}

	trace := e.table.Trace()
	isNovel, newEdge, edgeCount := e.bmap.Observe(trace, toBranchStatus(status))

	res := Result{
		Status:   status,
		Trace:    trace,
		IsNovel:  isNovel,
		NewEdge:  newEdge,
		EdgeHits: edgeCount,
		Stderr:   stderr,
	}

	if status == StatusCrash {
		info, isNew := e.bmap.DedupCrash(stderr)
		res.Crash = info
		res.NewCrash = isNew
	}

	got, err := e.slot.Read()
	if err != nil {
		return res, fuzzerr.New(fuzzerr.SharedMemMapFail, "read cond slot", err)
	}
	res.Observed = got.Condition
	// The seed slot is written with Size 0; the instrumented child sets it
	// to the operand width (1, 2, 4 or 8) only when it actually reaches and
	// records the condition. An unchanged Size means the branch was never
	// hit this run (spec §4.4 step 6's UNREACHABLE sentinel).
	if got.Size == 0 {
		res.Objective = objective.Unreachable
	} else {
		res.Objective = objective.Distance(c.Op, got.Size, got.Arg1, got.Arg2, got.Condition)
	}
	return res, nil
}

func toBranchStatus(s Status) branch.Status {
	switch s {
	case StatusTimeout:
		return branch.StatusTimeout
	case StatusCrash:
		return branch.StatusCrash
	default:
		return branch.StatusNormal
	}
}

func (e *Executor) writeInput(input []byte) (path string, cleanup func(), err error) {
	if !usesAtAt(e.cfg.TargetArgs) {
		return "", func() {}, nil
	}
	f, err := os.CreateTemp(e.cfg.WorkDir, "gradfuzz-input-*")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(input); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	f.Close()
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func usesAtAt(args []string) bool {
	for _, a := range args {
		if a == "@@" {
			return true
		}
	}
	return false
}

func (e *Executor) killChild() {
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
		_, _ = e.cmd.Process.Wait()
	}
	e.cmd = nil
}

// runOnce spawns (or reuses, in a persistent forkserver this would be a
// single long-lived process; here each run is a fresh child per the
// fast-path contract) the target, enforces MemLimitMB via setrlimit in the
// child, and waits with a timeout.
func (e *Executor) runOnce(ctx context.Context, inputPath string, input []byte) (Status, string, error) {
	args := make([]string, len(e.cfg.TargetArgs))
	for i, a := range e.cfg.TargetArgs {
		if a == "@@" {
			a = inputPath
		}
		args[i] = a
	}

	cmd := exec.CommandContext(ctx, e.cfg.TargetPath, args...)
	cmd.Env = e.childEnv()
	cmd.Dir = e.cfg.WorkDir
	var stderrBuf fdBuffer
	cmd.Stderr = &stderrBuf
	if e.cfg.UseStdin && inputPath == "" {
		cmd.Stdin = bytes.NewReader(input)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// RLIMIT_AS is set on this process and inherited by the fork, then
	// restored once the child has been reaped (spec §5 "memory cap
	// enforced by setrlimit in child").
	restore, err := applyRlimit(e.cfg.MemLimitMB)
	if err != nil {
		return StatusCrash, "", err
	}
	defer restore()

	e.cmd = cmd
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return StatusCrash, stderrBuf.String(), err
	}
	go func() { done <- cmd.Wait() }()

	timeout := e.timeout()
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	select {
	case err := <-done:
		e.cmd = nil
		if err == nil {
			return StatusNormal, stderrBuf.String(), nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				return StatusCrash, stderrBuf.String(), nil
			}
			return StatusNormal, stderrBuf.String(), nil
		}
		return StatusCrash, stderrBuf.String(), err
	case <-time.After(timeout):
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		e.cmd = nil
		return StatusTimeout, stderrBuf.String(), nil
	}
}

func (e *Executor) childEnv() []string {
	env := append([]string{}, os.Environ()...)
	env = append(env,
		fmt.Sprintf("%s=%d", shm.BranchesShmIDEnv, e.table.ID()),
		fmt.Sprintf("%s=%d", shm.CondStmtIDEnv, e.slot.ID()),
	)
	return env
}

// applyRlimit sets RLIMIT_AS for processes this process forks from this
// point on and returns a function that restores the previous limit. Using
// golang.org/x/sys/unix (rather than a second stdlib path) keeps this
// consistent with the rest of the package's direct-syscall style.
func applyRlimit(memLimitMB int64) (restore func(), err error) {
	if memLimitMB <= 0 {
		return func() {}, nil
	}
	var old unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &old); err != nil {
		return nil, fmt.Errorf("executor: getrlimit: %w", err)
	}
	bytes := uint64(memLimitMB) * 1024 * 1024
	newLimit := unix.Rlimit{Cur: bytes, Max: old.Max}
	if newLimit.Max != 0 && newLimit.Cur > newLimit.Max {
		newLimit.Cur = newLimit.Max
	}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &newLimit); err != nil {
		return nil, fmt.Errorf("executor: setrlimit: %w", err)
	}
	return func() { _ = unix.Setrlimit(unix.RLIMIT_AS, &old) }, nil
}

// fdBuffer is a minimal io.Writer used to capture a child's stderr without
// pulling in bytes.Buffer's broader API surface.
type fdBuffer struct {
	data []byte
}

func (b *fdBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *fdBuffer) String() string { return string(b.data) }
