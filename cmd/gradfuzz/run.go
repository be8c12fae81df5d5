package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jihwankim/gradfuzz/pkg/branch"
	"github.com/jihwankim/gradfuzz/pkg/cond"
	"github.com/jihwankim/gradfuzz/pkg/config"
	"github.com/jihwankim/gradfuzz/pkg/depot"
	"github.com/jihwankim/gradfuzz/pkg/executor"
	"github.com/jihwankim/gradfuzz/pkg/fuzzloop"
	"github.com/jihwankim/gradfuzz/pkg/stats"
	"github.com/jihwankim/gradfuzz/pkg/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run the fuzz loop against a target",
	Long: `run resumes the condition priority queue from --output's cond_queue.csv
if one exists (seed files under --input are not imported), drives it
through the gradient solver and secondary strategies, and writes the queue,
crashes/hangs, and per-interval stats to --output.`,
	RunE: runFuzz,
}

func init() {
	runCmd.Flags().String("input", "./in", "seed input directory")
	runCmd.Flags().String("output", "./out", "output directory (queue/, crashes/, hangs/, cond_queue.csv, chart.json)")
	runCmd.Flags().String("target", "", "path to the fast target binary (required)")
	runCmd.Flags().StringArray("target-args", []string{"@@"}, "target arguments, @@ substituted with the input path")
	runCmd.Flags().String("track-target", "", "path to the taint-tracking build")
	runCmd.Flags().String("sanitized-target", "", "path to an ASAN/MSAN build for crash triage")
	runCmd.Flags().Int("jobs", 1, "number of worker threads")
	runCmd.Flags().Int64("mem-limit", 200, "memory limit in MB (RLIMIT_AS)")
	runCmd.Flags().Int("time-limit", 1000, "per-execution time limit in ms")
	runCmd.Flags().String("search-method", "gd", "search method: gd|random|mb")
	runCmd.Flags().Bool("disable-afl", false, "disable AFL-style havoc fallback")
	runCmd.Flags().Bool("disable-exploitation", false, "disable the exploit strategy")
	runCmd.Flags().Bool("disable-dyn-sign", false, "disable dynamic sign inference")
	runCmd.Flags().Bool("disable-dyn-endian", false, "disable dynamic endian inference")
	runCmd.Flags().Bool("assume-be", false, "assume big-endian operands")
}

func runFuzz(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := stats.LevelInfo
	if verbose {
		logLevel = stats.LevelDebug
	}
	logger := stats.NewLogger(stats.LoggerConfig{Level: logLevel, Format: stats.FormatText, Output: os.Stdout})
	logger.Info("gradfuzz starting", "version", version, "target", cfg.Target.Path)

	for _, dir := range []string{"queue", "crashes", "hangs"} {
		if err := os.MkdirAll(filepath.Join(cfg.Paths.OutputDir, dir), 0755); err != nil {
			return fmt.Errorf("create %s dir: %w", dir, err)
		}
	}

	bmap := branch.New()
	dep, err := bootstrapDepot(cfg, bmap, logger)
	if err != nil {
		return fmt.Errorf("bootstrap depot: %w", err)
	}

	// The engine always records into a private registry; Config.Metrics.Enabled
	// only controls whether cmd/gradfuzz additionally exposes it over HTTP.
	metrics := stats.NewMetrics()

	storage, err := stats.NewStorage(cfg.Paths.OutputDir)
	if err != nil {
		return fmt.Errorf("create stats storage: %w", err)
	}
	reporter := stats.NewReporter(os.Stdout)

	running := fuzzloop.NewRunningFlag()
	running.StopOnSignal()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	limits, err := cfg.DecodeStrategyLimits(strategy.Limits{
		MaxSearchExecNum:    10000,
		MaxExploitExecNum:   10000,
		MaxInputLen:         cfg.Limits.InputSizeLimit,
		MaxEpoch:            200,
		MaxRestartRounds:    8,
		AssumeBE:            cfg.Features.AssumeBE,
		DisableDynSign:      cfg.Features.DisableDynSign,
		DisableDynEndian:    cfg.Features.DisableDynEndian,
		DisableAFL:          cfg.Features.DisableAFL,
		DisableExploitation: cfg.Features.DisableExploitation,
	})
	if err != nil {
		return fmt.Errorf("decode strategy tuning: %w", err)
	}
	dispatcher := strategy.New(limits, rng)

	engine := &fuzzloop.Engine{
		Depot:      dep,
		Branch:     bmap,
		Metrics:    metrics,
		Logger:     logger,
		Seeds:      fuzzloop.VariableSeedSource{},
		Dispatcher: dispatcher,
		Running:    running,
		OutputDir:  cfg.Paths.OutputDir,
		NewExecutor: func() (*executor.Executor, error) {
			return executor.New(executor.Config{
				TargetPath:   cfg.Target.Path,
				TargetArgs:   cfg.Target.Args,
				UseStdin:     !hasAtAt(cfg.Target.Args),
				Mode:         executor.ModeFast,
				TimeLimit:    time.Duration(cfg.Limits.TimeLimitMS) * time.Millisecond,
				MemLimitMB:   cfg.Limits.MemLimitMB,
				TmoutSkip:    3,
				RestartEvery: 1000,
				WorkDir:      cfg.Paths.OutputDir,
			}, bmap)
		},
	}

	var g errgroup.Group
	g.Go(func() error { return engine.Run(ctx, cfg.Execution.Jobs) })
	g.Go(func() error { return reportLoop(ctx, dep, bmap, storage, reporter, cfg) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return serveMetrics(ctx, metrics, cfg.Metrics.ListenAddr, logger) })
	}

	err = g.Wait()

	if dumpErr := depot.Dump(dep, filepath.Join(cfg.Paths.OutputDir, "cond_queue.csv")); dumpErr != nil {
		logger.Warn("final cond_queue.csv dump failed", "error", dumpErr)
	}
	if metricsErr := writeMetricsSnapshot(metrics, cfg.Paths.OutputDir); metricsErr != nil {
		logger.Warn("final metrics.txt dump failed", "error", metricsErr)
	}
	logger.Info("gradfuzz stopped", "queue_depth", dep.Len(), "unique_edges", bmap.EdgeCount())
	return err
}

// reportLoop periodically snapshots queue depth, coverage and host stats to
// chart.json and the console, independent of the worker engine (spec §6
// "chart.json — per-interval stats"). It is one of the independent
// concurrent subsystems errgroup coordinates here, alongside the worker
// engine and, when Metrics.Enabled is set, the metrics HTTP server.
func reportLoop(ctx context.Context, dep *depot.Depot, bmap *branch.Map, storage *stats.Storage, reporter *stats.Reporter, cfg *config.Config) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var execs uint64
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			execs += uint64(cfg.Execution.Jobs) // approximate; precise count lives on each Executor
			elapsed := time.Since(start).Seconds()
			snap := stats.Snapshot{
				TimestampUnix:    time.Now().Unix(),
				Execs:            execs,
				ExecsPerSec:      float64(execs) / elapsed,
				UniqueEdges:      bmap.EdgeCount(),
				CoverageDensity:  bmap.Density(),
				QueueDepth:       dep.Len(),
				Crashes:          bmap.CrashCount(),
				ConditionsSolved: countDone(dep),
			}
			if err := storage.Append(snap); err != nil {
				return fmt.Errorf("append chart.json: %w", err)
			}
			reporter.Report(snap)
			if err := depot.Dump(dep, filepath.Join(cfg.Paths.OutputDir, "cond_queue.csv")); err != nil {
				return fmt.Errorf("dump cond_queue.csv: %w", err)
			}
		}
	}
}

// serveMetrics exposes metrics over promhttp.Handler() until ctx is
// cancelled (SPEC_FULL.md §2: "serves them over promhttp.Handler() on the
// address in Config.Metrics.ListenAddr when enabled").
func serveMetrics(ctx context.Context, metrics *stats.Metrics, addr string, logger *stats.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

// writeMetricsSnapshot records the final metric values in the Prometheus
// text exposition format (SPEC_FULL.md §2: prometheus/common's expfmt,
// independent of the live promhttp listener) so a session run with
// Metrics.Enabled off still leaves a metrics.txt an operator can diff across
// runs.
func writeMetricsSnapshot(metrics *stats.Metrics, outputDir string) error {
	f, err := os.Create(filepath.Join(outputDir, "metrics.txt"))
	if err != nil {
		return fmt.Errorf("create metrics.txt: %w", err)
	}
	defer f.Close()
	return metrics.WriteText(f)
}

func countDone(dep *depot.Depot) int {
	n := 0
	for _, s := range dep.All() {
		if s.State == cond.StateDone {
			n++
		}
	}
	return n
}

// bootstrapDepot resumes from an existing cond_queue.csv if present;
// otherwise it returns an empty depot that the fuzz loop's own tracking
// executions populate as new edges are found. Seed import and the
// taint-tracking pass that discovers a seed's initial conditions are
// out-of-scope collaborators (spec.md §1); a pre-existing cond_queue.csv is
// the one bootstrap path this command implements directly.
func bootstrapDepot(cfg *config.Config, bmap *branch.Map, logger *stats.Logger) (*depot.Depot, error) {
	queuePath := filepath.Join(cfg.Paths.OutputDir, "cond_queue.csv")
	maxPriority := cond.Priority(cfg.Execution.MaxPriority)
	if _, err := os.Stat(queuePath); err == nil {
		logger.Info("resuming from existing queue", "path", queuePath)
		return depot.Load(queuePath, maxPriority)
	}
	return depot.New(maxPriority), nil
}

func hasAtAt(args []string) bool {
	for _, a := range args {
		if a == "@@" {
			return true
		}
	}
	return false
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("input"); v != "" {
		cfg.Paths.InputDir = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Paths.OutputDir = v
	}
	if v, _ := cmd.Flags().GetString("target"); v != "" {
		cfg.Target.Path = v
	}
	if v, _ := cmd.Flags().GetStringArray("target-args"); len(v) > 0 {
		cfg.Target.Args = v
	}
	if v, _ := cmd.Flags().GetString("track-target"); v != "" {
		cfg.Target.TrackPath = v
	}
	if v, _ := cmd.Flags().GetString("sanitized-target"); v != "" {
		cfg.Target.SanitizedPath = v
	}
	if v, _ := cmd.Flags().GetInt("jobs"); v > 0 {
		cfg.Execution.Jobs = v
	}
	if v, _ := cmd.Flags().GetInt64("mem-limit"); v > 0 {
		cfg.Limits.MemLimitMB = v
	}
	if v, _ := cmd.Flags().GetInt("time-limit"); v > 0 {
		cfg.Limits.TimeLimitMS = v
	}
	if v, _ := cmd.Flags().GetString("search-method"); v != "" {
		cfg.Execution.SearchMethod = v
	}
	if v, _ := cmd.Flags().GetBool("disable-afl"); v {
		cfg.Features.DisableAFL = true
	}
	if v, _ := cmd.Flags().GetBool("disable-exploitation"); v {
		cfg.Features.DisableExploitation = true
	}
	if v, _ := cmd.Flags().GetBool("disable-dyn-sign"); v {
		cfg.Features.DisableDynSign = true
	}
	if v, _ := cmd.Flags().GetBool("disable-dyn-endian"); v {
		cfg.Features.DisableDynEndian = true
	}
	if v, _ := cmd.Flags().GetBool("assume-be"); v {
		cfg.Features.AssumeBE = true
	}
}
