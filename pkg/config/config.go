// Package config loads and validates the on-disk configuration for a
// gradfuzz run (spec §1.2), mirroring the teacher's pkg/config.Config shape:
// a yaml-tagged struct with sub-structs per subsystem, defaults, env-var
// overrides, and Save/Validate.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/jihwankim/gradfuzz/pkg/strategy"
)

// Config is the effective configuration for one fuzzing session.
type Config struct {
	Target    TargetConfig    `yaml:"target"`
	Paths     PathsConfig     `yaml:"paths"`
	Limits    LimitsConfig    `yaml:"limits"`
	Execution ExecutionConfig `yaml:"execution"`
	Features  FeaturesConfig  `yaml:"features"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TargetConfig describes the program under test and its invocation.
type TargetConfig struct {
	// Path is the fast (uninstrumented-for-taint) binary run on every input.
	Path string `yaml:"path"`
	// Args are passed to Path; "@@" is replaced with the input file path,
	// or the input is piped on stdin if no "@@" appears (spec §5, executor.Config.UseStdin).
	Args []string `yaml:"args"`
	// TrackPath is the path of the taint-tracking build. It is recorded in
	// the configuration only; the run command does not execute it.
	TrackPath string `yaml:"track_path"`
	// SanitizedPath is the path of an optional ASAN/MSAN build. It is
	// recorded in the configuration only; the run command does not execute it.
	SanitizedPath string `yaml:"sanitized_path"`
}

// PathsConfig is the on-disk layout a session reads seeds from and writes
// queue/crashes/hangs/chart.json/cond_queue.csv into (spec §5's on-disk layout).
type PathsConfig struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
}

// LimitsConfig bounds one execution and one input.
type LimitsConfig struct {
	TimeLimitMS      int   `yaml:"time_limit_ms"`
	TrackTimeLimitMS int   `yaml:"track_time_limit_ms"`
	MemLimitMB       int64 `yaml:"mem_limit_mb"`
	InputSizeLimit   int   `yaml:"input_size_limit"`
}

// ExecutionConfig shapes how the worker pool runs.
type ExecutionConfig struct {
	Jobs         int    `yaml:"jobs"`
	SearchMethod string `yaml:"search_method"` // "gd" | "random" | "mb"
	MaxPriority  int    `yaml:"max_priority"`

	// StrategyTuning holds free-form per-strategy overrides (e.g.
	// max_search_exec_num, max_epoch) read straight from YAML as
	// map[string]interface{} and decoded into a strategy.Limits by
	// DecodeStrategyLimits. Keeping this untyped here lets an operator
	// override a single strategy knob without this struct growing a field
	// for every one strategy.Limits exposes.
	StrategyTuning map[string]interface{} `yaml:"strategy_tuning"`
}

// FeaturesConfig holds the boolean toggles spec.md §6 names. sync_afl is
// not represented here: periodically importing queue entries from a
// companion AFL instance has no subsystem in this tree to attach to (the
// same out-of-scope-collaborator boundary bootstrapDepot documents for
// seed import), so the toggle was dropped from the CLI surface rather than
// accepted and silently ignored.
type FeaturesConfig struct {
	DisableAFL          bool `yaml:"disable_afl"`
	DisableExploitation bool `yaml:"disable_exploitation"`
	DisableDynSign      bool `yaml:"disable_dyn_sign"`
	DisableDynEndian    bool `yaml:"disable_dyn_endian"`
	AssumeBE            bool `yaml:"assume_be"`
	Belong              bool `yaml:"belong"`
	Order               bool `yaml:"order"`
}

// MetricsConfig controls the optional Prometheus exporter (spec §2 domain
// stack: client_golang flipped to a producer role).
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the configuration a bare `gradfuzz run` starts from.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Args: []string{"@@"},
		},
		Paths: PathsConfig{
			InputDir:  "./in",
			OutputDir: "./out",
		},
		Limits: LimitsConfig{
			TimeLimitMS:      1000,
			TrackTimeLimitMS: 5000,
			MemLimitMB:       200,
			InputSizeLimit:   1 << 20,
		},
		Execution: ExecutionConfig{
			Jobs:         1,
			SearchMethod: "gd",
			MaxPriority:  1000,
		},
		Features: FeaturesConfig{},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9091",
		},
	}
}

// Load reads path (default "config.yaml" when empty), applying ${VAR}
// expansion and layering it over DefaultConfig(). A missing file is not an
// error: Load returns the defaults. GRADFUZZ_OUTPUT_DIR and
// GRADFUZZ_TRACK_TARGET, if set, override the corresponding fields after the
// file is parsed, the same way the teacher's Load overrides PROMETHEUS_URL.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	outputDirEnv, outputDirSet := os.LookupEnv("GRADFUZZ_OUTPUT_DIR")
	trackTargetEnv, trackTargetSet := os.LookupEnv("GRADFUZZ_TRACK_TARGET")

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if outputDirSet {
		cfg.Paths.OutputDir = outputDirEnv
	}
	if trackTargetSet {
		cfg.Target.TrackPath = trackTargetEnv
	}

	return cfg, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DecodeStrategyLimits overlays c.Execution.StrategyTuning onto defaults,
// decoding the free-form YAML map into a strategy.Limits the way the
// teacher's injector decoded free-form fault parameters field by field —
// here as one declarative mapstructure.Decode call instead of repeated
// manual type assertions. An empty StrategyTuning leaves defaults untouched.
func (c *Config) DecodeStrategyLimits(defaults strategy.Limits) (strategy.Limits, error) {
	limits := defaults
	if len(c.Execution.StrategyTuning) == 0 {
		return limits, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &limits,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return defaults, fmt.Errorf("failed to build strategy tuning decoder: %w", err)
	}
	if err := decoder.Decode(c.Execution.StrategyTuning); err != nil {
		return defaults, fmt.Errorf("failed to decode execution.strategy_tuning: %w", err)
	}
	return limits, nil
}

// Validate reports the first configuration error found, if any.
func (c *Config) Validate() error {
	if c.Target.Path == "" {
		return fmt.Errorf("target.path is required")
	}
	if c.Paths.InputDir == "" {
		return fmt.Errorf("paths.input_dir is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("paths.output_dir is required")
	}
	if c.Limits.TimeLimitMS < 1 {
		return fmt.Errorf("limits.time_limit_ms must be at least 1")
	}
	if c.Limits.MemLimitMB < 1 {
		return fmt.Errorf("limits.mem_limit_mb must be at least 1")
	}
	if c.Execution.Jobs < 1 {
		return fmt.Errorf("execution.jobs must be at least 1")
	}
	switch c.Execution.SearchMethod {
	case "gd", "random", "mb":
	default:
		return fmt.Errorf("execution.search_method must be one of gd, random, mb; got %q", c.Execution.SearchMethod)
	}
	return nil
}
