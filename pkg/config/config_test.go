package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jihwankim/gradfuzz/pkg/strategy"
)

func TestDefaultConfigPassesValidateOnceTargetIsSet(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to require target.path")
	}
	cfg.Target.Path = "/bin/true"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Execution.SearchMethod != "gd" {
		t.Fatalf("SearchMethod = %q, want gd", cfg.Execution.SearchMethod)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target.Path = "/bin/echo"
	cfg.Target.Args = []string{"@@"}
	cfg.Paths.OutputDir = "/tmp/gradfuzz-out"
	cfg.Features.DisableAFL = true

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Target.Path != cfg.Target.Path {
		t.Fatalf("Target.Path = %q, want %q", got.Target.Path, cfg.Target.Path)
	}
	if !got.Features.DisableAFL {
		t.Fatal("expected Features.DisableAFL to round-trip true")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("GRADFUZZ_TEST_TARGET", "/bin/cat")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "target:\n  path: \"${GRADFUZZ_TEST_TARGET}\"\n  args: [\"@@\"]\n" +
		"paths:\n  input_dir: \"./in\"\n  output_dir: \"./out\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Target.Path != "/bin/cat" {
		t.Fatalf("Target.Path = %q, want /bin/cat", cfg.Target.Path)
	}
}

func TestLoadOutputDirEnvOverridesFile(t *testing.T) {
	t.Setenv("GRADFUZZ_OUTPUT_DIR", "/tmp/override-out")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "target:\n  path: \"/bin/true\"\npaths:\n  input_dir: \"./in\"\n  output_dir: \"./from-file\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Paths.OutputDir != "/tmp/override-out" {
		t.Fatalf("Paths.OutputDir = %q, want env override", cfg.Paths.OutputDir)
	}
}

func TestDecodeStrategyLimitsOverridesOnlyGivenKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.StrategyTuning = map[string]interface{}{
		"MaxEpoch": 50,
	}
	defaults := strategy.Limits{
		MaxSearchExecNum:  10000,
		MaxExploitExecNum: 10000,
		MaxInputLen:       1 << 20,
		MaxEpoch:          200,
		MaxRestartRounds:  8,
	}

	got, err := cfg.DecodeStrategyLimits(defaults)
	if err != nil {
		t.Fatalf("DecodeStrategyLimits() error = %v", err)
	}
	if got.MaxEpoch != 50 {
		t.Fatalf("MaxEpoch = %d, want 50", got.MaxEpoch)
	}
	if got.MaxSearchExecNum != defaults.MaxSearchExecNum {
		t.Fatalf("MaxSearchExecNum = %d, want untouched default %d", got.MaxSearchExecNum, defaults.MaxSearchExecNum)
	}
}

func TestDecodeStrategyLimitsNoopWhenEmpty(t *testing.T) {
	cfg := DefaultConfig()
	defaults := strategy.Limits{MaxEpoch: 200}

	got, err := cfg.DecodeStrategyLimits(defaults)
	if err != nil {
		t.Fatalf("DecodeStrategyLimits() error = %v", err)
	}
	if got != defaults {
		t.Fatalf("DecodeStrategyLimits() = %+v, want untouched defaults %+v", got, defaults)
	}
}

func TestValidateRejectsUnknownSearchMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target.Path = "/bin/true"
	cfg.Execution.SearchMethod = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an unknown search method")
	}
}
