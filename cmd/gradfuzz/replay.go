package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/gradfuzz/pkg/branch"
	"github.com/jihwankim/gradfuzz/pkg/cond"
	"github.com/jihwankim/gradfuzz/pkg/executor"
)

var replayCmd = &cobra.Command{
	Use:   "replay <input-file>",
	Args:  cobra.ExactArgs(1),
	Short: "Re-run a single recorded input through the executor for triage",
	Long: `replay loads one input file (typically from crashes/ or hangs/) and runs
it once through the target, printing the classified exit status and, if a
--cmpid is given, the objective value observed for that condition.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("target", "", "path to the target binary (required)")
	replayCmd.Flags().StringArray("target-args", []string{"@@"}, "target arguments, @@ substituted with the input path")
	replayCmd.Flags().Int64("mem-limit", 200, "memory limit in MB")
	replayCmd.Flags().Int("time-limit", 1000, "time limit in ms")
	replayCmd.Flags().Uint32("cmpid", 0, "cmpid of the condition to evaluate the objective for")
}

func runReplay(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	targetPath, _ := cmd.Flags().GetString("target")
	if targetPath == "" {
		return fmt.Errorf("--target is required")
	}
	targetArgs, _ := cmd.Flags().GetStringArray("target-args")
	memLimit, _ := cmd.Flags().GetInt64("mem-limit")
	timeLimitMS, _ := cmd.Flags().GetInt("time-limit")
	cmpid, _ := cmd.Flags().GetUint32("cmpid")

	input, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	bmap := branch.New()
	ex, err := executor.New(executor.Config{
		TargetPath: targetPath,
		TargetArgs: targetArgs,
		UseStdin:   !hasAtAt(targetArgs),
		Mode:       executor.ModeFast,
		TimeLimit:  time.Duration(timeLimitMS) * time.Millisecond,
		MemLimitMB: memLimit,
		TmoutSkip:  1,
	}, bmap)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	defer ex.Close()

	base := &cond.Base{Cmpid: cmpid}
	res, err := ex.Run(context.Background(), input, base)
	if err != nil {
		return fmt.Errorf("replay run: %w", err)
	}

	fmt.Printf("status:     %s\n", res.Status)
	fmt.Printf("new edge:   %v\n", res.NewEdge)
	fmt.Printf("edge hits:  %d\n", res.EdgeHits)
	if cmpid != 0 {
		fmt.Printf("observed:   %s\n", res.Observed)
		fmt.Printf("objective:  %g\n", res.Objective)
	}
	if res.Status == executor.StatusCrash {
		fmt.Printf("crash kind: %s\n", res.Crash.ErrorKind)
		fmt.Printf("new crash:  %v\n", res.NewCrash)
	}
	return nil
}
