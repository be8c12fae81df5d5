package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jihwankim/gradfuzz/pkg/cond"
	"github.com/jihwankim/gradfuzz/pkg/depot"
	"github.com/jihwankim/gradfuzz/pkg/stats"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Args:  cobra.NoArgs,
	Short: "Print a summary of a session's cond_queue.csv and chart.json",
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().String("output", "./out", "output directory to read cond_queue.csv/chart.json from")
}

func runDump(cmd *cobra.Command, _ []string) error {
	outputDir, _ := cmd.Flags().GetString("output")

	queuePath := filepath.Join(outputDir, "cond_queue.csv")
	dep, err := depot.Load(queuePath, cond.Done-1)
	if err != nil {
		return fmt.Errorf("load %s: %w", queuePath, err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"cmpid", "order", "belong", "state", "priority", "fuzz_times", "num_min_optima"})
	for _, s := range dep.All() {
		table.Append([]string{
			strconv.FormatUint(uint64(s.Cmpid), 10),
			strconv.FormatUint(uint64(s.Order), 10),
			strconv.FormatUint(uint64(s.Belong), 10),
			s.State.String(),
			strconv.FormatUint(uint64(s.Priority), 10),
			strconv.FormatUint(uint64(s.FuzzTimes), 10),
			strconv.FormatUint(uint64(s.NumMinOptima), 10),
		})
	}
	fmt.Printf("cond_queue.csv: %d conditions\n", dep.Len())
	table.Render()

	chartPath := filepath.Join(outputDir, "chart.json")
	storage, err := stats.NewStorage(outputDir)
	if err != nil {
		return fmt.Errorf("open %s: %w", chartPath, err)
	}
	history, err := storage.Load()
	if err != nil {
		return fmt.Errorf("load %s: %w", chartPath, err)
	}
	if len(history) == 0 {
		fmt.Println("chart.json: no recorded intervals")
		return nil
	}
	latest := history[len(history)-1]
	fmt.Printf("chart.json: %d intervals recorded\n", len(history))
	stats.NewReporter(os.Stdout).Report(latest)

	if verbose {
		raw, _ := json.MarshalIndent(latest, "", "  ")
		fmt.Println(string(raw))
	}
	return nil
}
