package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Snapshot is one interval's worth of run statistics (the in-memory shape
// that both the console reporter and chart.json persistence consume).
type Snapshot struct {
	TimestampUnix   int64
	Execs           uint64
	ExecsPerSec     float64
	UniqueEdges     int
	CoverageDensity float64
	QueueDepth      int
	Crashes         int
	Timeouts        int
	ConditionsSolved int
}

// Reporter prints periodic Snapshots to a console table, adapted from the
// teacher's ProgressReporter (spec §7 "live UI prints per-class counts and
// density").
type Reporter struct {
	out io.Writer
}

// NewReporter constructs a Reporter writing to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Report renders one Snapshot as a two-column table.
func (r *Reporter) Report(s Snapshot) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"metric", "value"})
	rows := [][]string{
		{"execs", strconv.FormatUint(s.Execs, 10)},
		{"execs/sec", fmt.Sprintf("%.1f", s.ExecsPerSec)},
		{"unique edges", strconv.Itoa(s.UniqueEdges)},
		{"coverage density", fmt.Sprintf("%.4f", s.CoverageDensity)},
		{"queue depth", strconv.Itoa(s.QueueDepth)},
		{"crashes", strconv.Itoa(s.Crashes)},
		{"timeouts", strconv.Itoa(s.Timeouts)},
		{"conditions solved", strconv.Itoa(s.ConditionsSolved)},
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}
