package stats

import (
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// HostStats is a point-in-time read of the machine's CPU/memory pressure.
// No caller in this repository reads it: the worker pool is sized from the
// configured job count only (spec §5's resource model).
type HostStats struct {
	CPUPercent  float64
	MemUsedPct  float64
	MemAvailMB  uint64
}

// ReadHostStats samples current CPU and memory usage.
func ReadHostStats() (HostStats, error) {
	var hs HostStats

	cpuPercents, err := cpu.Percent(0, false)
	if err != nil {
		return hs, err
	}
	if len(cpuPercents) > 0 {
		hs.CPUPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return hs, err
	}
	hs.MemUsedPct = vm.UsedPercent
	hs.MemAvailMB = vm.Available / (1024 * 1024)

	return hs, nil
}
