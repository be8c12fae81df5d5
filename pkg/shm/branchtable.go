package shm

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// BranchTable is a SysV shared-memory segment of entries u16 hit counters,
// one per edge, that the instrumented child increments on every branch it
// crosses (spec §4.2). The parent zeros it before every run and reads it
// back into a trace for branch.Map.Observe.
type BranchTable struct {
	id      int
	data    []byte
	entries int
}

// NewBranchTable allocates a fresh branch table sized for entries edges.
func NewBranchTable(entries int) (*BranchTable, error) {
	size := entries * 2
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0600)
	if err != nil {
		return nil, fmt.Errorf("shm: create branch table (%d bytes): %w", size, err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("shm: attach branch table: %w", err)
	}
	return &BranchTable{id: id, data: data, entries: entries}, nil
}

// ID is the SysV shared-memory identifier to export via BranchesShmIDEnv.
func (t *BranchTable) ID() int { return t.id }

// Reset zeros every counter, done before every run by the parent (spec
// §4.2: "both zeroed before every run").
func (t *BranchTable) Reset() {
	for i := range t.data {
		t.data[i] = 0
	}
}

// Trace copies the current counters out as a []uint16, one per edge, for
// branch.Map.Observe.
func (t *BranchTable) Trace() []uint16 {
	out := make([]uint16, t.entries)
	for i := 0; i < t.entries; i++ {
		out[i] = binary.LittleEndian.Uint16(t.data[i*2:])
	}
	return out
}

// Close detaches and removes the shared-memory segment. It must only be
// called once, when the owning executor worker shuts down.
func (t *BranchTable) Close() error {
	if err := unix.SysvShmDetach(t.data); err != nil {
		return fmt.Errorf("shm: detach branch table: %w", err)
	}
	if _, err := unix.SysvShmCtl(t.id, unix.IPC_RMID, nil); err != nil {
		return fmt.Errorf("shm: remove branch table: %w", err)
	}
	return nil
}
