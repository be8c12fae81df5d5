package shm

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/jihwankim/gradfuzz/pkg/cond"
)

// CondSlot is the single fixed-layout condition record (cond.Base) shared
// between the parent and the instrumented child (spec §4.2): the parent
// fills it with the condition it wants measured before a run, and the
// child, if it crosses a branch matching the slot's cmpid/context, writes
// its observed operands back before exiting.
type CondSlot struct {
	id   int
	data []byte
}

// NewCondSlot allocates a fresh condition slot.
func NewCondSlot() (*CondSlot, error) {
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, cond.BaseWireSize, unix.IPC_CREAT|0600)
	if err != nil {
		return nil, fmt.Errorf("shm: create cond slot: %w", err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("shm: attach cond slot: %w", err)
	}
	return &CondSlot{id: id, data: data}, nil
}

// ID is the SysV shared-memory identifier to export via CondStmtIDEnv.
func (s *CondSlot) ID() int { return s.id }

// Reset zeros the slot, done before every run by the parent.
func (s *CondSlot) Reset() {
	for i := range s.data {
		s.data[i] = 0
	}
}

// Write fills the slot with the condition the child should measure this
// run.
func (s *CondSlot) Write(b cond.Base) error {
	buf, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	copy(s.data, buf)
	return nil
}

// Read returns the slot's current contents, as the child last wrote them
// (or the parent's own write, if the child never matched it).
func (s *CondSlot) Read() (cond.Base, error) {
	var b cond.Base
	if err := b.UnmarshalBinary(s.data); err != nil {
		return cond.Base{}, err
	}
	return b, nil
}

// Close detaches and removes the shared-memory segment.
func (s *CondSlot) Close() error {
	if err := unix.SysvShmDetach(s.data); err != nil {
		return fmt.Errorf("shm: detach cond slot: %w", err)
	}
	if _, err := unix.SysvShmCtl(s.id, unix.IPC_RMID, nil); err != nil {
		return fmt.Errorf("shm: remove cond slot: %w", err)
	}
	return nil
}
