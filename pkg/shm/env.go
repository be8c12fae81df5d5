// Package shm implements the two shared-memory channels the executor hands
// to the instrumented child process (C2, spec §4.2): the branch-coverage
// table and the single condition slot. Both are SysV shared memory segments
// created by the parent before fork and handed to the child by id through
// an environment variable, using golang.org/x/sys/unix rather than cgo or a
// hand-rolled syscall wrapper.
package shm

// Environment variable names the forkserver protocol (spec §6) uses to pass
// shared-memory segment ids from parent to child.
const (
	BranchesShmIDEnv = "ANGORA_BRANCHES_SHM_ID"
	CondStmtIDEnv    = "ANGORA_COND_STMT_ID"
)
