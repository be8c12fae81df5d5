// Package depot implements the condition priority queue and CondId lookup
// table (C4, spec §4.3): the single shared structure every fuzz-loop worker
// pulls conditions from and pushes them back into.
package depot

import (
	"container/heap"
	"sync"

	"github.com/jihwankim/gradfuzz/pkg/cond"
)

type pqEntry struct {
	id       cond.Id
	priority cond.Priority
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*pqEntry)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Depot is the single shared priority queue plus CondId lookup table: one
// mutex, short critical sections (spec §5). Conditions are looked up by
// CondId so a repeated discovery of the same branch merges into the
// existing Stmt instead of creating a duplicate.
type Depot struct {
	mu          sync.Mutex
	stmts       map[cond.Id]*cond.Stmt
	pq          priorityQueue
	maxPriority cond.Priority
}

// New constructs an empty Depot. maxPriority caps how far a condition's
// priority can be pushed back by repeated Inc calls; past it the condition
// becomes Done and is no longer scheduled (spec §3 QPriority, §4.3).
func New(maxPriority cond.Priority) *Depot {
	if maxPriority == 0 || maxPriority >= cond.Done {
		maxPriority = cond.Done - 1
	}
	return &Depot{
		stmts:       make(map[cond.Id]*cond.Stmt),
		maxPriority: maxPriority,
	}
}

// Add records an observation of a condition: a first-time CondId is
// inserted into both the lookup table and the queue at its initial
// priority; a repeat observation merges into the existing Stmt's offsets
// and speed without touching its position in the queue (spec §4.3 add()).
func (d *Depot) Add(base cond.Base, offsets []uint32, variable []byte) *cond.Stmt {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := base.Id()
	if s, ok := d.stmts[id]; ok {
		s.Merge(base, offsets)
		return s
	}

	s := cond.NewStmt(base, offsets, variable)
	d.stmts[id] = s
	heap.Push(&d.pq, &pqEntry{id: id, priority: s.Priority})
	return s
}

// GetEntry pops the lowest-priority condition and returns it for a worker
// to fuzz, or ok=false if the queue is empty or the minimum priority is the
// Done sentinel (spec §4.3 get_entry()). A popped condition is not in the
// queue again until the worker calls UpdateEntry, which is how the depot
// guarantees no two workers fuzz the same condition concurrently (spec §5,
// §8 S6).
func (d *Depot) GetEntry() (*cond.Stmt, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pq) == 0 {
		return nil, false
	}
	if d.pq[0].priority == cond.Done {
		return nil, false
	}
	e := heap.Pop(&d.pq).(*pqEntry)
	s, ok := d.stmts[e.id]
	if !ok {
		return nil, false
	}
	return s, true
}

// UpdateEntry writes a fuzzed condition back: if it's Done it is dropped
// from the queue for good, otherwise its priority advances to the back of
// its scheduling class and it is reinserted (spec §4.3 update_entry()).
func (d *Depot) UpdateEntry(s *cond.Stmt) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.Priority == cond.Done || s.State == cond.StateDone {
		s.Priority = cond.Done
		return
	}
	s.Priority = s.Priority.Inc(d.maxPriority)
	heap.Push(&d.pq, &pqEntry{id: s.Id(), priority: s.Priority})
}

// Len returns the number of conditions currently queued (not counting those
// checked out by a worker).
func (d *Depot) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pq)
}

// Lookup returns the Stmt for an id, if the depot has ever seen it,
// regardless of whether it's currently queued or checked out.
func (d *Depot) Lookup(id cond.Id) (*cond.Stmt, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.stmts[id]
	return s, ok
}

// All returns a snapshot slice of every Stmt the depot has ever recorded,
// for dumping.
func (d *Depot) All() []*cond.Stmt {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*cond.Stmt, 0, len(d.stmts))
	for _, s := range d.stmts {
		out = append(out, s)
	}
	return out
}
