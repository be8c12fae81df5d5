package cond

// Stmt is the depot's record for a single condition: the fixed Base plus
// everything the search strategies need across repeated visits — the
// taint-derived byte offsets that feed MutInput, a snapshot of the input's
// variable bytes at discovery time (used as a restart seed and, for Fn
// conditions, a source of magic bytes), bookkeeping counters and the
// priority-relevant flags.
type Stmt struct {
	Base

	// Offsets are the primary taint offsets for this condition's operand;
	// OffsetsOpt is a secondary, optional set (e.g. the other operand of a
	// two-sided comparison) consulted when Offsets alone can't move f.
	Offsets    []uint32
	OffsetsOpt []uint32

	// Variable holds the tainted bytes as they stood in the seed that first
	// discovered this condition. MagicBytes holds extra candidate values
	// recorded for Fn-classified conditions (memcmp/strcmp targets).
	Variable   []byte
	MagicBytes [][]byte

	Priority Priority

	Speed          uint32
	FuzzTimes      uint32
	StateTimes     map[State]uint32
	NumMinOptima   uint32
	State          State
	IsConsistent   bool
	IsDesirable    bool
	Linear         bool
}

// NewStmt builds a fresh Stmt for a condition observed for the first time,
// seeding its priority from the Op classification (spec §4.3 add()).
func NewStmt(base Base, offsets []uint32, variable []byte) *Stmt {
	return &Stmt{
		Base:       base,
		Offsets:    offsets,
		Variable:   append([]byte(nil), variable...),
		Priority:   InitPriority(base.Op),
		StateTimes: make(map[State]uint32),
		State:      StateOneByte,
	}
}

// Merge folds a repeated observation of the same CondId into an existing
// Stmt: offsets from the new observation are unioned in (a taint pass can
// widen the offset set between runs) and Speed accumulates, matching
// spec.md's "merge offsets+speed" idempotent-add rule.
func (s *Stmt) Merge(base Base, offsets []uint32) {
	s.Condition = base.Condition
	s.Lb1, s.Lb2 = base.Lb1, base.Lb2
	s.Arg1, s.Arg2 = base.Arg1, base.Arg2
	s.Offsets = unionUint32(s.Offsets, offsets)
	s.Speed++
}

func unionUint32(a, b []uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(a)+len(b))
	out := make([]uint32, 0, len(a)+len(b))
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// GetFuzzType dispatches a Stmt to the secondary strategy (C8) appropriate
// for its current State and Op classification.
func (s *Stmt) GetFuzzType() FuzzType {
	switch {
	case s.Op.Has(MaskLen):
		return FuzzLen
	case s.Op.Has(MaskFn):
		return FuzzFn
	case s.Op.IsExploitable():
		return FuzzExploit
	case s.Op.Has(MaskAFL):
		return FuzzAFL
	}

	switch s.State {
	case StateOneByte:
		return FuzzOneByte
	case StateDeterministic:
		return FuzzDeterministic
	case StateGradient:
		return FuzzGradient
	case StateRandom:
		return FuzzRandom
	default:
		return FuzzRandom
	}
}

// AdvanceState moves a Stmt to the next state in the solver state machine
// once the time budget for its current state is exhausted, per spec §4.9
// "advance cond.state if time budget expired".
func (s *Stmt) AdvanceState(budget map[State]uint32) {
	if s.State.Terminal() {
		return
	}
	limit, ok := budget[s.State]
	if !ok {
		return
	}
	if s.StateTimes[s.State] >= limit {
		s.State = s.State.Next()
	}
}

// RecordAttempt records one fuzzing attempt of the current state, and marks
// the condition Done if the child-reported Condition has become Done.
func (s *Stmt) RecordAttempt() {
	s.FuzzTimes++
	if s.StateTimes == nil {
		s.StateTimes = make(map[State]uint32)
	}
	s.StateTimes[s.State]++
	if s.Condition == ConditionDone {
		s.State = StateDone
		s.Priority = Done
	}
}
