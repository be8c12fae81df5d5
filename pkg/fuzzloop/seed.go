package fuzzloop

import "github.com/jihwankim/gradfuzz/pkg/cond"

// VariableSeedSource hands each worker the seed bytes recorded on the
// CondStmt itself (spec §4.3: "a variable snapshot... from the seed that
// first discovered this condition"). It is the default SeedSource — most
// sessions have no other notion of "the seed for this condition".
type VariableSeedSource struct{}

func (VariableSeedSource) SeedFor(s *cond.Stmt) []byte {
	return append([]byte(nil), s.Variable...)
}
