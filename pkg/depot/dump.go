package depot

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/jihwankim/gradfuzz/pkg/cond"
)

var csvHeader = []string{
	"cmpid", "context", "order", "belong", "op",
	"priority", "condition", "is_desirable", "offsets", "state",
}

// Row is the on-disk shape of a single condition, matching the column
// order the original cond_queue.csv dump used (spec §6).
type Row struct {
	Cmpid       uint32
	Context     uint32
	Order       uint32
	Belong      uint32
	Op          cond.Op
	Priority    cond.Priority
	Condition   cond.Condition
	IsDesirable bool
	Offsets     []uint32
	State       cond.State
}

func rowFromStmt(s *cond.Stmt) Row {
	return Row{
		Cmpid:       s.Cmpid,
		Context:     s.Context,
		Order:       s.Order,
		Belong:      s.Belong,
		Op:          s.Op,
		Priority:    s.Priority,
		Condition:   s.Condition,
		IsDesirable: s.IsDesirable,
		Offsets:     s.Offsets,
		State:       s.State,
	}
}

func encodeOffsets(offsets []uint32) string {
	parts := make([]string, len(offsets))
	for i, o := range offsets {
		parts[i] = strconv.FormatUint(uint64(o), 10)
	}
	return strings.Join(parts, ";")
}

func decodeOffsets(s string) ([]uint32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("depot: bad offset %q: %w", p, err)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

func (r Row) marshal() []string {
	return []string{
		strconv.FormatUint(uint64(r.Cmpid), 10),
		strconv.FormatUint(uint64(r.Context), 10),
		strconv.FormatUint(uint64(r.Order), 10),
		strconv.FormatUint(uint64(r.Belong), 10),
		strconv.FormatUint(uint64(r.Op), 10),
		strconv.FormatUint(uint64(r.Priority), 10),
		strconv.Itoa(int(r.Condition)),
		strconv.FormatBool(r.IsDesirable),
		encodeOffsets(r.Offsets),
		strconv.Itoa(int(r.State)),
	}
}

func unmarshalRow(fields []string) (Row, error) {
	if len(fields) != len(csvHeader) {
		return Row{}, fmt.Errorf("depot: row has %d fields, want %d", len(fields), len(csvHeader))
	}
	var r Row
	parseU32 := func(s string) (uint32, error) {
		v, err := strconv.ParseUint(s, 10, 32)
		return uint32(v), err
	}
	var err error
	if r.Cmpid, err = parseU32(fields[0]); err != nil {
		return Row{}, err
	}
	if r.Context, err = parseU32(fields[1]); err != nil {
		return Row{}, err
	}
	if r.Order, err = parseU32(fields[2]); err != nil {
		return Row{}, err
	}
	if r.Belong, err = parseU32(fields[3]); err != nil {
		return Row{}, err
	}
	op, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return Row{}, err
	}
	r.Op = cond.Op(op)
	pr, err := strconv.ParseUint(fields[5], 10, 16)
	if err != nil {
		return Row{}, err
	}
	r.Priority = cond.Priority(pr)
	condVal, err := strconv.Atoi(fields[6])
	if err != nil {
		return Row{}, err
	}
	r.Condition = cond.Condition(condVal)
	r.IsDesirable, err = strconv.ParseBool(fields[7])
	if err != nil {
		return Row{}, err
	}
	if r.Offsets, err = decodeOffsets(fields[8]); err != nil {
		return Row{}, err
	}
	stateVal, err := strconv.Atoi(fields[9])
	if err != nil {
		return Row{}, err
	}
	r.State = cond.State(stateVal)
	return r, nil
}

// Dump writes every condition the depot has recorded to path as
// cond_queue.csv, file-locked so concurrent workers (or a concurrent
// `gradfuzz dump`) never interleave writes (spec §6, §4.3/§4.4 concurrency).
func Dump(d *Depot, path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("depot: lock %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("depot: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range d.All() {
		if err := w.Write(rowFromStmt(s).marshal()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Load reads a cond_queue.csv dump back into a fresh Depot (`gradfuzz dump`
// uses this to inspect a prior session, and `gradfuzz run` to resume one
// without rebuilding it from scratch).
func Load(path string, maxPriority cond.Priority) (*Depot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("depot: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("depot: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return New(maxPriority), nil
	}
	d := New(maxPriority)
	for _, rec := range records[1:] { // skip header
		row, err := unmarshalRow(rec)
		if err != nil {
			return nil, err
		}
		base := cond.Base{Cmpid: row.Cmpid, Context: row.Context, Order: row.Order, Belong: row.Belong, Condition: row.Condition, Op: row.Op}
		s := d.Add(base, row.Offsets, nil)
		s.Priority = row.Priority
		s.IsDesirable = row.IsDesirable
		s.State = row.State
	}
	return d, nil
}
