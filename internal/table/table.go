// Package table implements the tabular dataset that feature-engineering
// transformations operate on. A Table is an ordered set of named columns
// holding mixed-kind cells (float64, int64, string, bool, or nil for a
// missing value).
//
// Tables are the value passed into interpreted transformation code, so the
// accessor surface is deliberately small and forgiving: HasColumn for
// guards, Floats/Strings for coerced reads, SetColumn/Drop for shaping.
// Accessors that name a missing column panic with a recognizable message;
// the execution engine recovers the panic at its boundary and turns it
// into a structured fault.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind names the inferred storage kind of a column.
type Kind string

const (
	KindFloat  Kind = "float64"
	KindInt    Kind = "int64"
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindMixed  Kind = "mixed"
)

// Table is an ordered collection of named columns with equal row counts.
type Table struct {
	names []string
	cols  map[string][]any
	nrows int
}

// New returns an empty table.
func New() *Table {
	return &Table{cols: make(map[string][]any)}
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.nrows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.names) }

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) { return t.nrows, len(t.names) }

// Columns returns the column names in order. The slice is a copy.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

func (t *Table) mustColumn(name string) []any {
	vals, ok := t.cols[name]
	if !ok {
		panic(fmt.Sprintf("column %q not found", name))
	}
	return vals
}

// Values returns a copy of the raw cells of a column.
// It panics if the column does not exist.
func (t *Table) Values(name string) []any {
	vals := t.mustColumn(name)
	out := make([]any, len(vals))
	copy(out, vals)
	return out
}

// Floats returns the column coerced to float64. Missing or non-numeric
// cells become NaN. It panics if the column does not exist.
func (t *Table) Floats(name string) []float64 {
	vals := t.mustColumn(name)
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = toFloat(v)
	}
	return out
}

// Ints returns the column coerced to int64, truncating floats. Missing or
// non-numeric cells become 0. It panics if the column does not exist.
func (t *Table) Ints(name string) []int64 {
	vals := t.mustColumn(name)
	out := make([]int64, len(vals))
	for i, v := range vals {
		f := toFloat(v)
		if !math.IsNaN(f) {
			out[i] = int64(f)
		}
	}
	return out
}

// Strings returns the column rendered as strings. Missing cells become "".
// It panics if the column does not exist.
func (t *Table) Strings(name string) []string {
	vals := t.mustColumn(name)
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = cellString(v)
	}
	return out
}

// SetColumn adds or replaces a column. The first column added to an empty
// table fixes the row count; later columns must match it.
func (t *Table) SetColumn(name string, vals []any) {
	if len(t.names) > 0 && len(vals) != t.nrows {
		panic(fmt.Sprintf("column %q has %d rows, table has %d", name, len(vals), t.nrows))
	}
	if _, exists := t.cols[name]; !exists {
		t.names = append(t.names, name)
	}
	stored := make([]any, len(vals))
	copy(stored, vals)
	t.cols[name] = stored
	t.nrows = len(stored)
}

// SetFloats is SetColumn for a float64 slice.
func (t *Table) SetFloats(name string, vals []float64) {
	cells := make([]any, len(vals))
	for i, v := range vals {
		cells[i] = v
	}
	t.SetColumn(name, cells)
}

// SetStrings is SetColumn for a string slice.
func (t *Table) SetStrings(name string, vals []string) {
	cells := make([]any, len(vals))
	for i, v := range vals {
		cells[i] = v
	}
	t.SetColumn(name, cells)
}

// Drop removes a column if present.
func (t *Table) Drop(name string) {
	if _, ok := t.cols[name]; !ok {
		return
	}
	delete(t.cols, name)
	for i, n := range t.names {
		if n == name {
			t.names = append(t.names[:i], t.names[i+1:]...)
			break
		}
	}
	if len(t.names) == 0 {
		t.nrows = 0
	}
}

// Clone returns a deep copy. Transformations clone before mutating so the
// caller's table is never touched.
func (t *Table) Clone() *Table {
	out := &Table{
		names: make([]string, len(t.names)),
		cols:  make(map[string][]any, len(t.cols)),
		nrows: t.nrows,
	}
	copy(out.names, t.names)
	for name, vals := range t.cols {
		c := make([]any, len(vals))
		copy(c, vals)
		out.cols[name] = c
	}
	return out
}

// ColumnKind infers the storage kind of a column from its non-missing
// cells. It panics if the column does not exist.
func (t *Table) ColumnKind(name string) Kind {
	vals := t.mustColumn(name)
	var kind Kind
	for _, v := range vals {
		if v == nil {
			continue
		}
		var k Kind
		switch v.(type) {
		case float64, float32:
			k = KindFloat
		case int, int32, int64:
			k = KindInt
		case bool:
			k = KindBool
		default:
			k = KindString
		}
		switch {
		case kind == "":
			kind = k
		case kind == k:
		case (kind == KindInt && k == KindFloat) || (kind == KindFloat && k == KindInt):
			kind = KindFloat
		default:
			return KindMixed
		}
	}
	if kind == "" {
		return KindString
	}
	return kind
}

// IsNumeric reports whether the column stores ints or floats.
func (t *Table) IsNumeric(name string) bool {
	k := t.ColumnKind(name)
	return k == KindFloat || k == KindInt
}

// MissingCount returns the number of nil cells in a column.
func (t *Table) MissingCount(name string) int {
	n := 0
	for _, v := range t.mustColumn(name) {
		if v == nil {
			n++
		}
	}
	return n
}

// UniqueCount returns the number of distinct non-missing cell renderings.
func (t *Table) UniqueCount(name string) int {
	seen := make(map[string]struct{})
	for _, v := range t.mustColumn(name) {
		if v == nil {
			continue
		}
		seen[cellString(v)] = struct{}{}
	}
	return len(seen)
}

// ValueCounts returns occurrence counts of non-missing cell renderings.
func (t *Table) ValueCounts(name string) map[string]int {
	counts := make(map[string]int)
	for _, v := range t.mustColumn(name) {
		if v == nil {
			continue
		}
		counts[cellString(v)]++
	}
	return counts
}

// Row returns row i as a column-name keyed map.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.names))
	for _, name := range t.names {
		row[name] = t.cols[name][i]
	}
	return row
}

// MemoryUsage estimates the in-memory footprint of the table in bytes.
func (t *Table) MemoryUsage() int64 {
	var total int64
	for _, name := range t.names {
		total += int64(len(name))
		for _, v := range t.cols[name] {
			switch c := v.(type) {
			case nil:
				total += 8
			case string:
				total += int64(len(c)) + 16
			case bool:
				total += 8
			default:
				total += 16
			}
		}
	}
	return total
}

func toFloat(v any) float64 {
	switch c := v.(type) {
	case float64:
		return c
	case float32:
		return float64(c)
	case int:
		return float64(c)
	case int32:
		return float64(c)
	case int64:
		return float64(c)
	case bool:
		if c {
			return 1
		}
		return 0
	case string:
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(c, 10)
	case int:
		return strconv.Itoa(c)
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprintf("%v", c)
	}
}

// ReadCSV builds a table from CSV input. The first record is the header.
// Cells are inferred as int64, float64, bool, or string; empty cells are
// missing values.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: empty input")
	}
	header := records[0]
	t := New()
	for ci, name := range header {
		cells := make([]any, 0, len(records)-1)
		for _, rec := range records[1:] {
			if ci >= len(rec) {
				cells = append(cells, nil)
				continue
			}
			cells = append(cells, inferCell(rec[ci]))
		}
		t.SetColumn(name, cells)
	}
	return t, nil
}

// WriteCSV writes the table as CSV with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.names); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for i := 0; i < t.nrows; i++ {
		rec := make([]string, len(t.names))
		for ci, name := range t.names {
			rec[ci] = cellString(t.cols[name][i])
		}
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func inferCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// ColumnSet returns the column names as a set.
func (t *Table) ColumnSet() map[string]struct{} {
	set := make(map[string]struct{}, len(t.names))
	for _, n := range t.names {
		set[n] = struct{}{}
	}
	return set
}

// Diff computes the sorted column delta between two snapshots:
// added = after-before, removed = before-after.
func Diff(before, after *Table) (added, removed []string) {
	b := before.ColumnSet()
	a := after.ColumnSet()
	for name := range a {
		if _, ok := b[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range b {
		if _, ok := a[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
