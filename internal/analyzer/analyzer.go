// Package analyzer profiles tables so prompts and reports can describe the
// data a transformation will run against: column kinds, missing values,
// cardinality, distributions, correlations, and skew.
package analyzer

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"featureforge/internal/table"
)

// maxCategoricalUniques caps how many distinct values a column may have
// before its distribution is omitted from profiles.
const maxCategoricalUniques = 15

// NumericStats summarizes a numeric column's non-missing values.
type NumericStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// ColumnInfo profiles a single column.
type ColumnInfo struct {
	Name         string         `json:"name"`
	Kind         table.Kind     `json:"kind"`
	Missing      int            `json:"missing"`
	Unique       int            `json:"unique"`
	Stats        *NumericStats  `json:"stats,omitempty"`
	Distribution map[string]int `json:"distribution,omitempty"`
}

// TableInfo profiles a whole table.
type TableInfo struct {
	Rows    int          `json:"rows"`
	Cols    int          `json:"cols"`
	Columns []ColumnInfo `json:"columns"`
}

// Analyzer computes table profiles and relationships.
type Analyzer struct {
	log *zap.Logger
}

// New returns an Analyzer. A nil logger disables logging.
func New(log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{log: log}
}

// Describe profiles every column of the table. Numeric columns get
// min/max/mean/median; low-cardinality columns get a value distribution.
func (a *Analyzer) Describe(t *table.Table) TableInfo {
	rows, cols := t.Shape()
	info := TableInfo{Rows: rows, Cols: cols}
	for _, name := range t.Columns() {
		ci := ColumnInfo{
			Name:    name,
			Kind:    t.ColumnKind(name),
			Missing: t.MissingCount(name),
			Unique:  t.UniqueCount(name),
		}
		if t.IsNumeric(name) {
			if stats, ok := numericStats(t.Floats(name)); ok {
				ci.Stats = &stats
			}
		}
		if ci.Unique > 0 && ci.Unique < maxCategoricalUniques {
			ci.Distribution = t.ValueCounts(name)
		}
		info.Columns = append(info.Columns, ci)
	}
	return info
}

// Summary renders the profile as prompt-ready text.
func (info TableInfo) Summary() string {
	out := fmt.Sprintf("Dataset: %d rows, %d columns\n", info.Rows, info.Cols)
	for _, c := range info.Columns {
		out += fmt.Sprintf("- %s (%s): %d unique, %d missing", c.Name, c.Kind, c.Unique, c.Missing)
		if c.Stats != nil {
			out += fmt.Sprintf(", min=%.4g max=%.4g mean=%.4g median=%.4g",
				c.Stats.Min, c.Stats.Max, c.Stats.Mean, c.Stats.Median)
		}
		out += "\n"
	}
	return out
}

func numericStats(vals []float64) (NumericStats, bool) {
	clean := vals[:0:0]
	for _, v := range vals {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return NumericStats{}, false
	}
	sorted := make([]float64, len(clean))
	copy(sorted, clean)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return NumericStats{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median,
	}, true
}
