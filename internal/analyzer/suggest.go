package analyzer

import (
	"fmt"
	"time"

	"featureforge/internal/table"
)

// highCardinalityCutoff separates label-encodable columns from one-hot
// candidates.
const highCardinalityCutoff = 10

// Hint is a rule-based transformation recommendation derived from the
// table profile alone, usable without a model.
type Hint struct {
	Column    string `json:"column"`
	Operation string `json:"operation"`
	Reason    string `json:"reason"`
}

// SuggestTransformations derives encoding and scaling hints from column
// kinds, cardinality, and skew. String columns get one-hot or label
// encoding by cardinality, skewed numerics get a log transform, and
// date-looking columns get component extraction.
func (a *Analyzer) SuggestTransformations(t *table.Table) []Hint {
	var hints []Hint

	skewed := make(map[string]float64)
	for _, s := range a.SkewedFeatures(t) {
		skewed[s.Name] = s.Skew
	}

	for _, name := range t.Columns() {
		kind := t.ColumnKind(name)
		unique := t.UniqueCount(name)
		switch {
		case kind == table.KindString && looksLikeDate(t, name):
			hints = append(hints, Hint{
				Column:    name,
				Operation: "extract_date_components",
				Reason:    "values parse as dates; year, month, and weekday often carry signal",
			})
		case kind == table.KindString && unique > 1 && unique <= highCardinalityCutoff:
			hints = append(hints, Hint{
				Column:    name,
				Operation: "one_hot_encode",
				Reason:    fmt.Sprintf("categorical with %d levels", unique),
			})
		case kind == table.KindString && unique > highCardinalityCutoff:
			hints = append(hints, Hint{
				Column:    name,
				Operation: "label_encode",
				Reason:    fmt.Sprintf("high cardinality (%d levels), one-hot would explode width", unique),
			})
		case t.IsNumeric(name):
			if skew, ok := skewed[name]; ok {
				hints = append(hints, Hint{
					Column:    name,
					Operation: "log_transform",
					Reason:    fmt.Sprintf("skewness %.2f", skew),
				})
			}
		}
	}
	return hints
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

func parsesAsDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func looksLikeDate(t *table.Table, name string) bool {
	vals := t.Strings(name)
	checked, matched := 0, 0
	for _, v := range vals {
		if v == "" {
			continue
		}
		checked++
		if parsesAsDate(v) {
			matched++
		}
		if checked == 20 {
			break
		}
	}
	return checked > 0 && matched == checked
}
