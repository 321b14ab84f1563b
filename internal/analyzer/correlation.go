package analyzer

import (
	"math"
	"sort"

	"featureforge/internal/table"
)

// highCorrelationCutoff marks feature pairs that carry near-duplicate
// signal.
const highCorrelationCutoff = 0.7

// skewCutoff marks distributions asymmetric enough to log-transform.
const skewCutoff = 0.5

// CorrelationPair is one off-diagonal cell of the correlation matrix.
type CorrelationPair struct {
	A string  `json:"feature_a"`
	B string  `json:"feature_b"`
	R float64 `json:"correlation"`
}

// CorrelationReport holds the Pearson correlations among the numeric
// columns of a table.
type CorrelationReport struct {
	Matrix map[string]map[string]float64 `json:"matrix"`
	Target map[string]float64            `json:"target_correlations,omitempty"`
	High   []CorrelationPair             `json:"highly_correlated"`
}

// Correlations computes pairwise Pearson correlations over the numeric
// columns, rows with missing values excluded pairwise. When target names
// a numeric column, per-feature correlations with it are reported
// separately, sorted strongest first inside High.
func (a *Analyzer) Correlations(t *table.Table, target string) CorrelationReport {
	var numeric []string
	for _, name := range t.Columns() {
		if t.IsNumeric(name) {
			numeric = append(numeric, name)
		}
	}

	rep := CorrelationReport{Matrix: make(map[string]map[string]float64, len(numeric))}
	cols := make(map[string][]float64, len(numeric))
	for _, name := range numeric {
		cols[name] = t.Floats(name)
		rep.Matrix[name] = make(map[string]float64, len(numeric))
	}

	for i, ai := range numeric {
		rep.Matrix[ai][ai] = 1
		for _, bi := range numeric[i+1:] {
			r := pearson(cols[ai], cols[bi])
			rep.Matrix[ai][bi] = r
			rep.Matrix[bi][ai] = r
			if !math.IsNaN(r) && math.Abs(r) > highCorrelationCutoff {
				rep.High = append(rep.High, CorrelationPair{A: ai, B: bi, R: r})
			}
		}
	}
	sort.Slice(rep.High, func(i, j int) bool {
		return math.Abs(rep.High[i].R) > math.Abs(rep.High[j].R)
	})

	if target != "" && t.HasColumn(target) && t.IsNumeric(target) {
		rep.Target = make(map[string]float64, len(numeric))
		for _, name := range numeric {
			if name != target {
				rep.Target[name] = rep.Matrix[name][target]
			}
		}
	}
	return rep
}

// SkewedColumn names a column whose distribution is notably asymmetric.
type SkewedColumn struct {
	Name string  `json:"name"`
	Skew float64 `json:"skewness"`
}

// SkewedFeatures returns the numeric columns whose sample skewness exceeds
// the cutoff in magnitude, strongest first.
func (a *Analyzer) SkewedFeatures(t *table.Table) []SkewedColumn {
	var out []SkewedColumn
	for _, name := range t.Columns() {
		if !t.IsNumeric(name) {
			continue
		}
		s := skewness(t.Floats(name))
		if !math.IsNaN(s) && math.Abs(s) > skewCutoff {
			out = append(out, SkewedColumn{Name: name, Skew: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Skew) > math.Abs(out[j].Skew)
	})
	return out
}

// pearson computes the Pearson correlation over pairs where both values
// are present. Fewer than two usable pairs or zero variance yields NaN.
func pearson(xs, ys []float64) float64 {
	var n float64
	var sumX, sumY float64
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		n++
		sumX += xs[i]
		sumY += ys[i]
	}
	if n < 2 {
		return math.NaN()
	}
	meanX, meanY := sumX/n, sumY/n
	var cov, varX, varY float64
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}

// skewness computes the sample skewness over non-missing values.
func skewness(vals []float64) float64 {
	var n, sum float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			n++
			sum += v
		}
	}
	if n < 3 {
		return math.NaN()
	}
	mean := sum / n
	var m2, m3 float64
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return math.NaN()
	}
	return m3 / math.Pow(m2, 1.5)
}
