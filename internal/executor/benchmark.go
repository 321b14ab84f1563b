package executor

import (
	"context"
	"fmt"

	"featureforge/internal/feature"
	"featureforge/internal/table"
)

// BenchmarkResult summarizes repeated executions of one transformation.
type BenchmarkResult struct {
	SuggestionID     string   `json:"suggestion_id"`
	Status           string   `json:"status"`
	Iterations       int      `json:"iterations"`
	MinSeconds       float64  `json:"min_seconds"`
	MaxSeconds       float64  `json:"max_seconds"`
	AvgSeconds       float64  `json:"avg_seconds"`
	MemoryBefore     int64    `json:"memory_before_bytes"`
	MemoryAfter      int64    `json:"memory_after_bytes"`
	MemoryChange     int64    `json:"memory_change_bytes"`
	MemoryChangePct  float64  `json:"memory_change_percent"`
	NewFeatureCount  int      `json:"new_features_count"`
	NewFeatures      []string `json:"new_features"`
	Error            string   `json:"error,omitempty"`
	FailedAtIter     int      `json:"failed_at_iteration,omitempty"`
}

// Benchmark runs the transformation iterations times against fresh copies
// of df and reports timing and table memory statistics. Originals are kept
// during benchmarking so every iteration sees the same input shape. A
// failing iteration aborts immediately with no partial statistics.
func (e *Executor) Benchmark(ctx context.Context, df *table.Table, code string, sugg feature.Suggestion, iterations int) BenchmarkResult {
	if iterations <= 0 {
		iterations = 3
	}
	res := BenchmarkResult{
		SuggestionID: sugg.ID,
		Status:       string(feature.StatusError),
		Iterations:   iterations,
		NewFeatures:  []string{},
	}

	memBefore := df.MemoryUsage()
	var total float64
	var last *table.Table
	var lastRec feature.ExecutionResult

	for i := 0; i < iterations; i++ {
		out, rec := e.Execute(ctx, df, code, sugg, true)
		if !rec.Succeeded() {
			res.Error = fmt.Sprintf("iteration %d failed: %s", i+1, rec.Error)
			res.FailedAtIter = i + 1
			return res
		}
		secs := rec.ExecutionSeconds
		if i == 0 || secs < res.MinSeconds {
			res.MinSeconds = secs
		}
		if secs > res.MaxSeconds {
			res.MaxSeconds = secs
		}
		total += secs
		last, lastRec = out, rec
	}

	memAfter := last.MemoryUsage()
	res.Status = string(feature.StatusSuccess)
	res.AvgSeconds = total / float64(iterations)
	res.MemoryBefore = memBefore
	res.MemoryAfter = memAfter
	res.MemoryChange = memAfter - memBefore
	if memBefore > 0 {
		res.MemoryChangePct = float64(memAfter-memBefore) / float64(memBefore) * 100
	}
	res.NewFeatures = lastRec.NewFeatures
	res.NewFeatureCount = len(lastRec.NewFeatures)
	return res
}
