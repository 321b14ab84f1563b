package executor

import (
	"context"
	"testing"

	"go.uber.org/goleak"

	"featureforge/internal/feature"
)

func TestExecutor_Benchmark(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreStatsWorker)
	e := New()
	df := sampleTable()

	code := `func ratio(df *table.Table) *table.Table {
	df = df.Clone()
	age := df.Floats("age")
	income := df.Floats("income")
	out := make([]float64, len(age))
	for i := range age {
		out[i] = income[i] / age[i]
	}
	df.SetFloats("income_per_year", out)
	return df
}`
	sugg := feature.Suggestion{
		ID:              "b1",
		AffectedColumns: []string{"age", "income"},
		NewFeatures:     []string{"income_per_year"},
	}

	res := e.Benchmark(context.Background(), df, code, sugg, 3)
	if res.Status != string(feature.StatusSuccess) {
		t.Fatalf("Benchmark() status = %s, error = %s", res.Status, res.Error)
	}
	if res.Iterations != 3 {
		t.Fatalf("Iterations = %d, want 3", res.Iterations)
	}
	if res.MinSeconds <= 0 || res.MinSeconds > res.MaxSeconds {
		t.Fatalf("timing stats inconsistent: min=%v max=%v", res.MinSeconds, res.MaxSeconds)
	}
	if res.AvgSeconds < res.MinSeconds || res.AvgSeconds > res.MaxSeconds {
		t.Fatalf("avg %v outside [min %v, max %v]", res.AvgSeconds, res.MinSeconds, res.MaxSeconds)
	}
	if res.NewFeatureCount != 1 || res.NewFeatures[0] != "income_per_year" {
		t.Fatalf("new features = %v", res.NewFeatures)
	}
	if res.MemoryBefore <= 0 || res.MemoryAfter <= res.MemoryBefore {
		t.Fatalf("memory stats = before %d, after %d", res.MemoryBefore, res.MemoryAfter)
	}
	if res.MemoryChange != res.MemoryAfter-res.MemoryBefore {
		t.Fatal("memory change inconsistent")
	}
	// Benchmarking keeps originals regardless of configuration.
	if !df.HasColumn("age") || !df.HasColumn("income") {
		t.Fatal("benchmark mutated the input table")
	}
}

func TestExecutor_Benchmark_AbortsOnFailure(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreStatsWorker)
	e := New()
	df := sampleTable()

	res := e.Benchmark(context.Background(), df, "var broken = 1", feature.Suggestion{ID: "b2"}, 5)
	if res.Status != string(feature.StatusError) {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if res.FailedAtIter != 1 {
		t.Fatalf("FailedAtIter = %d, want 1", res.FailedAtIter)
	}
	if res.MinSeconds != 0 || res.AvgSeconds != 0 {
		t.Fatal("failed benchmark must not report partial statistics")
	}
}
