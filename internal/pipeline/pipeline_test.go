package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"featureforge/internal/feature"
	"featureforge/internal/table"
)

// stubClient replays canned replies and records the prompts it saw.
type stubClient struct {
	replies []string
	calls   int
	prompts []string
	systems []string
}

func (s *stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

func (s *stubClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	s.systems = append(s.systems, system)
	s.prompts = append(s.prompts, user)
	reply := s.replies[len(s.replies)-1]
	if s.calls < len(s.replies) {
		reply = s.replies[s.calls]
	}
	s.calls++
	return reply, nil
}

func sampleTable() *table.Table {
	t := table.New()
	t.SetFloats("age", []float64{25, 40, 61})
	t.SetFloats("income", []float64{30000, 52000, 48000})
	return t
}

func TestPipeline_AskForSuggestions(t *testing.T) {
	client := &stubClient{replies: []string{
		"```json\n" + `[{"suggestion_id": "s1", "suggestion_type": "transformation", "description": "bucket age", "rationale": "r", "affected_columns": ["age"], "new_features": ["age_bucket"]}]` + "\n```",
	}}
	p := New(client)

	got, err := p.AskForSuggestions(context.Background(), sampleTable(), "predict churn", "churned", "")
	if err != nil {
		t.Fatalf("AskForSuggestions() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("suggestions = %+v", got)
	}

	prompt := client.prompts[0]
	for _, want := range []string{"predict churn", "Target column: churned", "age", "income", "Data sample"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if len(p.Suggestions()) != 1 {
		t.Fatal("suggestions not stored in session")
	}
}

func TestPipeline_AskForSuggestions_NoClient(t *testing.T) {
	p := New(nil)
	if _, err := p.AskForSuggestions(context.Background(), sampleTable(), "t", "", ""); err == nil {
		t.Fatal("expected error without a model client")
	}
}

func TestPipeline_ImplementSuggestion_StoredCode(t *testing.T) {
	p := New(nil)
	p.suggestions = []*feature.Suggestion{{
		ID:          "s1",
		Description: "double age",
		Implementation: `func feature_s1(df *table.Table) *table.Table {
	df = df.Clone()
	vals := df.Floats("age")
	for i := range vals {
		vals[i] = vals[i] * 2
	}
	df.SetFloats("age_doubled", vals)
	return df
}`,
		AffectedColumns: []string{"age"},
		NewFeatures:     []string{"age_doubled"},
	}}

	df := sampleTable()
	result, rec, err := p.ImplementSuggestion(context.Background(), df, "s1", true)
	if err != nil {
		t.Fatalf("ImplementSuggestion() error = %v", err)
	}
	if !rec.Succeeded() {
		t.Fatalf("execution failed: %s", rec.Error)
	}
	if !result.HasColumn("age_doubled") {
		t.Fatalf("result columns = %v", result.Columns())
	}
	if df.HasColumn("age_doubled") {
		t.Fatal("input table mutated")
	}

	status := p.Status()
	if status.ImplementedCount != 1 || status.SuccessfulCount != 1 {
		t.Fatalf("status = %+v", status)
	}
}

func TestPipeline_ImplementSuggestion_Errors(t *testing.T) {
	p := New(nil)
	if _, _, err := p.ImplementSuggestion(context.Background(), sampleTable(), "", true); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, _, err := p.ImplementSuggestion(context.Background(), sampleTable(), "ghost", true); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestPipeline_ImplementSuggestion_GeneratesCode(t *testing.T) {
	client := &stubClient{replies: []string{
		"```go\nfunc feature_gen(df *table.Table) *table.Table {\n\tdf = df.Clone()\n\tdf.SetFloats(\"age_copy\", df.Floats(\"age\"))\n\treturn df\n}\n```",
	}}
	p := New(client)
	p.suggestions = []*feature.Suggestion{{
		ID:              "gen",
		Description:     "copy age",
		AffectedColumns: []string{"age"},
		NewFeatures:     []string{"age_copy"},
	}}

	result, rec, err := p.ImplementSuggestion(context.Background(), sampleTable(), "gen", true)
	if err != nil {
		t.Fatalf("ImplementSuggestion() error = %v", err)
	}
	if !rec.Succeeded() {
		t.Fatalf("execution failed: %s", rec.Error)
	}
	if !result.HasColumn("age_copy") {
		t.Fatalf("result columns = %v", result.Columns())
	}
	// The generated code is stored back on the suggestion.
	if !p.Suggestions()[0].HasImplementation() {
		t.Fatal("generated implementation not stored")
	}
}

func TestPipeline_ImplementSuggestion_RepairRetry(t *testing.T) {
	// First reply is the repair: the model answers with corrected code
	// after the stored implementation fails.
	client := &stubClient{replies: []string{
		"```go\nfunc feature_bad(df *table.Table) *table.Table {\n\tdf = df.Clone()\n\tdf.SetFloats(\"fixed\", df.Floats(\"age\"))\n\treturn df\n}\n```",
	}}
	p := New(client)
	p.suggestions = []*feature.Suggestion{{
		ID:          "bad",
		Description: "broken at first",
		Implementation: `func feature_bad(df *table.Table) *table.Table {
	df = df.Clone()
	df.SetFloats("fixed", df.Floats("no_such_column"))
	return df
}`,
	}}

	result, rec, err := p.ImplementSuggestion(context.Background(), sampleTable(), "bad", true)
	if err != nil {
		t.Fatalf("ImplementSuggestion() error = %v", err)
	}
	if !rec.Succeeded() {
		t.Fatalf("repair retry failed: %s", rec.Error)
	}
	if !result.HasColumn("fixed") {
		t.Fatalf("result columns = %v", result.Columns())
	}
	// The repaired code replaces the stored implementation.
	if !strings.Contains(p.Suggestions()[0].Implementation, `df.Floats("age")`) {
		t.Fatal("repaired implementation not stored")
	}
}

func TestPipeline_ImplementAll_ForwardFeeds(t *testing.T) {
	p := New(nil)
	p.suggestions = []*feature.Suggestion{
		{
			ID: "first",
			Implementation: `func feature_first(df *table.Table) *table.Table {
	df = df.Clone()
	df.SetFloats("a", df.Floats("age"))
	return df
}`,
		},
		{
			ID: "broken",
			Implementation: `func feature_broken(df *table.Table) *table.Table {
	df = df.Clone()
	df.SetFloats("b", df.Floats("missing_col"))
	return df
}`,
		},
		{
			// Depends on the column the first suggestion created.
			ID: "second",
			Implementation: `func feature_second(df *table.Table) *table.Table {
	df = df.Clone()
	df.SetFloats("c", df.Floats("a"))
	return df
}`,
		},
	}

	result, records := p.ImplementAll(context.Background(), sampleTable(), true)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if !records[0].Succeeded() || records[1].Succeeded() || !records[2].Succeeded() {
		t.Fatalf("statuses = %v %v %v", records[0].Status, records[1].Status, records[2].Status)
	}
	for _, col := range []string{"a", "c"} {
		if !result.HasColumn(col) {
			t.Fatalf("result missing %q: %v", col, result.Columns())
		}
	}
	if result.HasColumn("b") {
		t.Fatal("failed suggestion leaked a column")
	}
}

func TestPipeline_CustomFeatureRequest(t *testing.T) {
	client := &stubClient{replies: []string{
		"```go\nfunc create_custom(df *table.Table) *table.Table {\n\tdf = df.Clone()\n\tdf.SetFloats(\"custom_col\", df.Floats(\"income\"))\n\treturn df\n}\n```",
	}}
	p := New(client)

	result, rec, err := p.CustomFeatureRequest(context.Background(), sampleTable(), "copy income")
	if err != nil {
		t.Fatalf("CustomFeatureRequest() error = %v", err)
	}
	if !rec.Succeeded() {
		t.Fatalf("execution failed: %s", rec.Error)
	}
	if !result.HasColumn("custom_col") {
		t.Fatalf("result columns = %v", result.Columns())
	}

	suggestions := p.Suggestions()
	if len(suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(suggestions))
	}
	if !strings.HasPrefix(suggestions[0].ID, "custom_") {
		t.Fatalf("custom id = %q", suggestions[0].ID)
	}
	if suggestions[0].Type != feature.TypeCustom {
		t.Fatalf("custom type = %q", suggestions[0].Type)
	}
}

func TestPipeline_SaveLoadSuggestions(t *testing.T) {
	p := New(nil)
	p.suggestions = []*feature.Suggestion{{ID: "s1", Description: "d"}}

	path := filepath.Join(t.TempDir(), "suggestions.json")
	if err := p.SaveSuggestions(path); err != nil {
		t.Fatalf("SaveSuggestions() error = %v", err)
	}

	q := New(nil)
	loaded, err := q.LoadSuggestions(path)
	if err != nil {
		t.Fatalf("LoadSuggestions() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "s1" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if len(q.Suggestions()) != 1 {
		t.Fatal("loaded suggestions not stored in session")
	}
}

func TestPipeline_GenerateReport(t *testing.T) {
	p := New(nil)
	p.suggestions = []*feature.Suggestion{{
		ID: "ok",
		Implementation: `func feature_ok(df *table.Table) *table.Table {
	df = df.Clone()
	df.SetFloats("added", df.Floats("age"))
	return df
}`,
	}}

	df := sampleTable()
	result, _, err := p.ImplementSuggestion(context.Background(), df, "ok", true)
	if err != nil {
		t.Fatalf("ImplementSuggestion() error = %v", err)
	}

	rep := p.GenerateReport(df, result)
	if rep.Summary.SuccessfulImplementations != 1 || rep.Summary.FailedImplementations != 0 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if rep.Summary.AddedColumns != 1 || rep.AddedFeatures[0] != "added" {
		t.Fatalf("added = %v", rep.AddedFeatures)
	}
	if rep.Summary.OriginalColumns != 2 || rep.Summary.FinalColumns != 3 {
		t.Fatalf("column counts = %+v", rep.Summary)
	}
	if len(rep.ExecutionHistory) != 1 {
		t.Fatalf("history = %d records", len(rep.ExecutionHistory))
	}
}

func TestPipeline_Benchmark_RequiresImplementation(t *testing.T) {
	p := New(nil)
	p.suggestions = []*feature.Suggestion{{ID: "empty"}}

	if _, err := p.Benchmark(context.Background(), sampleTable(), "empty", 2); err == nil {
		t.Fatal("expected error for suggestion without implementation")
	}
	if _, err := p.Benchmark(context.Background(), sampleTable(), "ghost", 2); err == nil {
		t.Fatal("expected error for unknown suggestion")
	}
}

func TestFunctionNameFor(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"age-bucket.v2", "feature_age_bucket_v2"},
		{"simple", "feature_simple"},
		{"with space", "feature_with_space"},
	}
	for _, tt := range tests {
		if got := functionNameFor(tt.id); got != tt.want {
			t.Errorf("functionNameFor(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
