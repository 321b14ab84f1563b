// Package pipeline coordinates the full ask-suggest-implement-execute
// workflow: table profiles go into prompts, model replies are parsed into
// suggestions, suggestion code is normalized and run, and failures get one
// repair attempt.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"featureforge/internal/analyzer"
	"featureforge/internal/executor"
	"featureforge/internal/feature"
	"featureforge/internal/llm"
	"featureforge/internal/parser"
	"featureforge/internal/table"
)

const suggestionSystemPrompt = `You are a feature engineering expert who finds patterns in tabular data and proposes valuable derived features. Provide specific, executable suggestions. Reply in JSON format.`

const implementSystemPrompt = `You are a feature engineering expert who writes high quality Go code. Provide a complete function that transforms the input table, handling missing values and edge cases. Reply with a single Go code block and no explanation.`

// Pipeline drives feature engineering sessions end to end.
type Pipeline struct {
	client   llm.Client
	parser   *parser.Parser
	analyzer *analyzer.Analyzer
	exec     *executor.Executor
	log      *zap.Logger

	execTimeout time.Duration

	mu          sync.Mutex
	suggestions []*feature.Suggestion
	implemented map[string]feature.ExecutionResult
	started     time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a structured logger to the pipeline and every
// component it builds.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithExecutionTimeout bounds each transformation run.
func WithExecutionTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.execTimeout = d
		}
	}
}

// New builds a pipeline around a model client. A nil client disables the
// model-backed operations; rule-based analysis and execution of stored
// implementations still work.
func New(client llm.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:      client,
		log:         zap.NewNop(),
		implemented: make(map[string]feature.ExecutionResult),
		started:     time.Now(),
		execTimeout: executor.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.parser = parser.New(p.log)
	p.analyzer = analyzer.New(p.log)
	p.exec = executor.New(
		executor.WithTimeout(p.execTimeout),
		executor.WithLogger(p.log),
	)
	return p
}

// Suggestions returns the current session's suggestions.
func (p *Pipeline) Suggestions() []*feature.Suggestion {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*feature.Suggestion, len(p.suggestions))
	copy(out, p.suggestions)
	return out
}

// Analyzer exposes the table profiler.
func (p *Pipeline) Analyzer() *analyzer.Analyzer { return p.analyzer }

// Executor exposes the execution engine and its history.
func (p *Pipeline) Executor() *executor.Executor { return p.exec }

// AskForSuggestions asks the model for feature engineering suggestions
// grounded in the table profile and a small data sample. The parsed
// suggestions replace the session's current set.
func (p *Pipeline) AskForSuggestions(ctx context.Context, df *table.Table, task, target, background string) ([]*feature.Suggestion, error) {
	if p.client == nil {
		return nil, fmt.Errorf("no model client configured")
	}

	info := p.analyzer.Describe(df)
	prompt := p.suggestionPrompt(df, info, task, target, background)

	p.log.Info("requesting feature suggestions", zap.String("task", task))
	reply, err := p.client.CompleteWithSystem(ctx, suggestionSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("suggestion request: %w", err)
	}

	suggestions := p.parser.ExtractSuggestions(reply)
	p.mu.Lock()
	p.suggestions = suggestions
	p.mu.Unlock()
	p.log.Info("received suggestions", zap.Int("count", len(suggestions)))
	return suggestions, nil
}

func (p *Pipeline) suggestionPrompt(df *table.Table, info analyzer.TableInfo, task, target, background string) string {
	var b strings.Builder
	b.WriteString("I have a machine learning project and need help with feature engineering.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", task)
	if target != "" {
		fmt.Fprintf(&b, "Target column: %s\n", target)
	}
	if background != "" {
		fmt.Fprintf(&b, "\nDataset background:\n%s\n", background)
	}
	b.WriteString("\n")
	b.WriteString(info.Summary())

	if rows := df.NumRows(); rows > 0 {
		b.WriteString("\nData sample:\n")
		n := rows
		if n > 3 {
			n = 3
		}
		cols := df.Columns()
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString("\n")
		for i := 0; i < n; i++ {
			row := df.Row(i)
			cells := make([]string, len(cols))
			for ci, col := range cols {
				cells[ci] = fmt.Sprintf("%v", row[col])
			}
			b.WriteString(strings.Join(cells, ", "))
			b.WriteString("\n")
		}
	}

	b.WriteString(`
Provide 5-10 valuable feature engineering suggestions covering
transformations, interactions, and domain knowledge features.

Reply with a JSON array in this exact shape:
[
  {
    "suggestion_id": "unique identifier",
    "suggestion_type": "transformation|interaction|domain_knowledge|other",
    "description": "detailed suggestion description",
    "rationale": "why this feature might be valuable",
    "affected_columns": ["input columns"],
    "new_features": ["new feature names"]
  }
]
`)
	return b.String()
}

// findSuggestion looks a suggestion up by id.
func (p *Pipeline) findSuggestion(id string) *feature.Suggestion {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.suggestions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ImplementSuggestion implements one suggestion by id: code is generated
// when the suggestion carries none, normalized into a single callable, and
// executed. A failing run gets exactly one repair attempt, and only when
// the repair actually changed the code. The result is recorded under the
// suggestion id, later runs overwriting earlier ones.
func (p *Pipeline) ImplementSuggestion(ctx context.Context, df *table.Table, id string, keepOriginal bool) (*table.Table, feature.ExecutionResult, error) {
	if id == "" {
		return df, feature.ExecutionResult{}, fmt.Errorf("suggestion id is required")
	}
	sugg := p.findSuggestion(id)
	if sugg == nil {
		return df, feature.ExecutionResult{}, fmt.Errorf("suggestion %q not found", id)
	}
	return p.implement(ctx, df, sugg, keepOriginal)
}

func (p *Pipeline) implement(ctx context.Context, df *table.Table, sugg *feature.Suggestion, keepOriginal bool) (*table.Table, feature.ExecutionResult, error) {
	p.log.Info("implementing suggestion",
		zap.String("suggestion_id", sugg.ID),
		zap.String("description", sugg.Description))

	code := sugg.Implementation
	if !sugg.HasImplementation() {
		generated, err := p.generateImplementation(ctx, df, sugg)
		if err != nil {
			return df, feature.ExecutionResult{}, err
		}
		code = generated
		sugg.Implementation = generated
	}

	code = parser.Clean(code)
	code = parser.EnsureFunction(code, functionNameFor(sugg.ID))

	result, rec := p.exec.Execute(ctx, df, code, *sugg, keepOriginal)

	if !rec.Succeeded() && p.client != nil {
		p.log.Info("execution failed, attempting repair", zap.String("suggestion_id", sugg.ID))
		fixed := p.exec.FixCode(ctx, code, rec.Error, df, p.client)
		if fixed != code {
			result, rec = p.exec.Execute(ctx, df, fixed, *sugg, keepOriginal)
			if rec.Succeeded() {
				sugg.Implementation = fixed
			}
		}
	}

	p.mu.Lock()
	p.implemented[sugg.ID] = rec
	p.mu.Unlock()
	return result, rec, nil
}

// generateImplementation asks the model to write the transformation for a
// suggestion that arrived without code.
func (p *Pipeline) generateImplementation(ctx context.Context, df *table.Table, sugg *feature.Suggestion) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("suggestion %q has no implementation and no model client is configured", sugg.ID)
	}

	info := p.analyzer.Describe(df)
	prompt := fmt.Sprintf(`Write a Go implementation for this feature engineering suggestion:

Description: %s
Rationale: %s
Type: %s
Affected columns: %s
Expected new features: %s

%s
Write a single function named %s with the signature
func %s(df *table.Table) *table.Table. The table package provides
df.Floats(name), df.Strings(name), df.HasColumn(name), df.SetFloats,
df.SetStrings, df.Drop, and df.Clone. Operate on a copy of the input,
handle missing columns and values, and return the table. Use no external
data sources.`,
		sugg.Description, sugg.Rationale, sugg.Type,
		strings.Join(sugg.AffectedColumns, ", "),
		strings.Join(sugg.NewFeatures, ", "),
		info.Summary(),
		functionNameFor(sugg.ID), functionNameFor(sugg.ID))

	p.log.Debug("generating implementation code", zap.String("suggestion_id", sugg.ID))
	reply, err := p.client.CompleteWithSystem(ctx, implementSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("implementation request: %w", err)
	}
	code := p.parser.ExtractCode(reply)
	if code == "" {
		return "", fmt.Errorf("model reply for %q contained no usable code", sugg.ID)
	}
	return code, nil
}

// ImplementAll implements every suggestion in order, feeding each
// successful result into the next attempt. A failed suggestion is skipped
// and the last good table carries forward.
func (p *Pipeline) ImplementAll(ctx context.Context, df *table.Table, keepOriginal bool) (*table.Table, []feature.ExecutionResult) {
	suggestions := p.Suggestions()
	if len(suggestions) == 0 {
		p.log.Warn("no suggestions to implement")
		return df, nil
	}

	current := df
	records := make([]feature.ExecutionResult, 0, len(suggestions))
	successes := 0
	for i, sugg := range suggestions {
		if sugg.ID == "" {
			continue
		}
		p.log.Info("implementing suggestion batch entry",
			zap.Int("index", i+1),
			zap.Int("total", len(suggestions)))
		result, rec, err := p.implement(ctx, current, sugg, keepOriginal)
		if err != nil {
			p.log.Warn("suggestion implementation error",
				zap.String("suggestion_id", sugg.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
		if rec.Succeeded() {
			current = result
			successes++
		}
	}
	p.log.Info("batch implementation finished",
		zap.Int("successful", successes),
		zap.Int("total", len(suggestions)))
	return current, records
}

// CustomFeatureRequest turns a free-text feature description into a
// generated, executed transformation. Successful requests are appended to
// the session's suggestions so they can be saved and benchmarked like any
// other.
func (p *Pipeline) CustomFeatureRequest(ctx context.Context, df *table.Table, description string) (*table.Table, feature.ExecutionResult, error) {
	if p.client == nil {
		return df, feature.ExecutionResult{}, fmt.Errorf("no model client configured")
	}

	sugg := &feature.Suggestion{
		ID:              "custom_" + uuid.NewString()[:8],
		Type:            feature.TypeCustom,
		Description:     description,
		Rationale:       "user requested feature",
		AffectedColumns: []string{},
		NewFeatures:     []string{},
	}

	result, rec, err := p.implement(ctx, df, sugg, true)
	if err != nil {
		return df, rec, err
	}
	if rec.Succeeded() {
		sugg.NewFeatures = rec.NewFeatures
		p.mu.Lock()
		p.suggestions = append(p.suggestions, sugg)
		p.mu.Unlock()
	}
	return result, rec, nil
}

// SaveSuggestions writes the session's suggestions to a JSON file.
func (p *Pipeline) SaveSuggestions(path string) error {
	return feature.SaveSuggestions(p.Suggestions(), path)
}

// LoadSuggestions replaces the session's suggestions with a saved set.
func (p *Pipeline) LoadSuggestions(path string) ([]*feature.Suggestion, error) {
	suggestions, err := feature.LoadSuggestions(path)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.suggestions = suggestions
	p.mu.Unlock()
	return suggestions, nil
}

// Benchmark repeatedly executes a stored suggestion's implementation.
func (p *Pipeline) Benchmark(ctx context.Context, df *table.Table, id string, iterations int) (executor.BenchmarkResult, error) {
	sugg := p.findSuggestion(id)
	if sugg == nil {
		return executor.BenchmarkResult{}, fmt.Errorf("suggestion %q not found", id)
	}
	code := parser.Clean(sugg.Implementation)
	if code == "" || !sugg.HasImplementation() {
		return executor.BenchmarkResult{}, fmt.Errorf("suggestion %q has no implementation to benchmark", id)
	}
	code = parser.EnsureFunction(code, functionNameFor(sugg.ID))
	return p.exec.Benchmark(ctx, df, code, *sugg, iterations), nil
}

// functionNameFor derives a Go identifier from a suggestion id.
func functionNameFor(id string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	return "feature_" + sanitized
}
