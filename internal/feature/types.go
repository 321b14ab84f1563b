// Package feature defines the records exchanged between the suggestion
// parser, the execution engine, and the pipeline: feature-engineering
// suggestions and the structured outcomes of executing them.
package feature

// PlaceholderImplementation marks a suggestion whose implementation the
// LLM did not supply. It is treated exactly like an empty implementation.
const PlaceholderImplementation = "needs manual implementation"

// SuggestionType classifies a feature-engineering suggestion.
type SuggestionType string

const (
	TypeTransformation  SuggestionType = "transformation"
	TypeInteraction     SuggestionType = "interaction"
	TypeDomainKnowledge SuggestionType = "domain_knowledge"
	TypeCustom          SuggestionType = "custom"
	TypeOther           SuggestionType = "other"
)

// Suggestion describes one candidate feature-engineering operation. It is
// created by the parser from an LLM reply (or by a caller for custom
// requests) and mutated in place when implementation code is generated or
// repaired.
type Suggestion struct {
	ID              string         `json:"suggestion_id"`
	Type            SuggestionType `json:"suggestion_type"`
	Description     string         `json:"description"`
	Rationale       string         `json:"rationale"`
	Implementation  string         `json:"implementation"`
	AffectedColumns []string       `json:"affected_columns"`
	NewFeatures     []string       `json:"new_features"`
}

// HasImplementation reports whether the suggestion carries usable code.
func (s *Suggestion) HasImplementation() bool {
	return s.Implementation != "" && s.Implementation != PlaceholderImplementation
}

// Status values for an execution attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ExecutionResult is the immutable outcome of running one suggestion's
// code against one dataset snapshot. NewFeatures and RemovedFeatures are
// always recomputed as set differences between the pre- and
// post-execution column sets, never taken from the suggestion.
type ExecutionResult struct {
	SuggestionID     string   `json:"suggestion_id"`
	Status           Status   `json:"status"`
	Description      string   `json:"description,omitempty"`
	Code             string   `json:"code"`
	FunctionName     string   `json:"function_name,omitempty"`
	ExecutionSeconds float64  `json:"execution_time_seconds"`
	NewFeatures      []string `json:"new_features"`
	RemovedFeatures  []string `json:"removed_features"`
	KeepOriginal     bool     `json:"keep_original"`
	Error            string   `json:"error,omitempty"`
}

// Succeeded reports whether the attempt completed without a fault.
func (r *ExecutionResult) Succeeded() bool { return r.Status == StatusSuccess }
