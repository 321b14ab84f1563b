package pipeline

import (
	"sort"
	"time"

	"featureforge/internal/feature"
	"featureforge/internal/table"
)

// FeatureOutcome is one suggestion's entry in a report.
type FeatureOutcome struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	NewFeatures []string `json:"new_features,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// ReportSummary aggregates session counters.
type ReportSummary struct {
	TotalSuggestions          int `json:"total_suggestions"`
	SuccessfulImplementations int `json:"successful_implementations"`
	FailedImplementations     int `json:"failed_implementations"`
	OriginalColumns           int `json:"original_columns"`
	FinalColumns              int `json:"final_columns"`
	AddedColumns              int `json:"added_columns"`
	RemovedColumns            int `json:"removed_columns"`
}

// Report describes what a session did to a table.
type Report struct {
	Date             string                    `json:"date"`
	Summary          ReportSummary             `json:"summary"`
	AddedFeatures    []string                  `json:"added_features"`
	RemovedFeatures  []string                  `json:"removed_features"`
	Successful       []FeatureOutcome          `json:"successful_features"`
	Failed           []FeatureOutcome          `json:"failed_features"`
	ExecutionHistory []feature.ExecutionResult `json:"execution_history"`
}

// GenerateReport compares the original and final tables and summarizes
// every implementation attempt of the session.
func (p *Pipeline) GenerateReport(original, result *table.Table) Report {
	added, removed := table.Diff(original, result)
	if added == nil {
		added = []string{}
	}
	if removed == nil {
		removed = []string{}
	}

	p.mu.Lock()
	outcomes := make([]feature.ExecutionResult, 0, len(p.implemented))
	for _, rec := range p.implemented {
		outcomes = append(outcomes, rec)
	}
	p.mu.Unlock()
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].SuggestionID < outcomes[j].SuggestionID
	})

	rep := Report{
		Date:             time.Now().Format("2006-01-02 15:04:05"),
		AddedFeatures:    added,
		RemovedFeatures:  removed,
		Successful:       []FeatureOutcome{},
		Failed:           []FeatureOutcome{},
		ExecutionHistory: p.exec.History(),
	}
	for _, rec := range outcomes {
		if rec.Succeeded() {
			rep.Successful = append(rep.Successful, FeatureOutcome{
				ID:          rec.SuggestionID,
				Description: rec.Description,
				NewFeatures: rec.NewFeatures,
			})
		} else {
			rep.Failed = append(rep.Failed, FeatureOutcome{
				ID:          rec.SuggestionID,
				Description: rec.Description,
				Error:       rec.Error,
			})
		}
	}

	rep.Summary = ReportSummary{
		TotalSuggestions:          len(outcomes),
		SuccessfulImplementations: len(rep.Successful),
		FailedImplementations:     len(rep.Failed),
		OriginalColumns:           original.NumCols(),
		FinalColumns:              result.NumCols(),
		AddedColumns:              len(added),
		RemovedColumns:            len(removed),
	}
	return rep
}

// StatusSummary reports the session's progress counters.
type StatusSummary struct {
	TotalSuggestions int     `json:"total_suggestions"`
	ImplementedCount int     `json:"implemented_count"`
	SuccessfulCount  int     `json:"successful_count"`
	FailedCount      int     `json:"failed_count"`
	ElapsedSeconds   float64 `json:"execution_time_seconds"`
}

// Status summarizes the session so far.
func (p *Pipeline) Status() StatusSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := StatusSummary{
		TotalSuggestions: len(p.suggestions),
		ImplementedCount: len(p.implemented),
		ElapsedSeconds:   time.Since(p.started).Seconds(),
	}
	for _, rec := range p.implemented {
		if rec.Succeeded() {
			s.SuccessfulCount++
		} else {
			s.FailedCount++
		}
	}
	return s
}
