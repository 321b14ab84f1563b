package feature

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSuggestions_SaveLoadRoundTrip(t *testing.T) {
	suggestions := []*Suggestion{
		{
			ID:              "age_bucket",
			Type:            TypeTransformation,
			Description:     "Bucket age into ranges",
			Rationale:       "Non-linear age effects",
			Implementation:  "df.SetFloats(\"age_bucket\", df.Floats(\"age\"))",
			AffectedColumns: []string{"age"},
			NewFeatures:     []string{"age_bucket"},
		},
		{
			ID:          "manual",
			Type:        TypeOther,
			Description: "Needs a human",
			Rationale:   "too vague",
		},
	}

	path := filepath.Join(t.TempDir(), "nested", "suggestions.json")
	if err := SaveSuggestions(suggestions, path); err != nil {
		t.Fatalf("SaveSuggestions() error = %v", err)
	}

	loaded, err := LoadSuggestions(path)
	if err != nil {
		t.Fatalf("LoadSuggestions() error = %v", err)
	}
	if diff := cmp.Diff(suggestions, loaded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeSuggestions_WireFieldNames(t *testing.T) {
	data, err := EncodeSuggestions([]*Suggestion{{ID: "s1", Type: TypeCustom}})
	if err != nil {
		t.Fatalf("EncodeSuggestions() error = %v", err)
	}
	for _, field := range []string{`"suggestion_id"`, `"suggestion_type"`, `"affected_columns"`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("encoded JSON missing %s:\n%s", field, data)
		}
	}
}

func TestSuggestion_HasImplementation(t *testing.T) {
	tests := []struct {
		impl string
		want bool
	}{
		{"", false},
		{PlaceholderImplementation, false},
		{"df.Drop(\"x\")", true},
	}
	for _, tt := range tests {
		s := Suggestion{Implementation: tt.impl}
		if got := s.HasImplementation(); got != tt.want {
			t.Errorf("HasImplementation(%q) = %v, want %v", tt.impl, got, tt.want)
		}
	}
}

func TestExecutionResult_Succeeded(t *testing.T) {
	if !(&ExecutionResult{Status: StatusSuccess}).Succeeded() {
		t.Fatal("success status should succeed")
	}
	if (&ExecutionResult{Status: StatusError}).Succeeded() {
		t.Fatal("error status should not succeed")
	}
}
