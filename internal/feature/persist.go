package feature

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EncodeSuggestions renders a suggestion list as the persisted JSON
// document format. The same encoding is used for LLM request payloads, so
// Decode(Encode(list)) round-trips exactly.
func EncodeSuggestions(suggestions []*Suggestion) ([]byte, error) {
	data, err := json.MarshalIndent(suggestions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode suggestions: %w", err)
	}
	return data, nil
}

// DecodeSuggestions parses a persisted suggestion-list document.
func DecodeSuggestions(data []byte) ([]*Suggestion, error) {
	var suggestions []*Suggestion
	if err := json.Unmarshal(data, &suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return suggestions, nil
}

// SaveSuggestions writes a suggestion list to path, creating parent
// directories as needed.
func SaveSuggestions(suggestions []*Suggestion, path string) error {
	data, err := EncodeSuggestions(suggestions)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save suggestions: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save suggestions: %w", err)
	}
	return nil
}

// LoadSuggestions reads a suggestion list from path.
func LoadSuggestions(path string) ([]*Suggestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load suggestions: %w", err)
	}
	return DecodeSuggestions(data)
}
