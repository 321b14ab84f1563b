// Package parser recovers structure from LLM replies: suggestion lists
// from free text and transformation code from markdown-ish blobs. Every
// entry point is total: a malformed reply degrades through a fallback
// ladder and ends in an empty result, never an error.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"featureforge/internal/feature"
)

var (
	reJSONFence    = regexp.MustCompile("```json\\s*")
	reNestedFence  = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\\n(.*?)```")
	reLineBreaks   = regexp.MustCompile(`[\r\n\t]+`)
	reSpaceRuns    = regexp.MustCompile(`\s{2,}`)
	reTrailComma   = regexp.MustCompile(`,\s*([}\]])`)
	reFieldTriple  = regexp.MustCompile(`(?s)"suggestion_id":\s*"([^"]+)".*?"description":\s*"([^"]+)".*?"rationale":\s*"([^"]+)"`)
	reFieldImpl    = regexp.MustCompile(`(?s)"implementation":\s*"(.*?)"`)
	reFieldCols    = regexp.MustCompile(`(?s)"affected_columns":\s*\[(.*?)\]`)
	reFieldFeats   = regexp.MustCompile(`(?s)"new_features":\s*\[(.*?)\]`)
	reListMarker   = regexp.MustCompile(`\n\d+[.)]\s+`)
	reFuncName     = regexp.MustCompile(`func\s+(\w+)`)
	reFenceOpening = regexp.MustCompile("```[a-zA-Z]*[ \t]*\\n?")
)

// Parser extracts suggestion records and code fragments from LLM replies.
type Parser struct {
	log *zap.Logger
}

// New returns a parser. A nil logger disables logging.
func New(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log}
}

// ExtractSuggestions turns a free-text LLM reply into suggestion records.
// Strategies are tried in order, first success wins:
//
//  1. fenced ```json block (every closing fence tried, so nested code
//     fences inside the block are neutralized), strict parse
//  2. balanced-bracket scan anchored on "suggestion_id", strict parse
//  3. regex field-by-field recovery per discovered suggestion_id
//  4. enumerated-list split (one suggestion per "1." segment)
//
// The worst case is an empty slice; ExtractSuggestions never fails.
func (p *Parser) ExtractSuggestions(reply string) []*feature.Suggestion {
	for _, candidate := range jsonFenceCandidates(reply) {
		if suggestions := parseSuggestionJSON(normalizeJSONCandidate(candidate)); len(suggestions) > 0 {
			p.log.Debug("parsed suggestions from fenced json block",
				zap.Int("count", len(suggestions)))
			return p.normalize(suggestions)
		}
	}

	if body, ok := balancedSuggestionBlock(reply); ok {
		if suggestions := parseSuggestionJSON(normalizeJSONCandidate(body)); len(suggestions) > 0 {
			p.log.Debug("parsed suggestions from balanced bracket scan",
				zap.Int("count", len(suggestions)))
			return p.normalize(suggestions)
		}
	}

	if suggestions := p.regexRecovery(reply); len(suggestions) > 0 {
		p.log.Debug("recovered suggestions field-by-field",
			zap.Int("count", len(suggestions)))
		return p.normalize(suggestions)
	}

	suggestions := p.splitEnumerated(reply)
	p.log.Debug("extracted suggestions from enumerated list",
		zap.Int("count", len(suggestions)))
	return p.normalize(suggestions)
}

// jsonFenceCandidates returns the body of the first ```json block, cut at
// every subsequent fence delimiter in turn. A block containing a nested
// code fence closes at a later delimiter than the nested one, so trying
// each cut in order finds the true closing fence without guessing which
// delimiters open and which close.
func jsonFenceCandidates(reply string) []string {
	loc := reJSONFence.FindStringIndex(reply)
	if loc == nil {
		return nil
	}
	body := reply[loc[1]:]
	var out []string
	for i := 0; ; i += 3 {
		j := strings.Index(body[i:], "```")
		if j == -1 {
			return out
		}
		i += j
		out = append(out, body[:i])
	}
}

// normalizeJSONCandidate prepares a raw JSON-ish blob for strict parsing:
// nested code fences become escaped string literals so embedded Go syntax
// cannot break the outer structure, whitespace runs collapse, and
// trailing commas are dropped.
func normalizeJSONCandidate(raw string) string {
	s := strings.TrimSpace(raw)
	s = reNestedFence.ReplaceAllStringFunc(s, func(block string) string {
		inner := reNestedFence.FindStringSubmatch(block)[1]
		quoted, err := json.Marshal(inner)
		if err != nil {
			return `""`
		}
		return string(quoted)
	})
	s = reLineBreaks.ReplaceAllString(s, " ")
	s = reSpaceRuns.ReplaceAllString(s, " ")
	s = reTrailComma.ReplaceAllString(s, "$1")
	return s
}

func parseSuggestionJSON(candidate string) []*feature.Suggestion {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil
	}
	switch candidate[0] {
	case '[':
		var list []*feature.Suggestion
		if err := json.Unmarshal([]byte(candidate), &list); err != nil {
			return nil
		}
		out := list[:0]
		for _, s := range list {
			if s != nil {
				out = append(out, s)
			}
		}
		return out
	case '{':
		var one feature.Suggestion
		if err := json.Unmarshal([]byte(candidate), &one); err != nil {
			return nil
		}
		return []*feature.Suggestion{&one}
	}
	return nil
}

// balancedSuggestionBlock locates the first substring that looks like an
// array-of-objects or a single object containing a suggestion_id key,
// using a string-aware bracket balance scan.
func balancedSuggestionBlock(text string) (string, bool) {
	anchor := strings.Index(text, `"suggestion_id"`)
	if anchor == -1 {
		return "", false
	}
	objStart := strings.LastIndex(text[:anchor], "{")
	if objStart == -1 {
		return "", false
	}
	start := objStart
	open, closing := byte('{'), byte('}')
	if i := strings.LastIndex(text[:objStart], "["); i != -1 &&
		strings.TrimSpace(text[i+1:objStart]) == "" {
		start, open, closing = i, '[', ']'
	}

	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// regexRecovery pulls fields out of broken JSON, one record per
// discovered suggestion_id, each secondary field searched from that id's
// position. Missing optional fields default to empty.
func (p *Parser) regexRecovery(text string) []*feature.Suggestion {
	matches := reFieldTriple.FindAllStringSubmatch(text, -1)
	suggestions := make([]*feature.Suggestion, 0, len(matches))
	for _, m := range matches {
		id, description, rationale := m[1], m[2], m[3]
		tail := text[strings.Index(text, id):]

		implementation := ""
		if im := reFieldImpl.FindStringSubmatch(tail); im != nil {
			implementation = im[1]
		}
		var affected, newFeatures []string
		if cm := reFieldCols.FindStringSubmatch(tail); cm != nil {
			affected = parseStringArray(cm[1])
		}
		if fm := reFieldFeats.FindStringSubmatch(tail); fm != nil {
			newFeatures = parseStringArray(fm[1])
		}

		suggestions = append(suggestions, &feature.Suggestion{
			ID:              id,
			Type:            GuessType(description),
			Description:     description,
			Rationale:       rationale,
			Implementation:  implementation,
			AffectedColumns: affected,
			NewFeatures:     newFeatures,
		})
	}
	return suggestions
}

func parseStringArray(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.Trim(strings.TrimSpace(item), `"'`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// splitEnumerated is the last-resort strategy: split the reply on
// top-level enumerated-list markers and treat each segment as one
// suggestion.
func (p *Parser) splitEnumerated(text string) []*feature.Suggestion {
	blocks := reListMarker.Split("\n"+text, -1)
	if len(blocks) < 2 {
		return nil
	}
	suggestions := make([]*feature.Suggestion, 0, len(blocks)-1)
	for i, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.SplitN(block, "\n", 2)
		description := strings.TrimSpace(lines[0])
		rationale := ""
		if len(lines) > 1 {
			rationale = strings.TrimSpace(lines[1])
		}
		implementation := p.ExtractCode(block)
		if implementation == "" {
			implementation = feature.PlaceholderImplementation
		}
		suggestions = append(suggestions, &feature.Suggestion{
			ID:             fmt.Sprintf("auto_extracted_%d", i+1),
			Type:           GuessType(description),
			Description:    description,
			Rationale:      rationale,
			Implementation: implementation,
		})
	}
	return suggestions
}

func (p *Parser) normalize(suggestions []*feature.Suggestion) []*feature.Suggestion {
	if suggestions == nil {
		return []*feature.Suggestion{}
	}
	for _, s := range suggestions {
		if s.Type == "" {
			s.Type = GuessType(s.Description)
		}
	}
	return suggestions
}

// Keyword sets for GuessType, checked in order. First matching set wins.
var typeKeywords = []struct {
	t     feature.SuggestionType
	words []string
}{
	{feature.TypeInteraction, []string{"interact", "combin", "product", "ratio", "cross"}},
	{feature.TypeTransformation, []string{"transform", "normaliz", "standardiz", "encod", "binar", "scal", "bucket"}},
	{feature.TypeDomainKnowledge, []string{"domain", "knowledge", "calendar", "seasonal"}},
}

// GuessType classifies suggestion text by keyword matching,
// case-insensitive, defaulting to other.
func GuessType(text string) feature.SuggestionType {
	lower := strings.ToLower(text)
	for _, set := range typeKeywords {
		for _, w := range set.words {
			if strings.Contains(lower, w) {
				return set.t
			}
		}
	}
	return feature.TypeOther
}
