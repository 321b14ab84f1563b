package parser

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Fence openings tried in order when looking for a code block.
var codeFences = []string{"```go\n", "```go\r\n", "```golang\n", "```\n"}

// ExtractCode pulls a single Go code fragment out of an LLM reply. It
// prefers a fenced code block; failing that, if the reply contains both a
// function definition and a return statement, it slices the function out
// by brace balance. Returns "" when nothing code-like is found.
func (p *Parser) ExtractCode(reply string) string {
	for _, fence := range codeFences {
		idx := strings.Index(reply, fence)
		if idx == -1 {
			continue
		}
		start := idx + len(fence)
		end := strings.Index(reply[start:], "```")
		if end == -1 {
			continue
		}
		return stripNestedFences(strings.TrimSpace(reply[start : start+end]))
	}

	if strings.Contains(reply, "func ") && strings.Contains(reply, "return") {
		return sliceFunction(reply)
	}
	return ""
}

func stripNestedFences(code string) string {
	code = reFenceOpening.ReplaceAllString(code, "")
	code = strings.ReplaceAll(code, "\n```", "")
	code = strings.ReplaceAll(code, "```", "")
	return strings.TrimSpace(code)
}

// sliceFunction cuts from the first func keyword to the closing brace of
// that function body, tracking brace depth outside string and rune
// literals.
func sliceFunction(text string) string {
	start := strings.Index(text, "func ")
	if start == -1 {
		return ""
	}
	depth := 0
	seenBrace := false
	var inString, inRaw, inRune bool
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case inRaw:
			if c == '`' {
				inRaw = false
			}
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case inRune:
			if c == '\\' {
				i++
			} else if c == '\'' {
				inRune = false
			}
		default:
			switch c {
			case '`':
				inRaw = true
			case '"':
				inString = true
			case '\'':
				inRune = true
			case '{':
				depth++
				seenBrace = true
			case '}':
				depth--
				if seenBrace && depth == 0 {
					return strings.TrimSpace(text[start : i+1])
				}
			}
		}
	}
	// Truncated body: return what we have from the func keyword on.
	return strings.TrimSpace(text[start:])
}

// Clean strips markdown fence markers and escaped-quote artifacts from
// extracted code. Clean is idempotent.
func Clean(code string) string {
	code = reFenceOpening.ReplaceAllString(code, "")
	code = strings.ReplaceAll(code, "```", "")
	code = strings.ReplaceAll(code, `\"`, `"`)
	return strings.TrimSpace(code)
}

// FunctionName returns the name of the first function defined in code, or
// "" if none is found.
func FunctionName(code string) string {
	if m := reFuncName.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return ""
}

// EnsureFunction guarantees that code is a single top-level transformation
// callable: func <name>(df *table.Table) *table.Table. Code that already
// starts with a function definition is returned unchanged. Bare statements
// are wrapped in a function that clones the input first and returns it,
// with a terminal return appended when the code has none.
func EnsureFunction(code, preferredName string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "func ") {
		return code
	}

	name := preferredName
	if name == "" {
		name = fmt.Sprintf("process_feature_%d", contentHash(trimmed)%10000)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "func %s(df *table.Table) *table.Table {\n", name)
	b.WriteString("\tdf = df.Clone()\n")
	for _, line := range strings.Split(trimmed, "\n") {
		b.WriteString("\t")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if !lastStatementReturns(trimmed) {
		b.WriteString("\treturn df\n")
	}
	b.WriteString("}")
	return b.String()
}

func lastStatementReturns(code string) bool {
	lines := strings.Split(code, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		return strings.HasPrefix(line, "return")
	}
	return false
}

func contentHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
