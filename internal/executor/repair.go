package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"featureforge/internal/llm"
	"featureforge/internal/parser"
	"featureforge/internal/table"
)

var (
	reUndefinedIdent = regexp.MustCompile(`undefined: (\w+)`)
	reMissingColumn  = regexp.MustCompile(`column "([^"]+)" not found`)
	reTypeMismatch   = regexp.MustCompile(`cannot convert|mismatched types|cannot use`)
)

const repairPromptTemplate = `The following Go function failed when applied to a table.

Code:
%s

Error:
%s

Table columns: %s
Row count: %d

Rewrite the function so it runs without error. The function must keep the
signature func(df *table.Table) *table.Table, operate on a copy of the
input, and return the table. Reply with a single Go code block and no
explanation.`

// FixCode attempts to repair failing code. With a client it asks the model
// for a corrected version, grounding the prompt in the error and the
// table's columns; without one, or when the model returns nothing usable,
// it falls back to shape-matched heuristics. The returned string equals
// the input when no repair applies.
func (e *Executor) FixCode(ctx context.Context, code, errMsg string, df *table.Table, client llm.Client) string {
	if client != nil {
		prompt := fmt.Sprintf(repairPromptTemplate,
			code, errMsg, strings.Join(df.Columns(), ", "), df.NumRows())
		reply, err := client.Complete(ctx, prompt)
		if err != nil {
			e.log.Warn("repair request failed", zap.Error(err))
		} else {
			fixed := parser.Clean(parser.New(e.log).ExtractCode(reply))
			if fixed != "" && strings.Contains(fixed, "func ") {
				if report := e.screener.Check(fixed); !report.IsSafe {
					fixed = e.screener.Sanitize(fixed)
				}
				return fixed
			}
		}
	}
	return e.heuristicFix(code, errMsg, df)
}

// heuristicFix patches the three common fault shapes without a model:
// missing imports, references to absent columns, and integer/float type
// mismatches.
func (e *Executor) heuristicFix(code, errMsg string, df *table.Table) string {
	if m := reUndefinedIdent.FindStringSubmatch(errMsg); m != nil {
		if pkg, ok := autoImports[m[1]]; ok {
			return fmt.Sprintf("import %q\n%s", pkg, code)
		}
	}
	if m := reMissingColumn.FindStringSubmatch(errMsg); m != nil {
		return e.screener.InjectColumnGuards(code, []string{m[1]})
	}
	if reTypeMismatch.MatchString(errMsg) {
		fixed := strings.ReplaceAll(code, ".Ints(", ".Floats(")
		if fixed != code {
			return fixed
		}
	}
	return code
}
