// Package safety implements the static pattern screen applied to
// generated transformation code before it reaches the interpreter. It is
// a deterrent and a code-shaping pass, not an isolation boundary: the
// execution engine remains responsible for catching anything that slips
// through.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Severity ranks how a matched rule is treated.
type Severity int

const (
	// SeverityWarning is recorded but does not flip the safety verdict.
	SeverityWarning Severity = iota
	// SeverityBlocking flips IsSafe and triggers sanitization.
	SeverityBlocking
)

func (s Severity) String() string {
	if s == SeverityBlocking {
		return "blocking"
	}
	return "warning"
}

// Rule is one screened pattern. Rules are matched in order; each match
// contributes one warning to the report.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
}

// Report is the transient result of screening one code fragment.
type Report struct {
	IsSafe   bool
	Warnings []string
	// Details maps a violated rule name to the literal substrings that
	// matched it.
	Details map[string][]string
}

// DefaultRules returns the stock rule set, in screening order. Callers
// can extend or replace it when constructing a Screener.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "dangerous_import", Severity: SeverityBlocking,
			Pattern: regexp.MustCompile(`"(?:os|os/exec|syscall|unsafe|plugin|net|net/http)"`)},
		{Name: "dynamic_eval", Severity: SeverityBlocking,
			Pattern: regexp.MustCompile(`\binterp\.|\byaegi\b|reflect\.ValueOf\([^)]*\)\.Call`)},
		{Name: "process_spawn", Severity: SeverityBlocking,
			Pattern: regexp.MustCompile(`exec\.(?:Command|CommandContext)|os\.StartProcess|syscall\.(?:Exec|ForkExec)`)},
		{Name: "file_write", Severity: SeverityBlocking,
			Pattern: regexp.MustCompile(`os\.(?:Create|WriteFile|OpenFile)|ioutil\.WriteFile`)},
		{Name: "recursive_delete", Severity: SeverityBlocking,
			Pattern: regexp.MustCompile(`os\.(?:Remove|RemoveAll)\s*\(`)},
		{Name: "outbound_http", Severity: SeverityBlocking,
			Pattern: regexp.MustCompile(`http\.(?:Get|Post|PostForm|Head|NewRequest)|net\.Dial`)},
	}
}

// Screener matches code against a constructed rule set and can rewrite
// code to neutralize the worst findings.
type Screener struct {
	rules []Rule
	log   *zap.Logger
}

// New returns a screener over the given rules. A nil logger disables
// logging.
func New(rules []Rule, log *zap.Logger) *Screener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Screener{rules: rules, log: log}
}

// NewDefault returns a screener with the stock rule set.
func NewDefault(log *zap.Logger) *Screener {
	return New(DefaultRules(), log)
}

var (
	reFuncDef      = regexp.MustCompile(`func\s+(\w+)`)
	reForeverLoop  = regexp.MustCompile(`for\s*(?:true\s*)?\{`)
	reImportLine   = regexp.MustCompile(`(?m)^\s*import\s+"(?:os|os/exec|syscall|unsafe|plugin|net|net/http)".*$`)
	reImportSpec   = regexp.MustCompile(`(?m)^\s*"(?:os|os/exec|syscall|unsafe|plugin|net|net/http)"\s*$`)
	reCallPrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^(\s*)(exec\.(?:Command|CommandContext))`),
		regexp.MustCompile(`(?m)^(\s*)(os\.(?:StartProcess|Create|WriteFile|OpenFile|Remove|RemoveAll))`),
		regexp.MustCompile(`(?m)^(\s*)(syscall\.\w+)`),
		regexp.MustCompile(`(?m)^(\s*)(http\.(?:Get|Post|PostForm|Head|NewRequest))`),
		regexp.MustCompile(`(?m)^(\s*)(interp\.\w+)`),
	}
)

// SanitizedBanner is prepended to every sanitized fragment.
const SanitizedBanner = "// screened: flagged call sites disabled before execution"

// Check scans code against the rule set. Any blocking match flips IsSafe.
// Self-recursion and break-less infinite loops are reported as warnings
// only.
func (s *Screener) Check(code string) *Report {
	report := &Report{IsSafe: true, Details: make(map[string][]string)}

	for _, rule := range s.rules {
		matches := rule.Pattern.FindAllString(code, -1)
		if len(matches) == 0 {
			continue
		}
		if rule.Severity == SeverityBlocking {
			report.IsSafe = false
		}
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("code matches %s pattern: %s", rule.Name, rule.Pattern.String()))
		report.Details[rule.Name] = append(report.Details[rule.Name], matches...)
		s.log.Warn("safety rule matched",
			zap.String("rule", rule.Name),
			zap.String("severity", rule.Severity.String()),
			zap.Strings("matches", matches))
	}

	if name := functionName(code); name != "" {
		bodyStart := strings.Index(code, "func "+name)
		body := code[bodyStart+len("func "+name):]
		if regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`).MatchString(body) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("possible self-recursion of %s", name))
		}
	}

	for _, loc := range reForeverLoop.FindAllStringIndex(code, -1) {
		rest := code[loc[1]:]
		breakIdx := strings.Index(rest, "break")
		funcIdx := strings.Index(rest, "func ")
		if breakIdx == -1 || (funcIdx != -1 && funcIdx < breakIdx) {
			report.Warnings = append(report.Warnings,
				"possible infinite loop without a reachable break")
		}
	}

	return report
}

// Sanitize textually disables the call sites matched by the blocking
// rules: dangerous import lines become comments and flagged call prefixes
// are commented out. The result may no longer be semantically intact;
// sanitization trades correctness for containment.
func (s *Screener) Sanitize(code string) string {
	code = reImportLine.ReplaceAllString(code, "\t// import removed by safety screen")
	code = reImportSpec.ReplaceAllString(code, "\t// import removed by safety screen")
	for _, re := range reCallPrefixes {
		code = re.ReplaceAllString(code, "$1// $2")
	}
	return SanitizedBanner + "\n" + code
}

// InjectColumnGuards inserts, at the top of the function body, one
// presence guard per named column followed by a defensive copy, so the
// transformation short-circuits on a missing column and never mutates the
// caller's table in place.
func (s *Screener) InjectColumnGuards(code string, columns []string) string {
	name := functionName(code)
	if name == "" {
		s.log.Warn("cannot inject column guards: no function definition found")
		return code
	}
	braceIdx := strings.Index(code, "{")
	if braceIdx == -1 {
		return code
	}

	var b strings.Builder
	for _, col := range columns {
		if col == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\tif !df.HasColumn(%q) {\n\t\treturn df\n\t}", col)
	}
	if b.Len() == 0 {
		return code
	}
	b.WriteString("\n\tdf = df.Clone()\n")
	return code[:braceIdx+1] + b.String() + code[braceIdx+1:]
}

func functionName(code string) string {
	if m := reFuncDef.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return ""
}
