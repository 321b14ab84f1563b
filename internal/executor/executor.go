package executor

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"featureforge/internal/feature"
	"featureforge/internal/safety"
	"featureforge/internal/table"
)

// DefaultTimeout bounds a single transformation run.
const DefaultTimeout = 30 * time.Second

// allowedImports is the interpreter sandbox whitelist. Generated code may
// only reach the table package and side-effect-free stdlib packages.
var allowedImports = map[string]bool{
	"featureforge/internal/table": true,
	"strings":                     true,
	"strconv":                     true,
	"fmt":                         true,
	"math":                        true,
	"math/rand":                   true,
	"regexp":                      true,
	"encoding/json":               true,
	"time":                        true,
	"sort":                        true,
	"bytes":                       true,
	"unicode":                     true,
	"unicode/utf8":                true,
	"errors":                      true,
}

// autoImports maps identifiers seen in generated code to the packages that
// provide them. Models routinely emit bare function bodies without imports,
// so the composed program supplies whatever the body references.
var autoImports = map[string]string{
	"strings": "strings",
	"strconv": "strconv",
	"math":    "math",
	"rand":    "math/rand",
	"sort":    "sort",
	"fmt":     "fmt",
	"regexp":  "regexp",
	"time":    "time",
	"json":    "encoding/json",
	"unicode": "unicode",
	"errors":  "errors",
}

var (
	reImportSingle = regexp.MustCompile(`(?m)^\s*import\s+(?:\w+\s+)?"([^"]+)"\s*$`)
	rePackageDecl  = regexp.MustCompile(`(?m)^\s*package\s+\w+`)
)

// Executor runs generated transformation code in an isolated interpreter.
// Each call gets a fresh interpreter so evaluated state never leaks across
// attempts, and the caller's table is never mutated.
type Executor struct {
	screener *safety.Screener
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	history []feature.ExecutionResult
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout overrides the per-execution wall clock limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates an Executor with the default safety rules.
func New(opts ...Option) *Executor {
	e := &Executor{
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.screener = safety.NewDefault(e.log)
	return e
}

// History returns a copy of every recorded execution, oldest first.
func (e *Executor) History() []feature.ExecutionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]feature.ExecutionResult, len(e.history))
	copy(out, e.history)
	return out
}

// LastResult returns the most recent execution record, or false when the
// history is empty.
func (e *Executor) LastResult() (feature.ExecutionResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) == 0 {
		return feature.ExecutionResult{}, false
	}
	return e.history[len(e.history)-1], true
}

func (e *Executor) record(rec feature.ExecutionResult) {
	e.mu.Lock()
	e.history = append(e.history, rec)
	e.mu.Unlock()
}

// Execute runs code against a copy of df and returns the transformed table
// plus an execution record. The input table is never modified: faults of
// any kind return the original table alongside a status=error record, and
// the record is always appended to the history.
func (e *Executor) Execute(ctx context.Context, df *table.Table, code string, sugg feature.Suggestion, keepOriginal bool) (*table.Table, feature.ExecutionResult) {
	start := time.Now()
	rec := feature.ExecutionResult{
		SuggestionID:    sugg.ID,
		Status:          feature.StatusError,
		Description:     sugg.Description,
		FunctionName:    "",
		NewFeatures:     []string{},
		RemovedFeatures: []string{},
		KeepOriginal:    keepOriginal,
	}

	fail := func(f *Fault) (*table.Table, feature.ExecutionResult) {
		rec.Code = code
		rec.Error = f.Msg
		rec.ExecutionSeconds = time.Since(start).Seconds()
		e.log.Warn("execution failed",
			zap.String("suggestion_id", sugg.ID),
			zap.String("kind", f.Kind.String()),
			zap.String("error", f.Msg))
		e.record(rec)
		return df, rec
	}

	report := e.screener.Check(code)
	if !report.IsSafe {
		e.log.Warn("unsafe code sanitized before execution",
			zap.String("suggestion_id", sugg.ID),
			zap.Strings("warnings", report.Warnings))
		code = e.screener.Sanitize(code)
	}
	code = e.screener.InjectColumnGuards(code, sugg.AffectedColumns)

	program, err := composeProgram(code)
	if err != nil {
		return fail(faultf(KindEvaluationFault, "compose program: %v", err))
	}
	if err := validateImports(program); err != nil {
		return fail(faultf(KindUnsafeCodePattern, "%v", err))
	}

	fname, err := findFunction(program)
	if err != nil {
		return fail(faultf(KindNoCallableProduced, "%v", err))
	}
	rec.FunctionName = fname

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fail(faultf(KindEvaluationFault, "load stdlib symbols: %v", err))
	}
	if err := i.Use(tableSymbols()); err != nil {
		return fail(faultf(KindEvaluationFault, "load table symbols: %v", err))
	}
	if _, err := i.Eval(program); err != nil {
		return fail(faultf(KindEvaluationFault, "code evaluation failed: %v", err))
	}
	fn, err := i.Eval("main." + fname)
	if err != nil {
		return fail(faultf(KindNoCallableProduced, "function %s not found after evaluation: %v", fname, err))
	}

	// All affected columns must be present before the run for original
	// column dropping to apply afterwards.
	allPresent := true
	for _, col := range sugg.AffectedColumns {
		if !df.HasColumn(col) {
			allPresent = false
			break
		}
	}

	work := df.Clone()
	result, ferr := e.invokeTransform(ctx, fn, work)
	if ferr != nil {
		return fail(ferr)
	}

	if !keepOriginal && allPresent {
		newSet := make(map[string]bool, len(sugg.NewFeatures))
		for _, f := range sugg.NewFeatures {
			newSet[f] = true
		}
		for _, col := range sugg.AffectedColumns {
			if result.HasColumn(col) && !newSet[col] {
				result.Drop(col)
			}
		}
	}

	added, removed := table.Diff(df, result)
	if added == nil {
		added = []string{}
	}
	if removed == nil {
		removed = []string{}
	}
	rec.Status = feature.StatusSuccess
	rec.Code = code
	rec.NewFeatures = added
	rec.RemovedFeatures = removed
	rec.ExecutionSeconds = time.Since(start).Seconds()
	e.log.Info("execution succeeded",
		zap.String("suggestion_id", sugg.ID),
		zap.String("function", fname),
		zap.Strings("new_features", added),
		zap.Float64("seconds", rec.ExecutionSeconds))
	e.record(rec)
	return result, rec
}

// invokeTransform calls fn with df, enforcing the timeout and converting
// panics inside interpreted code into evaluation faults.
func (e *Executor) invokeTransform(ctx context.Context, fn reflect.Value, df *table.Table) (*table.Table, *Fault) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resultCh := make(chan *table.Table, 1)
	faultCh := make(chan *Fault, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				msg := fmt.Sprint(r)
				kind := KindEvaluationFault
				if strings.Contains(msg, "not found") && strings.Contains(msg, "column") {
					kind = KindMissingColumn
				}
				faultCh <- faultf(kind, "%s", msg)
			}
		}()

		if typed, ok := fn.Interface().(func(*table.Table) *table.Table); ok {
			resultCh <- typed(df)
			return
		}

		out := fn.Call([]reflect.Value{reflect.ValueOf(df)})
		if len(out) != 1 {
			faultCh <- faultf(KindInvalidReturnType, "function returned %d values, expected a single table", len(out))
			return
		}
		res, ok := out[0].Interface().(*table.Table)
		if !ok {
			faultCh <- faultf(KindInvalidReturnType, "function returned %s, expected *table.Table", out[0].Type())
			return
		}
		resultCh <- res
	}()

	select {
	case res := <-resultCh:
		if res == nil {
			return nil, faultf(KindInvalidReturnType, "function returned nil, expected *table.Table")
		}
		return res, nil
	case f := <-faultCh:
		return nil, f
	case <-ctx.Done():
		return nil, faultf(KindEvaluationFault, "execution timed out after %s: %v", e.timeout, ctx.Err())
	}
}

// composeProgram turns a bare function (or fragment) into a complete main
// package: imports declared inline in the code are hoisted, the table
// package is always available, and stdlib packages referenced by selector
// are imported automatically. Code that already carries a package clause
// is passed through untouched.
func composeProgram(code string) (string, error) {
	if rePackageDecl.MatchString(code) {
		return code, nil
	}

	imports := map[string]bool{"featureforge/internal/table": true}

	body := reImportSingle.ReplaceAllStringFunc(code, func(line string) string {
		m := reImportSingle.FindStringSubmatch(line)
		imports[m[1]] = true
		return ""
	})

	for ident, pkg := range autoImports {
		if imports[pkg] {
			continue
		}
		used, err := regexp.MatchString(`\b`+ident+`\.`, body)
		if err == nil && used {
			imports[pkg] = true
		}
	}

	paths := make([]string, 0, len(imports))
	for p := range imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString("package main\n\nimport (\n")
	for _, p := range paths {
		fmt.Fprintf(&b, "\t%q\n", p)
	}
	b.WriteString(")\n\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
	return b.String(), nil
}

// validateImports confirms the composed program only imports whitelisted
// packages.
func validateImports(program string) error {
	var forbidden []string
	inBlock := false
	for _, line := range strings.Split(program, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			pkg := strings.Trim(trimmed, `"`)
			if pkg != "" && !allowedImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			pkg := strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
			if pkg != "" && !allowedImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}

// findFunction parses the program and returns the name of the first
// top-level function declaration.
func findFunction(program string) (string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "transform.go", program, 0)
	if err != nil {
		return "", fmt.Errorf("parse generated code: %w", err)
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv == nil {
			return fn.Name.Name, nil
		}
	}
	return "", fmt.Errorf("no function declaration found in generated code")
}
