package executor

import "fmt"

// FaultKind categorizes execution faults. Every fault is caught at the
// engine boundary and converted into a status=error result; kinds exist
// so callers and the repair heuristics can pattern-match outcomes.
type FaultKind int

const (
	// KindEvaluationFault is any fault raised while evaluating or running
	// generated code, message captured verbatim.
	KindEvaluationFault FaultKind = iota
	// KindNoCallableProduced means the evaluated code declared no
	// top-level function.
	KindNoCallableProduced
	// KindInvalidReturnType means the callable returned something other
	// than a table.
	KindInvalidReturnType
	// KindMissingColumn is the guard-triggered shape: a referenced column
	// does not exist. Guarded code returns the input unchanged instead.
	KindMissingColumn
	// KindParseFailure means the extractor exhausted every fallback.
	KindParseFailure
	// KindUnsafeCodePattern is non-fatal: the screener sanitizes and the
	// engine continues.
	KindUnsafeCodePattern
)

func (k FaultKind) String() string {
	switch k {
	case KindEvaluationFault:
		return "evaluation_fault"
	case KindNoCallableProduced:
		return "no_callable_produced"
	case KindInvalidReturnType:
		return "invalid_return_type"
	case KindMissingColumn:
		return "missing_column"
	case KindParseFailure:
		return "parse_failure"
	case KindUnsafeCodePattern:
		return "unsafe_code_pattern"
	default:
		return "unknown"
	}
}

// Fault is an execution fault with its kind attached.
type Fault struct {
	Kind FaultKind
	Msg  string
}

func (f *Fault) Error() string { return f.Msg }

func faultf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
