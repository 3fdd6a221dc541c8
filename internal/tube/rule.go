package tube

import "sync"

type ruleKind int

const (
	ruleSourceField ruleKind = iota + 1
	ruleComputed
	ruleStatic
)

// ComputeFunc derives one target field value from a source record. It must
// be side-effect-free and must not depend on other target fields.
type ComputeFunc func(Record) (any, error)

// Rule produces the value for one target field. It is one of three variants:
// a source field copied verbatim, a function evaluated once per record, or a
// literal captured once at construction.
type Rule struct {
	kind  ruleKind
	field string
	fn    ComputeFunc
	value any
}

// From copies the named source field verbatim.
func From(field string) Rule {
	return Rule{kind: ruleSourceField, field: field}
}

// Compute evaluates fn once per record.
func Compute(fn ComputeFunc) Rule {
	return Rule{kind: ruleComputed, fn: fn}
}

// Value uses a literal frozen now, not per record. A caller wanting a
// per-record timestamp must use Compute, not Value.
func Value(v any) Rule {
	return Rule{kind: ruleStatic, value: v}
}

// Mapping is an ordered list of per-field rules. Order is preserved so
// resolution and reports stay reproducible. A target field may appear at
// most once; duplicates are a construction error.
type Mapping []MappingEntry

// MappingEntry binds one target field to the rule producing its value.
type MappingEntry struct {
	Field string
	Rule  Rule
}

// Defaults are literal fallbacks applied to every record for fields the
// mapping leaves unpopulated. A default never overrides a mapped value.
type Defaults map[string]any

var (
	funcMu        sync.RWMutex
	computedFuncs = map[string]ComputeFunc{}
)

// RegisterFunc makes fn available to plan files under the given name.
// Registering the same name twice replaces the earlier function.
func RegisterFunc(name string, fn ComputeFunc) {
	funcMu.Lock()
	defer funcMu.Unlock()
	computedFuncs[name] = fn
}

// LookupFunc returns the computed function registered under name.
func LookupFunc(name string) (ComputeFunc, bool) {
	funcMu.RLock()
	defer funcMu.RUnlock()
	fn, ok := computedFuncs[name]
	return fn, ok
}
