// Package registry holds the toolbox of prebuilt transformation functions.
// These are deterministic functions the execution engine runs; the planner
// only configures them, it never generates code.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tablemorph/tablemorph/internal/tabular"
)

// Kind tags what shape a function returns.
type Kind int

const (
	// KindScalar functions produce a single value.
	KindScalar Kind = iota
	// KindRecord functions produce a named field set that expands into
	// multiple output columns.
	KindRecord
)

// Result is the tagged outcome of a function call. Exactly one of Value or
// Fields is meaningful, selected by Kind. Order lists record fields in their
// declared order so callers can pick a deterministic leading field.
type Result struct {
	Kind   Kind
	Value  any
	Fields map[string]any
	Order  []string
}

// Scalar wraps a single value.
func Scalar(v any) Result { return Result{Kind: KindScalar, Value: v} }

// Record wraps a field map with its field order.
func Record(fields map[string]any, order ...string) Result {
	return Result{Kind: KindRecord, Fields: fields, Order: order}
}

// First returns the scalar value, or the leading field of a record.
func (r Result) First() any {
	if r.Kind == KindScalar {
		return r.Value
	}
	for _, k := range r.Order {
		if v, ok := r.Fields[k]; ok {
			return v
		}
	}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		return r.Fields[keys[0]]
	}
	return nil
}

// Args carries a function invocation: the primary value, the full multi-column
// value list when the step names several inputs, the source row for functions
// that reference sibling columns, and the configured parameters.
type Args struct {
	Value  any
	Values []any
	Row    map[string]any
	Params map[string]any
}

// Func is a pure transformation: (args) -> result.
type Func func(args Args) (Result, error)

type entry struct {
	fn   Func
	kind Kind
}

// Registry maps upper-cased function names to implementations.
type Registry struct {
	funcs map[string]entry
}

// New builds a registry with all built-in functions registered.
func New() *Registry {
	r := &Registry{funcs: map[string]entry{}}
	r.Register("SPLIT_FULL_NAME", KindRecord, splitFullName)
	r.Register("REGEX_EXTRACT", KindScalar, regexExtract)
	r.Register("CLEAN_WHITESPACE", KindScalar, cleanWhitespace)
	r.Register("SMART_DATE_PARSE", KindScalar, smartDateParseFunc)
	r.Register("FORMAT_DATE", KindScalar, formatDate)
	r.Register("NORMALIZE_CURRENCY", KindScalar, normalizeCurrency)
	r.Register("MAP_VALUES", KindScalar, mapValues)
	r.Register("CONDITIONAL_FILL", KindScalar, conditionalFill)
	r.Register("LOOKUP_PINCODE", KindRecord, lookupPincode)
	r.Register("VALIDATE_GSTIN", KindRecord, validateGSTIN)
	r.Register("VALIDATE_EMAIL", KindRecord, validateEmail)
	r.Register("NORMALIZE_PHONE", KindScalar, normalizePhone)
	r.Register("UPPERCASE", KindScalar, uppercase)
	r.Register("LOWERCASE", KindScalar, lowercase)
	r.Register("TITLECASE", KindScalar, titlecase)
	r.Register("TRIM", KindScalar, trim)
	r.Register("CONCATENATE", KindScalar, concatenate)
	r.Register("COMPUTE_DATE_DIFF", KindScalar, computeDateDiff)
	return r
}

// Register adds a function under the upper-cased name.
func (r *Registry) Register(name string, kind Kind, fn Func) {
	r.funcs[strings.ToUpper(name)] = entry{fn: fn, kind: kind}
}

// Execute runs the named function. Unknown names are an error.
func (r *Registry) Execute(name string, args Args) (Result, error) {
	e, ok := r.funcs[strings.ToUpper(name)]
	if !ok {
		return Result{}, fmt.Errorf("unknown function: %s", name)
	}
	if args.Params == nil {
		args.Params = map[string]any{}
	}
	return e.fn(args)
}

// Has reports whether the named function exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[strings.ToUpper(name)]
	return ok
}

// ReturnsRecord reports whether the named function produces a field set.
func (r *Registry) ReturnsRecord(name string) bool {
	e, ok := r.funcs[strings.ToUpper(name)]
	return ok && e.kind == KindRecord
}

// Names lists all registered function names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		out = append(out, k)
	}
	return out
}

// --- shared cell helpers ---

func isMissing(v any) bool {
	return v == nil
}

func cellString(v any) string {
	return tabular.CellString(v)
}

func paramString(params map[string]any, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func paramInt(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
