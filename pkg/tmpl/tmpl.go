package tmpl

import (
	"errors"
	"math"
	"reflect"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/flosch/pongo2/v6"
)

// identRe matches payload keys that may be exposed as top-level context
// variables. pongo2 rejects contexts containing non-identifier keys, so
// anything else is reachable only through "data".
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Template is a compiled field template. It is immutable and safe for
// concurrent use.
type Template struct {
	src string
	t   *pongo2.Template
}

// Compile parses a field template. The returned Template never fails at
// render time.
func Compile(text string) (*Template, error) {
	t, err := pongo2.FromString(text)
	if err != nil {
		return nil, errors.Join(ErrTemplateSyntax, err)
	}
	return &Template{src: text, t: t}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// static templates.
func MustCompile(text string) *Template {
	t, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Render evaluates the template against an event payload. Evaluation errors
// and missing values degrade to empty output; non-string expression results
// are stringified.
func (t *Template) Render(payload map[string]any) string {
	out, err := t.t.Execute(pongo2.Context(Context(payload)))
	if err != nil {
		return ""
	}
	return out
}

// Source returns the original template text.
func (t *Template) Source() string { return t.src }

// Predicate is a compiled boolean highlight expression. It is immutable and
// safe for concurrent use.
type Predicate struct {
	src string
	p   *vm.Program
}

// CompilePredicate parses a highlight expression. Unknown variables are
// permitted at compile time; they evaluate to nil.
func CompilePredicate(text string) (*Predicate, error) {
	p, err := expr.Compile(text, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, errors.Join(ErrExpressionSyntax, err)
	}
	return &Predicate{src: text, p: p}, nil
}

// MustCompilePredicate is like CompilePredicate but panics on error.
func MustCompilePredicate(text string) *Predicate {
	p, err := CompilePredicate(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Eval evaluates the predicate against an event payload. Any runtime error
// evaluates to false; non-boolean results use truthiness rules.
func (p *Predicate) Eval(payload map[string]any) bool {
	out, err := expr.Run(p.p, Context(payload))
	if err != nil {
		return false
	}
	return truthy(out)
}

// Source returns the original expression text.
func (p *Predicate) Source() string { return p.src }

// Context builds the shared evaluation context for templates and predicates:
// the payload under "data" plus top-level shortcuts for identifier-shaped
// keys. "data" always wins over a payload key of the same name.
func Context(payload map[string]any) map[string]any {
	data := make(map[string]any, len(payload))
	for k, v := range payload {
		data[k] = normalize(v)
	}

	ctx := make(map[string]any, len(data)+1)
	for k, v := range data {
		if k != "data" && identRe.MatchString(k) {
			ctx[k] = v
		}
	}
	ctx["data"] = data
	return ctx
}

// normalize converts whole JSON numbers back to ints. encoding/json decodes
// every number as float64, which templates would render with a trailing
// fraction ("7.0" instead of "7") and expressions would compare as floats.
func normalize(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int(x)
		}
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = normalize(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = normalize(vv)
		}
		return out
	}
	return v
}

// truthy mirrors template-language truthiness: nil, false, zero numbers,
// empty strings and empty collections are false, everything else true.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() != 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
