// Package tmpl compiles and evaluates the display templates and highlight
// predicates declared by source schemas.
//
// Templates use pongo2 (Jinja-compatible) syntax and predicates use expr
// expressions. Both are compiled once at schema load time; compilation is the
// only operation that can fail. Evaluation never fails: a template that errors
// at render time produces an empty string, and a predicate that errors
// evaluates to false. This is a deliberate availability-over-strictness policy
// for a display layer, not silent error swallowing.
//
// Evaluation context: the raw event payload is exposed under the "data" name,
// and payload keys that are valid identifiers are additionally exposed as
// top-level shortcuts. A payload key named "data" is shadowed by the payload
// object itself.
//
//	t, err := tmpl.Compile("{{ data.severity }}: {{ msg }}")
//	p, err := tmpl.CompilePredicate(`data.severity == "high"`)
//
//	t.Render(map[string]any{"severity": "high", "msg": "disk full"}) // "high: disk full"
//	p.Eval(map[string]any{"severity": "high"})                       // true
package tmpl
