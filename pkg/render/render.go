package render

import (
	"strings"

	"github.com/dasos/peek/pkg/schema"
)

// View is the rendered, fixed-shape display record stored with every event.
// All four fields are always present; Highlights is never nil but may be
// empty.
type View struct {
	Badge       string   `json:"badge"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
}

// Render evaluates a source's field templates and highlight rules against an
// event payload. Rules run in declaration order; every truthy rule appends
// its class, duplicates included.
func Render(src *schema.Source, payload map[string]any) View {
	view := View{
		Badge:       renderField(src, schema.FieldBadge, payload),
		Title:       renderField(src, schema.FieldTitle, payload),
		Link:        renderField(src, schema.FieldLink, payload),
		Description: renderField(src, schema.FieldDescription, payload),
		Highlights:  []string{},
	}
	for _, rule := range src.Rules {
		if rule.When.Eval(payload) {
			view.Highlights = append(view.Highlights, rule.Class)
		}
	}
	return view
}

// CoalesceKey renders a source's coalescing key for a payload. Sources
// without a coalesce template, and keys that render to whitespace, produce
// the empty key, which means "always insert".
func CoalesceKey(src *schema.Source, payload map[string]any) string {
	if src.Coalesce == nil {
		return ""
	}
	return strings.TrimSpace(src.Coalesce.Render(payload))
}

func renderField(src *schema.Source, name string, payload map[string]any) string {
	t, ok := src.Fields[name]
	if !ok {
		return ""
	}
	return t.Render(payload)
}
