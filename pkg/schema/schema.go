package schema

import (
	"sort"
	"strings"

	"github.com/dasos/peek/pkg/tmpl"
)

// Field names every source must template. No other display fields are
// permitted.
const (
	FieldBadge       = "badge"
	FieldTitle       = "title"
	FieldLink        = "link"
	FieldDescription = "description"

	// FieldCoalesce is the optional per-event coalescing key template. An
	// event whose rendered key is empty always inserts a new record.
	FieldCoalesce = "coalesce"
)

// RequiredFields lists the display fields every source must declare.
var RequiredFields = []string{FieldBadge, FieldTitle, FieldLink, FieldDescription}

// HighlightRule pairs a boolean predicate with the highlight class it emits.
// Rules are evaluated in declaration order.
type HighlightRule struct {
	When  *tmpl.Predicate
	Class string
}

// Source is one registered event producer: its identity plus compiled
// templates and rules. Immutable after load.
type Source struct {
	Slug        string
	DisplayName string
	Fields      map[string]*tmpl.Template
	Coalesce    *tmpl.Template
	Rules       []HighlightRule
}

// Registry is the immutable set of loaded sources keyed by slug.
type Registry struct {
	sources map[string]*Source
	ordered []*Source
}

func newRegistry(sources map[string]*Source) *Registry {
	ordered := make([]*Source, 0, len(sources))
	for _, src := range sources {
		ordered = append(ordered, src)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := strings.ToLower(ordered[i].DisplayName), strings.ToLower(ordered[j].DisplayName)
		if a == b {
			return ordered[i].Slug < ordered[j].Slug
		}
		return a < b
	})
	return &Registry{sources: sources, ordered: ordered}
}

// Get returns the source for a slug.
func (r *Registry) Get(slug string) (*Source, bool) {
	src, ok := r.sources[slug]
	return src, ok
}

// Slugs returns every registered slug in display-name order.
func (r *Registry) Slugs() []string {
	slugs := make([]string, len(r.ordered))
	for i, src := range r.ordered {
		slugs[i] = src.Slug
	}
	return slugs
}

// All returns every source sorted by display name (case-insensitive).
func (r *Registry) All() []*Source {
	out := make([]*Source, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int { return len(r.sources) }
