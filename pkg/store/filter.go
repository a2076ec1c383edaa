package store

import (
	"fmt"
	"strings"
)

// matches applies the non-cursor listing filters to one event. The cursor
// bound is applied by the storage scan itself so implementations can push it
// into their ordering index.
func matches(ev Event, opts ListOptions) bool {
	for key, want := range opts.Fields {
		got, ok := ev.Data[key]
		if !ok || stringify(got) != want {
			return false
		}
	}

	if opts.Query != "" {
		needle := strings.ToLower(opts.Query)
		if !strings.Contains(strings.ToLower(haystack(ev)), needle) {
			return false
		}
	}
	return true
}

// haystack concatenates everything the free-text query searches: the four
// rendered view fields plus every stringified payload value.
func haystack(ev Event) string {
	parts := make([]string, 0, 4+len(ev.Data))
	for _, p := range []string{ev.View.Badge, ev.View.Title, ev.View.Link, ev.View.Description} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	for _, v := range ev.Data {
		if s := stringify(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// stringify coerces payload values the way query params arrive: as strings.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

// page collects a scan of candidate events (already newest-first and
// cursor-bounded) into one result page, looking one event past the limit to
// decide whether a next cursor exists.
type page struct {
	opts  ListOptions
	limit int
	items []Event
	more  bool
}

func newPage(opts ListOptions) *page {
	return &page{opts: opts, limit: opts.limit()}
}

// add offers one candidate and reports whether the scan should continue.
func (p *page) add(ev Event) bool {
	if !matches(ev, p.opts) {
		return true
	}
	if len(p.items) == p.limit {
		p.more = true
		return false
	}
	p.items = append(p.items, ev)
	return true
}

func (p *page) result() Result {
	res := Result{Items: p.items}
	if res.Items == nil {
		res.Items = []Event{}
	}
	if p.more && len(p.items) > 0 {
		res.NextCursor = p.items[len(p.items)-1].TS
	}
	return res
}
