package store

import (
	"encoding/json"
	"time"

	"github.com/dasos/peek/pkg/render"
)

// timeLayout is RFC 3339 UTC with fixed microsecond precision. The fixed
// width keeps lexicographic order identical to chronological order, which
// the cursor contract depends on.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Now returns the ingest timestamp for a new write.
func Now() string {
	return time.Now().UTC().Format(timeLayout)
}

// Event is one stored notification. ID is assigned at the first successful
// write and survives coalescing updates; TS is reassigned on every write and
// is the sole sort and cursor key.
type Event struct {
	ID          string         `json:"id"`
	TS          string         `json:"ts"`
	Source      string         `json:"config"`
	DisplayName string         `json:"config_display_name"`
	Data        map[string]any `json:"data"`
	View        render.View    `json:"view"`
	CoalesceKey string         `json:"-"`
}

// Delivery is what live subscribers receive: either a stored event or a
// tombstone marking a deletion.
type Delivery struct {
	Event   Event
	Deleted bool
}

// MarshalJSON renders a stored event as the event itself and a tombstone as
// a minimal record carrying the deleted event's identity.
func (d Delivery) MarshalJSON() ([]byte, error) {
	if !d.Deleted {
		return json.Marshal(d.Event)
	}
	return json.Marshal(tombstone{
		ID:          d.Event.ID,
		TS:          d.Event.TS,
		Source:      d.Event.Source,
		CoalesceKey: d.Event.CoalesceKey,
		Deleted:     true,
	})
}

type tombstone struct {
	ID          string `json:"id"`
	TS          string `json:"ts"`
	Source      string `json:"config"`
	CoalesceKey string `json:"coalesce_key,omitempty"`
	Deleted     bool   `json:"deleted"`
}

// ListOptions filters and paginates listings. The zero value lists the
// newest DefaultLimit events.
type ListOptions struct {
	// Cursor excludes events with TS >= Cursor. Strict bound for pagination
	// continuation; empty means "from the top".
	Cursor string
	// Query is matched case-insensitively against the four view fields and
	// the stringified payload values.
	Query string
	// Fields are exact-match constraints against stringified payload values.
	Fields map[string]string
	// Sources restricts a merged listing to the named slugs. Ignored by
	// per-source listings.
	Sources []string
	// Limit is clamped to [1, MaxLimit]; zero means DefaultLimit.
	Limit int
}

// Listing limits shared by every storage implementation.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// limit returns the effective page size.
func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultLimit
	case o.Limit > MaxLimit:
		return MaxLimit
	default:
		return o.Limit
	}
}

// Result is one page of a listing. NextCursor is set only when more matching
// events remain beyond this page.
type Result struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor,omitempty"`
}
