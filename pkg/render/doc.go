// Package render turns a raw event payload into the fixed display record a
// source's schema describes: the four display fields plus the ordered list of
// highlight classes, and optionally the event's coalescing key.
//
// Rendering is a pure function of (schema, payload) and never fails; template
// or predicate evaluation problems degrade to empty strings and false
// respectively, so ingestion always produces a displayable record.
package render
