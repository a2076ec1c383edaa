// Package schema loads and holds the per-source configuration: a display
// name, the four display field templates, an optional coalescing key template
// and an ordered list of highlight rules.
//
// Sources are declared as YAML files, one per source, with the file stem as
// the source slug:
//
//	display_name: Alerts
//	fields:
//	  badge: "{{ data.severity }}"
//	  title: "{{ data.msg }}"
//	  link: "https://example.com/{{ data.id }}"
//	  description: "{{ data.details }}"
//	  coalesce: "{{ data.job_id }}"
//	highlight_rules:
//	  - when: 'data.severity == "high"'
//	    class: critical
//
// Loading happens once at startup and fails fast on any structural problem,
// template or expression compile error, or duplicate slug. The resulting
// Registry is immutable and safe for concurrent use for the process lifetime.
package schema
