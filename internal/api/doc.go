// Package api exposes the HTTP surface: event ingestion, paginated
// listings, point lookups, deletion, and server-sent event streams.
//
// Routes are slug-scoped where they touch a single source; unknown slugs
// answer 404 on every such route. Listings accept limit, cursor, q, and
// arbitrary key=value pairs matched against payload fields.
package api
