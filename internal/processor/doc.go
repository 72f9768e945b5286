// Package processor runs one acquisition request end to end: it drives the
// extraction engine, maps engine progress onto the job record, applies
// retention, and records the terminal result.
//
// Both the tier worker pools and the direct fallback path call Process, so a
// request behaves the same whether or not a broker is available.
package processor
