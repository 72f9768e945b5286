// Package notifications pushes job outcome messages to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the processor can always hold a Service. Which outcomes are announced is a
// configuration decision made here, not by callers.
package notifications
