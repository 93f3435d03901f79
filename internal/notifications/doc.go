// Package notifications pushes run summaries and failures to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// commands call the Service unconditionally.
package notifications
