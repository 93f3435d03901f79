// Package logging assembles structured slog loggers and formatting helpers used
// across confops commands.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so workflow steps tag log lines
// with session codes, stages, and correlation IDs. Every record emitted by a
// logger built with a run ID carries that run_id, which ties the per-run log
// file to the run summary notification.
package logging
