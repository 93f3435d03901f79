// Package main hosts the confops CLI entrypoint and command graph.
//
// Each workflow command is one cron-friendly step of the release pipeline:
// ingest, describe, manifest, download, organize, mapping build, prepare,
// schedule, push, release-now, reconcile, send-posts and send-emails.
// notify-run chains the last three for the periodic job. Workflow commands
// share one run lock, one run id and one metrics textfile write per
// invocation; read-only commands (status, doctor, config) skip the lock.
//
// Keep this package lean: new behavior belongs in the internal packages and
// is surfaced here as a command or flag.
package main
