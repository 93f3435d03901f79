// Package queue keeps the workflow ledger: named queues of JSON documents
// keyed by session code.
//
// A session code lives in at most one queue per family (release, post,
// email). Moving between queues is atomic for readers: the directory backend
// renames the file without replacing an existing destination, the SQLite
// backend updates a single row guarded by its current queue. Callers go
// through the Store interface so the backend can be swapped by configuration.
package queue
