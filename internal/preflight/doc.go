// Package preflight provides readiness checks for the vendors and
// filesystem paths that confops depends on.
//
// The CLI "confops doctor" command runs RunAll and renders the results.
// Workflow commands call the individual checks they need before doing any
// network work, so a missing token fails fast instead of halfway through a
// batch.
//
// Credential checks only look for presence. Reachability is only probed for
// the LLM, where a bad key would otherwise surface one record at a time.
package preflight
