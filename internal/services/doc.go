// Package services defines shared utilities consumed by the workflow steps
// and the vendor integrations under internal/services/.
//
// Key responsibilities:
//   - Context helpers that stamp session codes, stage names, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so every vendor failure
//     can be classified (external, validation, not found) by callers that
//     decide between skip-and-continue and abort.
//
// Use these helpers when wiring new steps so operational behaviour (error
// handling, observability) stays uniform across the toolkit.
package services
