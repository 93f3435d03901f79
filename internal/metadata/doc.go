// Package metadata turns session records into publish-ready video resources.
//
// The Preparer merges a SessionRecord with the mapping tables (code to
// channel, code to platform video id), derives the platform title and
// description, persists changed record fields, and writes the resulting
// VideoResource into the prepared queue. Titles and descriptions are held to
// the platform's limits; see TitleFor and Preparer.DescriptionFor for the
// fallback rules.
package metadata
