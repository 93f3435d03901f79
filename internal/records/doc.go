// Package records holds the per-session documents of the workflow.
//
// A SessionRecord merges talk-management data with derived fields (promotional
// texts, channel, platform id, platform metadata) and is rewritten as a whole
// document on every update. A VideoResource mirrors the shape the video
// platform expects and travels through the release queues.
package records
