// Package dispatch prepares and sends the follow-ups of a video release.
//
// Preparation renders a social post and a speaker email from the session
// record and writes them to the to-post and to-email queues without any
// network call. Sending happens in later, separate invocations: the post
// sender publishes at most one post per run to throttle the posting rate,
// while the email sender drains its queue. Failed sends stay queued for the
// next run.
package dispatch
