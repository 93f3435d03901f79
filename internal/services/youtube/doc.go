// Package youtube wraps the video platform's Data API for the three calls the
// release workflow needs: listing playlist items, updating video metadata,
// and reading the visibility of many videos in batches.
//
// Credentials come from an OAuth client secret plus a previously stored token
// file, or from an API key for read-only use. Obtaining tokens interactively is
// left to the operator.
package youtube
