// Package llm is a small chat-completion client used to write the teaser,
// short and long promotional texts of each session.
//
// Requests that hit rate limits, server errors, empty replies or network
// timeouts are retried with exponential backoff (five attempts, 1s doubling
// to 10s by default). Rejected keys surface as configuration errors.
package llm
