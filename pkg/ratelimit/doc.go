// Package ratelimit paces outbound requests to image providers.
//
// A Pacer keeps a politeness gap between consecutive network operations in
// sequential runs. A TokenBucket caps the shared request budget when bulk mode
// fans entities out to several workers. Both honour context cancellation.
package ratelimit
