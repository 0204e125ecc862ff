// Package relay holds the relay state and the two relay paths: the bulk
// replay of a message-ID range and the live relay of new messages.
//
// A Replayer walks [start, end] strictly in order. For each ID it checks the
// CancelToken, fetches the message, applies the topic scope and the filter
// rules, and sends at most once. A RateLimitError pauses the walk and the
// same ID is tried again. The first successful send of a run is pinned.
package relay
