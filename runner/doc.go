// Package runner runs agent turns on worker goroutines and streams their
// statuses over a channel.
//
// A front end submits user text and drains the returned channel until it
// sees the final status; the channel is closed right after it. Only one turn
// runs at a time. Cancel stops waiting on a running turn, which then ends
// with a cancelled final status.
package runner
