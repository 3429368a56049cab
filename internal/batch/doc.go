// Package batch drives a conversion batch from scan to terminal outcome.
//
// Start validates the input and output directories, then runs the batch on a
// single worker goroutine. The worker walks units in scan order, asks for a
// conflict decision when an output already exists, runs the transcoder, and
// records exactly one history entry per unit it reaches. Everything the
// caller needs to know arrives as events on Run.Events, which is backed by
// an unbounded mailbox so the worker never waits on a slow consumer. The
// only place the worker blocks on the caller is a pending conflict.Request.
package batch
