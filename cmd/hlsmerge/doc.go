// Package main hosts the hlsmerge CLI entrypoint and command graph.
//
// The convert command is the control side of a batch: it renders progress,
// prompts when an output file already exists, and turns Ctrl-C into a
// cancellation at the next unit boundary. The remaining commands inspect the
// conversion history, preview a batch, and manage configuration.
package main
