package batch

import (
	"hlsmerge/internal/conflict"
	"hlsmerge/internal/history"
	"hlsmerge/internal/scanner"
	"hlsmerge/internal/transcode"
)

// Event is a notification from the batch worker to the caller.
type Event interface {
	event()
}

// UnitStarted is published when the worker reaches a unit. Index is 1-based.
type UnitStarted struct {
	Index int
	Total int
	Name  string
	Unit  scanner.Unit
}

// UnitFinished is published after a unit's history entry is recorded.
type UnitFinished struct {
	Index  int
	Total  int
	Name   string
	Status string
	// Kind is meaningful only when Transcoded is true.
	Kind       transcode.Kind
	Transcoded bool
	Result     transcode.Result
	Entry      history.Entry
}

// DecisionRequested asks the caller to answer Request. The worker blocks
// until Request.Respond or Request.Dismiss is called.
type DecisionRequested struct {
	Index   int
	Total   int
	Request *conflict.Request
}

// Warning reports a non-fatal problem, such as a history write failure.
type Warning struct {
	Err error
}

// BatchEnded is always the last event; the channel closes after it.
type BatchEnded struct {
	Outcome Outcome
}

func (UnitStarted) event()       {}
func (UnitFinished) event()      {}
func (DecisionRequested) event() {}
func (Warning) event()           {}
func (BatchEnded) event()        {}
