// Package conflict implements the decision gate consulted when a unit's
// output file already exists.
//
// The batch worker builds a Request and publishes it to the control side as
// an ordinary event, then blocks in Resolver.Resolve. The control side
// answers with Request.Respond (or Request.Dismiss) whenever it gets to it.
// The reply slot holds exactly one answer, so answering never blocks and
// only the first answer counts.
package conflict

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Decision is the supervisor's answer for one conflicting unit.
type Decision int

const (
	// CancelAll is the zero value so an unanswered or dismissed request
	// stops the batch.
	CancelAll Decision = iota
	Overwrite
	Skip
)

func (d Decision) String() string {
	switch d {
	case Overwrite:
		return "overwrite"
	case Skip:
		return "skip"
	case CancelAll:
		return "cancel"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Request asks for a decision about one existing output file.
type Request struct {
	// DisplayName is the output file name shown to the supervisor.
	DisplayName string
	// OutputPath is the full path of the existing file.
	OutputPath string
	// Unit is the name of the unit being converted.
	Unit string

	reply chan Decision
	once  sync.Once
}

// NewRequest returns a request with an empty reply slot.
func NewRequest(unit, displayName, outputPath string) *Request {
	return &Request{
		DisplayName: displayName,
		OutputPath:  outputPath,
		Unit:        unit,
		reply:       make(chan Decision, 1),
	}
}

// Respond delivers the supervisor's answer. Only the first call has an
// effect; it never blocks.
func (r *Request) Respond(d Decision) {
	r.once.Do(func() {
		r.reply <- d
	})
}

// Dismiss answers the request as if the supervisor chose CancelAll.
func (r *Request) Dismiss() {
	r.Respond(CancelAll)
}

// Resolver waits for answers on behalf of the batch worker.
type Resolver struct{}

// Resolve blocks until req is answered. If ctx ends first the request is
// dismissed and the result is CancelAll, unless an answer was already
// delivered; the first answer always wins.
func (Resolver) Resolve(ctx context.Context, req *Request) Decision {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d := <-req.reply:
		return d
	case <-ctx.Done():
	}
	// Dismiss is a no-op when an answer is already buffered, and either way
	// the slot now holds exactly one decision.
	req.Dismiss()
	return <-req.reply
}

// Policy is the default answer applied to every conflict of a batch.
type Policy string

const (
	PolicyAsk       Policy = "ask"
	PolicyOverwrite Policy = "overwrite"
	PolicySkip      Policy = "skip"
	PolicyCancel    Policy = "cancel"
)

// ParsePolicy validates a policy name such as the convert.on_conflict value.
func ParsePolicy(value string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(value))); p {
	case PolicyAsk, PolicyOverwrite, PolicySkip, PolicyCancel:
		return p, nil
	case "":
		return PolicyAsk, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (want ask, overwrite, skip, or cancel)", value)
	}
}

// Answer returns the automatic decision for p. ok is false for PolicyAsk,
// meaning the supervisor must be asked.
func (p Policy) Answer() (Decision, bool) {
	switch p {
	case PolicyOverwrite:
		return Overwrite, true
	case PolicySkip:
		return Skip, true
	case PolicyCancel:
		return CancelAll, true
	default:
		return CancelAll, false
	}
}

// ParseAnswer maps a typed supervisor reply to a decision. ok is false when
// the reply is not recognized and the supervisor should be asked again.
func ParseAnswer(value string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "o", "overwrite", "y", "yes":
		return Overwrite, true
	case "s", "skip", "n", "no":
		return Skip, true
	case "c", "cancel", "q", "quit":
		return CancelAll, true
	default:
		return CancelAll, false
	}
}
