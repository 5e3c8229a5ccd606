// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chatstream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
)

// State is the accumulator lifecycle state.
//
// Legal transitions:
//
//	Empty → Accumulating → Finalized
//	        Accumulating → Failed
//
// No terminal state is re-enterable.
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateFinalized
	StateFailed
)

// String returns the state name for logs and test failures.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrTerminalState is returned when an operation is applied after the
// accumulator reached Finalized or Failed.
var ErrTerminalState = errors.New("accumulator is in a terminal state")

// ErrNotFinalized is returned by Snapshot before a successful Finalize.
var ErrNotFinalized = errors.New("accumulator has not been finalized")

// Accumulator owns the single mutable in-progress answer for one request
// and reduces the event stream into it.
//
// # Description
//
// Events are applied strictly sequentially by the caller; the accumulator
// therefore needs no locking. Merge semantics match the non-streaming
// endpoint exactly:
//
//   - Context fragments shallow-merge: a key present in the fragment
//     replaces the previously merged value wholesale (latest wins, never
//     append); a key absent from the fragment leaves the merged value
//     untouched.
//   - Content deltas append, never replace. Role is last-write-wins; the
//     backend is expected to stabilize it on the first non-empty value
//     but has been observed to repeat it.
//
// For any legal event ordering, the finalized Response is identical to
// what the single-shot endpoint would return for the same logical answer.
//
// # Limitations
//
//   - Not safe for concurrent use; the stream consumer is a sequential
//     pull loop by contract.
//   - Single-use: create a fresh Accumulator per request.
type Accumulator struct {
	state        State
	content      strings.Builder
	role         string
	dataPoints   []chatproto.DataPoint
	thoughts     []chatproto.Thought
	sessionState *string
	failure      string
	snapshot     chatproto.Response
}

// NewAccumulator creates an accumulator in the Empty state. The role
// defaults to "assistant" until a delta overrides it, matching the
// single-shot response default.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		state: StateEmpty,
		role:  "assistant",
	}
}

// State returns the current lifecycle state.
func (a *Accumulator) State() State {
	return a.state
}

// Apply routes one decoded event to the matching merge operation.
func (a *Accumulator) Apply(ev Event) error {
	if ev.SessionState != nil && a.state != StateFinalized && a.state != StateFailed {
		state := *ev.SessionState
		a.sessionState = &state
	}

	switch ev.Type {
	case EventContextFragment:
		return a.ApplyContext(ev.Context)
	case EventContentDelta:
		return a.ApplyContentDelta(ev.Content, ev.Role)
	case EventFinalize:
		_, err := a.Finalize()
		return err
	case EventError:
		return a.Fail(ev.ErrMessage)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// ApplyContext shallow-merges a context fragment into the working context.
//
// Keys supplied by the fragment replace the prior value wholesale; keys
// absent from the fragment are left untouched. Applying the same fragment
// twice is idempotent.
func (a *Accumulator) ApplyContext(fragment *ContextFragment) error {
	if err := a.enterAccumulating(); err != nil {
		return err
	}
	if fragment == nil {
		return nil
	}
	if fragment.DataPoints != nil {
		a.dataPoints = make([]chatproto.DataPoint, len(*fragment.DataPoints))
		copy(a.dataPoints, *fragment.DataPoints)
	}
	if fragment.Thoughts != nil {
		a.thoughts = make([]chatproto.Thought, len(*fragment.Thoughts))
		copy(a.thoughts, *fragment.Thoughts)
	}
	return nil
}

// ApplyContentDelta appends text to the accumulated content. A non-empty
// role overwrites the stored role (last-write-wins).
func (a *Accumulator) ApplyContentDelta(text, role string) error {
	if err := a.enterAccumulating(); err != nil {
		return err
	}
	a.content.WriteString(text)
	if role != "" {
		a.role = role
	}
	return nil
}

// Content returns the text accumulated so far. Valid in any state; after
// Failed it returns the partial text that had arrived, which may remain
// visible transiently until an error view replaces it.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Finalize transitions to Finalized and freezes the merged response.
//
// Called when the stream closes cleanly. Finalizing an Empty accumulator
// is legal and yields an empty response; finalizing twice returns the
// same snapshot.
func (a *Accumulator) Finalize() (chatproto.Response, error) {
	switch a.state {
	case StateFinalized:
		return a.snapshot, nil
	case StateFailed:
		return chatproto.Response{}, ErrTerminalState
	}

	a.snapshot = chatproto.Response{
		Message: chatproto.Message{
			Content: a.content.String(),
			Role:    a.role,
		},
		Context: chatproto.Context{
			DataPoints: a.dataPoints,
			Thoughts:   a.thoughts,
		}.Clone(),
		SessionState: a.sessionState,
	}
	a.state = StateFinalized
	return a.snapshot, nil
}

// Snapshot returns the finalized response. It is an error to call it in
// any other state.
func (a *Accumulator) Snapshot() (chatproto.Response, error) {
	if a.state != StateFinalized {
		return chatproto.Response{}, ErrNotFinalized
	}
	return a.snapshot, nil
}

// Fail transitions to Failed. The partial working state is discarded for
// conversation-history purposes; the message is surfaced to the caller
// verbatim, not stored as a turn.
func (a *Accumulator) Fail(message string) error {
	if a.state == StateFinalized || a.state == StateFailed {
		return ErrTerminalState
	}
	a.failure = message
	a.state = StateFailed
	return nil
}

// Failure returns the backend error message after Fail.
func (a *Accumulator) Failure() string {
	return a.failure
}

// enterAccumulating moves Empty to Accumulating and rejects merges in
// terminal states.
func (a *Accumulator) enterAccumulating() error {
	switch a.state {
	case StateEmpty:
		a.state = StateAccumulating
		return nil
	case StateAccumulating:
		return nil
	default:
		return ErrTerminalState
	}
}
