// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chatstream implements the streaming response ingestion and merge
// engine for the FlavorGenius chat protocol.
//
// The backend's streaming endpoint emits newline-delimited JSON records
// carrying partial context fragments and content deltas. This package
// turns that stream back into the single Response the non-streaming
// endpoint would have returned, while exposing paced intermediate
// snapshots for display.
//
// Layered architecture:
//
//	io.Reader → Reader (NDJSON framing) → RecordDecoder → Event
//	                                                        ↓
//	                                        Accumulator (+ PacedEmitter)
//
// Single Responsibility:
//
//	This package parses, sequences, and merges. It performs no HTTP, no
//	rendering, and keeps no conversation state; those live in
//	pkg/chatsession, pkg/ux, and pkg/conversation respectively.
package chatstream

import "github.com/flavorgenius/flavorchat/pkg/chatproto"

// EventType discriminates the stream event union.
type EventType string

const (
	// EventContextFragment carries a partial retrieval context to be
	// shallow-merged into the working response.
	EventContextFragment EventType = "context"

	// EventContentDelta carries a chunk of answer text to append, and
	// optionally a role update.
	EventContentDelta EventType = "delta"

	// EventFinalize marks clean end-of-stream. It is synthesized by the
	// Reader; the backend signals it by closing the connection.
	EventFinalize EventType = "finalize"

	// EventError carries an explicit backend error. It terminates the
	// stream and fails the request.
	EventError EventType = "error"
)

// ContextFragment is a partial retrieval context as found on the wire.
//
// Pointer fields distinguish "key absent" (nil, leave the merged value
// untouched) from "key present but empty" (non-nil, replace wholesale).
// The backend's merge semantics are latest-wins per key, never append.
type ContextFragment struct {
	DataPoints *[]chatproto.DataPoint `json:"data_points,omitempty"`
	Thoughts   *[]chatproto.Thought   `json:"thoughts,omitempty"`
}

// HasDataPoints reports whether the fragment carries a non-empty ranked
// item list. Used by the decoder's complete-record detection.
func (f *ContextFragment) HasDataPoints() bool {
	return f != nil && f.DataPoints != nil && len(*f.DataPoints) > 0
}

// Event is one decoded stream event.
//
// Exactly one variant is populated according to Type. SessionState rides
// along on whichever event the carrying record produced, since the backend
// attaches the continuation token to otherwise ordinary records.
type Event struct {
	Type EventType

	// Context is set for EventContextFragment.
	Context *ContextFragment

	// Content and Role are set for EventContentDelta. Role may be empty
	// when the record carried only text.
	Content string
	Role    string

	// ErrMessage is set for EventError, verbatim from the backend.
	ErrMessage string

	// SessionState is non-nil when the carrying record included a
	// continuation token.
	SessionState *string

	// Index is the zero-based position of this event in the stream,
	// assigned by the Reader.
	Index int
}

// IsTerminal reports whether no further events may follow this one.
func (e Event) IsTerminal() bool {
	return e.Type == EventFinalize || e.Type == EventError
}
