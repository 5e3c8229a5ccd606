// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the record decoder for streaming response formats.
// The decoder is responsible for converting one raw JSON record into
// typed Events; it does no I/O and keeps no state.
//
// The backend has shipped two wire shapes over its protocol versions:
//
//   - flat: {"message"|"delta": {...}, "context": {...}, "session_state": s}
//   - choice-array: {"choices": [{"index": 0, "message"|"delta": {...}, ...}]}
//
// Both are normalized here so the accumulator stays shape-agnostic.
package chatstream

import (
	"encoding/json"
)

// RecordDecoder classifies one decoded JSON record into stream events.
//
// Classification follows a strict precedence, evaluated top-down, first
// match wins:
//
//  1. Record carries both a data-point-bearing context AND non-empty
//     content: a complete non-incremental record. Decodes to a context
//     fragment followed by a content delta with the full text. (One
//     historical backend sends the whole answer in a single record even
//     on the streaming endpoint.)
//  2. Record carries non-empty content: a content delta.
//  3. Record carries a context field: a context fragment.
//  4. Record carries an error field: an error signal; terminates the stream.
//
// A record matching none of the above decodes to zero events, which keeps
// the client forward-compatible with unknown fields.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. The default
//	implementation is stateless and inherently thread-safe.
type RecordDecoder interface {
	// Decode parses one raw JSON record.
	//
	// Returns:
	//   - []Event: Zero, one, or two events (two for complete records).
	//   - error: Non-nil if the record is not valid JSON. Callers treat
	//     this as a protocol error: log, skip, continue.
	Decode(record []byte) ([]Event, error)
}

// rawMessage matches the content-bearing sub-object of either shape.
type rawMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// rawRecord matches the union of all known record shapes. The same field
// set appears at the top level (flat shape) and inside each choice
// (choice-array shape).
type rawRecord struct {
	Choices []rawRecord `json:"choices,omitempty"`

	Message      *rawMessage      `json:"message"`
	Delta        *rawMessage      `json:"delta"`
	Context      *ContextFragment `json:"context"`
	SessionState *string          `json:"session_state"`
	Error        *string          `json:"error"`
}

// recordDecoder implements RecordDecoder for the known protocol shapes.
type recordDecoder struct{}

// NewRecordDecoder creates the default stateless record decoder.
func NewRecordDecoder() RecordDecoder {
	return &recordDecoder{}
}

// Decode parses one record and classifies it by precedence.
func (d *recordDecoder) Decode(record []byte) ([]Event, error) {
	var raw rawRecord
	if err := json.Unmarshal(record, &raw); err != nil {
		return nil, err
	}

	// Choice-array shape: the first choice carries the payload. The
	// top-level error field still applies either way.
	body := &raw
	if len(raw.Choices) > 0 {
		body = &raw.Choices[0]
		if body.Error == nil {
			body.Error = raw.Error
		}
	}

	content, role := body.contentAndRole()

	switch {
	case body.Context.HasDataPoints() && content != "":
		// Complete non-incremental record: equivalent to a context
		// fragment followed immediately by a delta with the full content.
		return []Event{
			{Type: EventContextFragment, Context: body.Context, SessionState: body.SessionState},
			{Type: EventContentDelta, Content: content, Role: role, SessionState: body.SessionState},
		}, nil

	case content != "":
		return []Event{
			{Type: EventContentDelta, Content: content, Role: role, SessionState: body.SessionState},
		}, nil

	case body.Context != nil:
		return []Event{
			{Type: EventContextFragment, Context: body.Context, SessionState: body.SessionState},
		}, nil

	case body.Error != nil:
		return []Event{
			{Type: EventError, ErrMessage: *body.Error, SessionState: body.SessionState},
		}, nil
	}

	// Unknown record: ignored for forward compatibility.
	return nil, nil
}

// contentAndRole extracts the text chunk and role from whichever
// sub-object the record used. "message" wins over "delta" when both are
// present, matching the non-incremental shape.
func (r *rawRecord) contentAndRole() (string, string) {
	if r.Message != nil && r.Message.Content != "" {
		return r.Message.Content, r.Message.Role
	}
	if r.Delta != nil && r.Delta.Content != "" {
		return r.Delta.Content, r.Delta.Role
	}
	return "", ""
}

var _ RecordDecoder = (*recordDecoder)(nil)
