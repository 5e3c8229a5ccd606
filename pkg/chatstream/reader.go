// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the stream reader that consumes an io.Reader of
// newline-delimited JSON records and emits decoded events via a callback.
//
// Single Responsibility:
//
//	The reader handles framing and event sequencing. It uses a
//	RecordDecoder to convert lines to events but does not merge or
//	render; composition with the Accumulator happens in the caller.
//
// Context Support:
//
//	Read checks the context before every record. When the context is
//	cancelled, reading stops and ctx.Err() is returned.
package chatstream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// maxRecordSize bounds one NDJSON line. Complete non-incremental records
// carry the whole answer plus retrieval context in a single line.
const maxRecordSize = 1 << 20

// ErrEmptyStream is returned when the stream closed without carrying a
// single line. The caller maps this to its empty-body failure.
var ErrEmptyStream = errors.New("stream body is empty")

// ErrNoDecodableRecords is returned when every line of a non-empty stream
// failed to decode. A malformed record is skipped and tolerated, but a
// stream made only of them is a protocol failure.
var ErrNoDecodableRecords = errors.New("stream contained no decodable records")

// Callback receives each decoded event in stream order. Returning a
// non-nil error stops the read and propagates the error.
type Callback func(Event) error

// Reader reads a streaming chat response and invokes a callback per event.
//
// The stream is considered complete when:
//   - A terminal event (finalize/error) is delivered
//   - EOF is reached, in which case a finalize event is synthesized
//   - The context is cancelled
//   - The callback returns an error
//
// Events are delivered strictly sequentially: the callback for one event
// returns before the next record is read, so the callback may merge into
// unsynchronized state.
type Reader interface {
	Read(ctx context.Context, r io.Reader, callback Callback) error
}

// ndjsonReader implements Reader for newline-delimited JSON bodies.
type ndjsonReader struct {
	decoder RecordDecoder
}

// NewNDJSONReader creates a reader that frames on newlines and decodes
// each line with the given decoder.
func NewNDJSONReader(decoder RecordDecoder) Reader {
	return &ndjsonReader{decoder: decoder}
}

// Read processes the stream, skipping undecodable lines.
//
// Lines that fail to decode are protocol errors: they are skipped and
// counted, and only fatal when the stream ends without having produced
// any event (ErrNoDecodableRecords). A stream with no lines at all yields
// ErrEmptyStream. On clean EOF after at least one event, a finalize
// event is synthesized so the callback always observes a terminal event.
func (r *ndjsonReader) Read(ctx context.Context, reader io.Reader, callback Callback) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	eventIndex := 0
	sawLine := false
	decodedRecords := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sawLine = true

		events, err := r.decoder.Decode([]byte(line))
		if err != nil {
			// Malformed record: skip, stay on the stream.
			continue
		}
		decodedRecords++

		for _, event := range events {
			event.Index = eventIndex
			eventIndex++
			if err := callback(event); err != nil {
				return err
			}
			if event.IsTerminal() {
				return nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	if !sawLine {
		return ErrEmptyStream
	}
	if decodedRecords == 0 {
		return ErrNoDecodableRecords
	}

	// Clean close is the backend's finalize signal.
	finalize := Event{Type: EventFinalize, Index: eventIndex}
	return callback(finalize)
}

var _ Reader = (*ndjsonReader)(nil)
