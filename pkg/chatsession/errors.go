// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chatsession

import (
	"errors"
	"fmt"
)

// ErrRequestInFlight is returned by Ask when a previous Ask on the same
// controller has not yet completed. Requests never overlap.
var ErrRequestInFlight = errors.New("a request is already in flight")

// TransportError wraps a network or HTTP-level failure: the request never
// produced a usable response body.
type TransportError struct {
	// StatusCode is the HTTP status when the failure was an error
	// status, zero when the request failed before a response arrived.
	StatusCode int
	Err        error
}

// Error describes the transport failure, including the status code when
// one was received.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the backend answered but the body violated the
// record contract badly enough that no response could be assembled.
//
// Individual malformed records inside an otherwise healthy stream are
// skipped silently and never produce a ProtocolError; only a body with
// zero decodable records does.
type ProtocolError struct {
	Err error
}

// Error describes the protocol failure.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProtocolError) Unwrap() error { return e.Err }

// BackendError carries an error the backend reported in-band through an
// error record or error field. The message is surfaced verbatim and the
// turn is not recorded in conversation history.
type BackendError struct {
	Message string
}

// Error returns the backend's message unaltered.
func (e *BackendError) Error() string { return e.Message }

// EmptyBodyError means the backend returned a success status with no
// response body at all.
type EmptyBodyError struct{}

// Error describes the empty-body failure.
func (e *EmptyBodyError) Error() string {
	return "backend returned an empty response body"
}
