// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chatstream

import (
	"context"
	"strings"
	"time"
)

// DefaultPacingInterval is the minimum delay between successive observer
// notifications. 33ms keeps the perceived typing smooth regardless of
// network burstiness.
const DefaultPacingInterval = 33 * time.Millisecond

// NotifyFunc receives the full cumulative text after each paced update.
type NotifyFunc func(cumulative string)

// PacedEmitter decouples the arrival rate of text chunks from the rate at
// which partial text is surfaced to an observer.
//
// # Description
//
// Each Emit appends the chunk to the cumulative text, waits out whatever
// remains of the pacing interval since the previous notification, then
// notifies with the full cumulative text. Chunks are concatenated in
// arrival order and no chunk is ever dropped; only the visible cadence is
// smoothed. Pacing is cosmetic: it never affects the finalized response,
// only the sequence of intermediate snapshots.
//
// The wait is the only deliberate suspension point besides network reads
// and is cancellable through the context.
//
// # Limitations
//
//   - Not safe for concurrent use; Emit is called from the sequential
//     stream consumer only.
type PacedEmitter struct {
	interval time.Duration
	notify   NotifyFunc
	text     strings.Builder
	lastSent time.Time
}

// NewPacedEmitter creates an emitter with the given minimum interval
// between notifications. A zero or negative interval selects
// DefaultPacingInterval; a nil notify function disables notifications
// while still accumulating text.
func NewPacedEmitter(interval time.Duration, notify NotifyFunc) *PacedEmitter {
	if interval <= 0 {
		interval = DefaultPacingInterval
	}
	return &PacedEmitter{
		interval: interval,
		notify:   notify,
	}
}

// Emit appends a chunk and notifies the observer with the cumulative text
// after the pacing delay. Returns ctx.Err() if cancelled mid-wait; the
// chunk is still retained in the cumulative text in that case.
func (e *PacedEmitter) Emit(ctx context.Context, chunk string) error {
	e.text.WriteString(chunk)

	if e.notify == nil {
		return nil
	}

	if wait := e.interval - time.Since(e.lastSent); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	e.lastSent = time.Now()
	e.notify(e.text.String())
	return nil
}

// Text returns the full concatenated text emitted so far.
func (e *PacedEmitter) Text() string {
	return e.text.String()
}
