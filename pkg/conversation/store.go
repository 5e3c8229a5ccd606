// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation holds the per-conversation state that outlives a
// single request: the ordered turn log, the backend continuation token,
// and the question intent detector.
//
// The store is in-memory only; the backend contract keeps no persisted
// client-side state and the continuation token is opaque.
package conversation

import (
	"sync"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
)

// Store is an ordered, append-only log of completed turns.
//
// # Description
//
// Store is the only state that crosses request boundaries. It is
// append-only except for Clear, and hands out copies so callers can never
// mutate stored turns. A monotonically increasing generation counter
// supports caller-side cancellation: work started under an older
// generation commits through AppendIf, which refuses silently once Clear
// has moved the conversation on.
//
// # Thread Safety
//
// All methods are safe for concurrent use; a single mutex guards the
// turn log, token, and generation together so AppendIf is atomic.
type Store struct {
	mu           sync.Mutex
	turns        []chatproto.Turn
	sessionState *string
	generation   uint64
}

// NewStore creates an empty conversation store at generation zero.
func NewStore() *Store {
	return &Store{}
}

// Append records a completed turn and adopts the response's continuation
// token for the next request.
func (s *Store) Append(question string, response chatproto.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(question, response)
}

// AppendIf records a completed turn only when the conversation is still
// on the given generation. It reports whether the turn was stored; false
// means the conversation was cleared while the request was in flight and
// the result must be discarded, not surfaced as an error.
func (s *Store) AppendIf(generation uint64, question string, response chatproto.Response) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.appendLocked(question, response)
	return true
}

func (s *Store) appendLocked(question string, response chatproto.Response) {
	stored := response.Clone()
	s.turns = append(s.turns, chatproto.Turn{Question: question, Response: stored})
	if stored.SessionState != nil {
		state := *stored.SessionState
		s.sessionState = &state
	} else {
		s.sessionState = nil
	}
}

// History returns a copy of the turn log, oldest first.
func (s *Store) History() []chatproto.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chatproto.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of completed turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// SessionState returns the continuation token from the most recent turn,
// or nil on a fresh conversation.
func (s *Store) SessionState() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionState == nil {
		return nil
	}
	state := *s.sessionState
	return &state
}

// Generation returns the current conversation generation. Capture it
// before starting a request and commit with AppendIf.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Clear discards all turns and the continuation token and advances the
// generation, invalidating any in-flight request's eventual commit. Safe
// to call while a request is mid-flight.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.sessionState = nil
	s.generation++
}
