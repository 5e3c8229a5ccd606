// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chatproto defines the shared data model and wire types for the
// FlavorGenius chat protocol.
//
// This package is the single source of truth for the shapes exchanged with
// the backend: messages, retrieved menu items, reasoning thoughts, and the
// request/response envelopes for both the single-shot and streaming
// endpoints. It contains no I/O and no mutable state.
//
// Single Responsibility:
//
//	Types and pure construction only. Stream decoding lives in
//	pkg/chatstream; transport lives in pkg/chatsession.
package chatproto

// RetrievalMode selects how the backend retrieves candidate menu items.
//
// The wire values are fixed by the backend contract: "rag" combines vector
// search with generation, "vector" is similarity search only, and "keyword"
// is plain text search.
type RetrievalMode string

const (
	RetrievalHybrid  RetrievalMode = "rag"
	RetrievalVectors RetrievalMode = "vector"
	RetrievalText    RetrievalMode = "keyword"
)

// Message is one chat message with its speaker role.
type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// DataPoint describes one retrieved candidate menu item.
//
// Order within a slice of DataPoints is significant: the backend returns
// items ranked by relevance and the client must preserve that ranking.
type DataPoint struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	Collection  string `json:"collection"`
}

// Thought is one step of the backend's reasoning trace, in chronological
// order.
type Thought struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Context carries the retrieval side of a response: ranked menu items and
// the reasoning trace that produced them.
type Context struct {
	DataPoints []DataPoint `json:"data_points"`
	Thoughts   []Thought   `json:"thoughts"`
}

// Clone returns a deep copy of the context. The slices of a finalized
// Response must never alias a caller's working buffers.
func (c Context) Clone() Context {
	out := Context{}
	if c.DataPoints != nil {
		out.DataPoints = make([]DataPoint, len(c.DataPoints))
		copy(out.DataPoints, c.DataPoints)
	}
	if c.Thoughts != nil {
		out.Thoughts = make([]Thought, len(c.Thoughts))
		copy(out.Thoughts, c.Thoughts)
	}
	return out
}

// Response is one complete answer from the backend.
//
// During streaming a working Response is assembled by the accumulator in
// pkg/chatstream; the values stored here are always finalized and
// immutable. SessionState is the opaque continuation token the backend
// issued for this turn, nil when the backend did not issue one.
type Response struct {
	Message      Message `json:"message"`
	Context      Context `json:"context"`
	SessionState *string `json:"session_state"`
}

// Clone returns a deep copy of the response.
func (r Response) Clone() Response {
	out := Response{
		Message: r.Message,
		Context: r.Context.Clone(),
	}
	if r.SessionState != nil {
		state := *r.SessionState
		out.SessionState = &state
	}
	return out
}

// Turn pairs one user question with its finalized response.
//
// Turns are immutable once created. They are created only after a request
// fully completes and are destroyed only by clearing the conversation.
type Turn struct {
	Question string
	Response Response
}
