// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chatproto

import (
	"github.com/go-playground/validator/v10"
)

// Overrides holds the user-tunable retrieval parameters for one request.
//
// Overrides are immutable per request: the builder embeds them verbatim
// and nothing downstream modifies them.
//
// # Fields
//
//   - RetrievalMode: Retrieval strategy ("rag", "vector", "keyword").
//   - Top: Number of menu items to retrieve. Must be >= 1.
//   - Temperature: Generation temperature in [0, 1].
//   - ScoreThreshold: Minimum similarity score in [0, 1].
type Overrides struct {
	RetrievalMode  RetrievalMode `json:"retrieval_mode" validate:"oneof=rag vector keyword"`
	Top            int           `json:"top" validate:"gte=1"`
	Temperature    float64       `json:"temperature" validate:"gte=0,lte=1"`
	ScoreThreshold float64       `json:"score_threshold" validate:"gte=0,lte=1"`
}

// validate is shared by all Overrides checks. validator instances cache
// struct metadata, so a single instance is the intended usage.
var validate = validator.New()

// Validate reports whether the overrides are within the ranges the backend
// accepts. Call this at the configuration boundary; BuildRequest itself
// never fails.
func (o Overrides) Validate() error {
	return validate.Struct(o)
}

// DefaultOverrides returns the backend's documented defaults.
func DefaultOverrides() Overrides {
	return Overrides{
		RetrievalMode:  RetrievalHybrid,
		Top:            3,
		Temperature:    0.3,
		ScoreThreshold: 0.5,
	}
}

// RequestContext wraps the overrides inside the request envelope, matching
// the backend's `context.overrides` nesting.
type RequestContext struct {
	Overrides Overrides `json:"overrides"`
}

// ChatRequest is the payload for POST /chat and POST /chat/stream.
type ChatRequest struct {
	Messages     []Message      `json:"messages"`
	Context      RequestContext `json:"context"`
	SessionState *string        `json:"session_state"`
}

// BuildRequest assembles the outgoing payload from conversation history,
// the new question, and the per-request overrides.
//
// # Description
//
// History is flattened oldest-first into alternating user/assistant
// messages, and the new question is appended as the final user message.
// Overrides are embedded verbatim. The continuation token is forwarded
// unchanged: nil on the first turn of a conversation, otherwise whatever
// the backend returned on the previous turn.
//
// BuildRequest is a pure function with no failure modes. It never aliases
// the history slice it was given.
//
// # Inputs
//
//   - history: Completed turns, oldest first.
//   - question: The new user question. Assumed non-empty.
//   - overrides: Retrieval parameters for this request.
//   - sessionState: Continuation token from the previous turn, or nil.
//
// # Outputs
//
//   - ChatRequest: Ready to marshal and send.
func BuildRequest(history []Turn, question string, overrides Overrides, sessionState *string) ChatRequest {
	messages := make([]Message, 0, len(history)*2+1)
	for _, turn := range history {
		messages = append(messages, Message{Content: turn.Question, Role: "user"})
		messages = append(messages, Message{Content: turn.Response.Message.Content, Role: "assistant"})
	}
	messages = append(messages, Message{Content: question, Role: "user"})

	return ChatRequest{
		Messages:     messages,
		Context:      RequestContext{Overrides: overrides},
		SessionState: sessionState,
	}
}
