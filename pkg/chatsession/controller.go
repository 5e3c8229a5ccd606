// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chatsession orchestrates one question-answer exchange against
// the chat backend: intent interception, request construction, transport,
// stream merging, pacing, and the conditional commit into conversation
// history.
//
// # Architecture
//
// The controller composes the lower layers without reimplementing them:
//
//	┌──────────────────────────────────────────────────────┐
//	│                     Controller                       │
//	│  conversation.Detector   → purchase short-circuit    │
//	│  chatproto.BuildRequest  → wire request              │
//	│  APIClient               → HTTP transport            │
//	│  chatstream.Reader       → NDJSON framing/decoding   │
//	│  chatstream.Accumulator  → merge engine              │
//	│  chatstream.PacedEmitter → observer pacing           │
//	│  conversation.Store      → generation-checked commit │
//	└──────────────────────────────────────────────────────┘
//
// Streaming and single-shot requests run the response through the same
// decoder and accumulator, so both paths produce identical responses for
// the same logical answer.
package chatsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
	"github.com/flavorgenius/flavorchat/pkg/chatstream"
	"github.com/flavorgenius/flavorchat/pkg/conversation"
	"github.com/flavorgenius/flavorchat/pkg/logging"
)

// errConversationCleared aborts an in-flight stream when Clear has moved
// the conversation to a new generation. Internal only; callers observe it
// as a discarded result, never as an error.
var errConversationCleared = errors.New("conversation cleared mid-flight")

// Config configures a Controller.
type Config struct {
	// Overrides are the retrieval parameters sent with every request.
	Overrides chatproto.Overrides

	// Stream selects the streaming endpoint. When false the single-shot
	// endpoint is used and partial-text callbacks fire once, at the end.
	Stream bool

	// PacingInterval is the minimum delay between partial-text
	// notifications. Zero selects the default.
	PacingInterval time.Duration
}

// Callbacks are optional observer hooks invoked during an Ask. Any field
// may be nil. All callbacks fire on the Ask goroutine, strictly ordered.
type Callbacks struct {
	// OnDelta receives the cumulative partial text after each paced
	// update. The final invocation carries the complete text.
	OnDelta func(cumulative string)

	// OnDataPoints receives retrieved menu items as soon as a context
	// fragment carrying them is merged, before the answer completes.
	OnDataPoints func(points []chatproto.DataPoint)
}

// AskResult is the outcome of a completed Ask.
type AskResult struct {
	// Response is the finalized response. Zero-valued when
	// PurchaseIntent is set.
	Response chatproto.Response

	// PurchaseIntent is set when the question was intercepted by the
	// intent detector; no request was sent and no turn was recorded.
	PurchaseIntent bool

	// Discarded is set when the conversation was cleared while the
	// request was in flight. The response completed but was not
	// committed to history and must not be rendered as a turn.
	Discarded bool
}

// Controller runs question-answer exchanges for one conversation.
//
// # Description
//
// Ask is the single entry point. It enforces one request in flight at a
// time, intercepts purchase intent before any network activity, builds
// the request from conversation history, drives the transport and merge
// layers, and commits the finished turn only when the conversation was
// not cleared in the meantime.
//
// # Thread Safety
//
// Ask may be called from any goroutine but never concurrently with
// itself; overlapping calls fail fast with ErrRequestInFlight.
// ClearConversation is safe to call at any time, including while an Ask
// is in flight.
type Controller struct {
	client   *APIClient
	store    *conversation.Store
	detector conversation.Detector
	config   Config
	logger   *logging.Logger
	inFlight atomic.Bool
}

// NewController creates a controller with the default purchase-intent
// detector. The config's overrides are validated here so a bad retrieval
// mode fails at startup, not on the first question.
func NewController(client *APIClient, store *conversation.Store, config Config, logger *logging.Logger) (*Controller, error) {
	if err := config.Overrides.Validate(); err != nil {
		return nil, fmt.Errorf("invalid overrides: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		client:   client,
		store:    store,
		detector: conversation.NewPurchaseDetector(),
		config:   config,
		logger:   logger,
	}, nil
}

// NewControllerWithDetector creates a controller with a custom intent
// detector. Used by tests and by deployments that replace the naive
// pattern match with a classifier.
func NewControllerWithDetector(client *APIClient, store *conversation.Store, detector conversation.Detector, config Config, logger *logging.Logger) (*Controller, error) {
	controller, err := NewController(client, store, config, logger)
	if err != nil {
		return nil, err
	}
	controller.detector = detector
	return controller, nil
}

// Ask runs one full question-answer exchange.
//
// # Inputs
//
//   - ctx: cancels the exchange at any suspension point
//   - question: raw user text, passed to the backend verbatim
//   - callbacks: optional observer hooks, may be zero-valued
//
// # Outputs
//
//   - AskResult: the finalized response, or the purchase/discard outcome
//   - error: ErrRequestInFlight, *TransportError, *ProtocolError,
//     *BackendError, *EmptyBodyError, or a context error
//
// On any error the conversation history is untouched: a failed exchange
// never becomes a turn and the next request is built as if it never
// happened.
func (c *Controller) Ask(ctx context.Context, question string, callbacks Callbacks) (AskResult, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return AskResult{}, ErrRequestInFlight
	}
	defer c.inFlight.Store(false)

	requestID := uuid.New().String()
	log := c.logger.With("request_id", requestID)

	if c.detector.Detect(question) == conversation.IntentPurchase {
		log.Info("purchase intent detected, skipping backend")
		return AskResult{PurchaseIntent: true}, nil
	}

	// Capture the generation before the request so a Clear during the
	// exchange invalidates the commit.
	generation := c.store.Generation()
	request := chatproto.BuildRequest(c.store.History(), question, c.config.Overrides, c.store.SessionState())
	log.Info("sending question",
		"stream", c.config.Stream,
		"history_turns", c.store.Len(),
		"has_session_state", request.SessionState != nil,
	)

	var response chatproto.Response
	var err error
	if c.config.Stream {
		response, err = c.askStream(ctx, request, generation, callbacks)
	} else {
		response, err = c.askOnce(ctx, request, callbacks)
	}
	if errors.Is(err, errConversationCleared) {
		log.Info("conversation cleared mid-flight, result discarded")
		return AskResult{Discarded: true}, nil
	}
	if err != nil {
		log.Error("exchange failed", "error", err)
		return AskResult{}, err
	}

	if !c.store.AppendIf(generation, question, response) {
		log.Info("conversation cleared mid-flight, result discarded")
		return AskResult{Response: response, Discarded: true}, nil
	}
	log.Info("turn committed", "content_bytes", len(response.Message.Content), "data_points", len(response.Context.DataPoints))
	return AskResult{Response: response}, nil
}

// ClearConversation discards all history and invalidates any in-flight
// request's eventual commit.
func (c *Controller) ClearConversation() {
	c.store.Clear()
	c.logger.Info("conversation cleared")
}

// History returns a copy of the committed turns.
func (c *Controller) History() []chatproto.Turn {
	return c.store.History()
}

// askStream drives the streaming endpoint through the reader, merging
// events into an accumulator and pacing partial text to the observer.
func (c *Controller) askStream(ctx context.Context, request chatproto.ChatRequest, generation uint64, callbacks Callbacks) (chatproto.Response, error) {
	body, err := c.client.CompleteStream(ctx, request)
	if err != nil {
		return chatproto.Response{}, err
	}
	defer body.Close()

	accumulator := chatstream.NewAccumulator()
	emitter := chatstream.NewPacedEmitter(c.config.PacingInterval, chatstream.NotifyFunc(callbacks.OnDelta))
	reader := chatstream.NewNDJSONReader(chatstream.NewRecordDecoder())

	readErr := reader.Read(ctx, body, func(ev chatstream.Event) error {
		// A Clear during the stream makes the rest of the work moot.
		if c.store.Generation() != generation {
			return errConversationCleared
		}
		return c.applyEvent(ctx, accumulator, emitter, ev, callbacks)
	})
	if readErr != nil {
		return chatproto.Response{}, mapStreamError(readErr)
	}

	return finishAccumulator(accumulator)
}

// askOnce drives the single-shot endpoint. The body is decoded by the
// same record decoder and merged by the same accumulator as a stream, so
// the two endpoints cannot drift apart.
func (c *Controller) askOnce(ctx context.Context, request chatproto.ChatRequest, callbacks Callbacks) (chatproto.Response, error) {
	body, err := c.client.Complete(ctx, request)
	if err != nil {
		return chatproto.Response{}, err
	}

	events, err := chatstream.NewRecordDecoder().Decode(body)
	if err != nil {
		return chatproto.Response{}, &ProtocolError{Err: err}
	}
	if len(events) == 0 {
		return chatproto.Response{}, &ProtocolError{Err: errors.New("response body carried no recognizable record")}
	}

	accumulator := chatstream.NewAccumulator()
	emitter := chatstream.NewPacedEmitter(c.config.PacingInterval, chatstream.NotifyFunc(callbacks.OnDelta))
	for _, ev := range events {
		if err := c.applyEvent(ctx, accumulator, emitter, ev, callbacks); err != nil {
			return chatproto.Response{}, err
		}
	}
	return finishAccumulator(accumulator)
}

// applyEvent merges one event and fires the matching observer hooks.
func (c *Controller) applyEvent(ctx context.Context, accumulator *chatstream.Accumulator, emitter *chatstream.PacedEmitter, ev chatstream.Event, callbacks Callbacks) error {
	if err := accumulator.Apply(ev); err != nil {
		return err
	}
	switch ev.Type {
	case chatstream.EventContentDelta:
		return emitter.Emit(ctx, ev.Content)
	case chatstream.EventContextFragment:
		if callbacks.OnDataPoints != nil && ev.Context != nil && ev.Context.HasDataPoints() {
			points := make([]chatproto.DataPoint, len(*ev.Context.DataPoints))
			copy(points, *ev.Context.DataPoints)
			callbacks.OnDataPoints(points)
		}
	}
	return nil
}

// finishAccumulator resolves the accumulator's terminal state into a
// response or a taxonomy error.
func finishAccumulator(accumulator *chatstream.Accumulator) (chatproto.Response, error) {
	if accumulator.State() == chatstream.StateFailed {
		return chatproto.Response{}, &BackendError{Message: accumulator.Failure()}
	}
	response, err := accumulator.Finalize()
	if err != nil {
		return chatproto.Response{}, &ProtocolError{Err: err}
	}
	return response, nil
}

// mapStreamError translates reader failures into the session taxonomy.
// Context errors and the internal cleared sentinel pass through for the
// caller to handle.
func mapStreamError(err error) error {
	switch {
	case errors.Is(err, errConversationCleared),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, chatstream.ErrEmptyStream):
		return &EmptyBodyError{}
	case errors.Is(err, chatstream.ErrNoDecodableRecords):
		return &ProtocolError{Err: err}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &TransportError{Err: err}
	default:
		return &TransportError{Err: err}
	}
}
