// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chatstream

import (
	"errors"
	"testing"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
)

func points(names ...string) *[]chatproto.DataPoint {
	out := make([]chatproto.DataPoint, len(names))
	for i, name := range names {
		out[i] = chatproto.DataPoint{Name: name}
	}
	return &out
}

func thoughts(titles ...string) *[]chatproto.Thought {
	out := make([]chatproto.Thought, len(titles))
	for i, title := range titles {
		out[i] = chatproto.Thought{Title: title}
	}
	return &out
}

func TestAccumulatorLifecycle(t *testing.T) {
	acc := NewAccumulator()
	if acc.State() != StateEmpty {
		t.Fatalf("new accumulator should be empty, got %s", acc.State())
	}

	if err := acc.ApplyContentDelta("hello", ""); err != nil {
		t.Fatalf("ApplyContentDelta: %v", err)
	}
	if acc.State() != StateAccumulating {
		t.Fatalf("expected accumulating, got %s", acc.State())
	}

	response, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if acc.State() != StateFinalized {
		t.Fatalf("expected finalized, got %s", acc.State())
	}
	if response.Message.Content != "hello" {
		t.Errorf("unexpected content %q", response.Message.Content)
	}
	if response.Message.Role != "assistant" {
		t.Errorf("role should default to assistant, got %q", response.Message.Role)
	}
}

func TestAccumulatorRejectsMergeAfterTerminal(t *testing.T) {
	acc := NewAccumulator()
	if _, err := acc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if err := acc.ApplyContentDelta("late", ""); !errors.Is(err, ErrTerminalState) {
		t.Errorf("expected ErrTerminalState after finalize, got %v", err)
	}
	if err := acc.ApplyContext(&ContextFragment{DataPoints: points("x")}); !errors.Is(err, ErrTerminalState) {
		t.Errorf("expected ErrTerminalState after finalize, got %v", err)
	}
	if err := acc.Fail("late failure"); !errors.Is(err, ErrTerminalState) {
		t.Errorf("expected ErrTerminalState after finalize, got %v", err)
	}

	failed := NewAccumulator()
	if err := failed.Fail("backend error"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := failed.ApplyContentDelta("late", ""); !errors.Is(err, ErrTerminalState) {
		t.Errorf("expected ErrTerminalState after fail, got %v", err)
	}
	if _, err := failed.Finalize(); !errors.Is(err, ErrTerminalState) {
		t.Errorf("finalize after fail should error, got %v", err)
	}
}

func TestAccumulatorFinalizeIdempotent(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.ApplyContentDelta("answer", ""); err != nil {
		t.Fatalf("ApplyContentDelta: %v", err)
	}

	first, err := acc.Finalize()
	if err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	second, err := acc.Finalize()
	if err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if first.Message.Content != second.Message.Content {
		t.Error("repeated finalize must return the same snapshot")
	}
}

func TestAccumulatorFinalizeEmpty(t *testing.T) {
	acc := NewAccumulator()
	response, err := acc.Finalize()
	if err != nil {
		t.Fatalf("finalizing an empty accumulator is legal: %v", err)
	}
	if response.Message.Content != "" {
		t.Errorf("expected empty content, got %q", response.Message.Content)
	}
}

func TestAccumulatorContextLatestWins(t *testing.T) {
	acc := NewAccumulator()

	if err := acc.ApplyContext(&ContextFragment{
		DataPoints: points("Tofu Bowl", "Spring Rolls"),
		Thoughts:   thoughts("Searched menu"),
	}); err != nil {
		t.Fatalf("ApplyContext: %v", err)
	}

	// Second fragment replaces data_points wholesale, leaves thoughts.
	if err := acc.ApplyContext(&ContextFragment{DataPoints: points("Pad Thai")}); err != nil {
		t.Fatalf("ApplyContext: %v", err)
	}

	response, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(response.Context.DataPoints) != 1 || response.Context.DataPoints[0].Name != "Pad Thai" {
		t.Errorf("data points must be replaced, not appended: %+v", response.Context.DataPoints)
	}
	if len(response.Context.Thoughts) != 1 || response.Context.Thoughts[0].Title != "Searched menu" {
		t.Errorf("absent key must leave merged thoughts untouched: %+v", response.Context.Thoughts)
	}
}

func TestAccumulatorContextEmptySliceReplaces(t *testing.T) {
	acc := NewAccumulator()

	if err := acc.ApplyContext(&ContextFragment{DataPoints: points("Tofu Bowl")}); err != nil {
		t.Fatalf("ApplyContext: %v", err)
	}
	// Present-but-empty replaces with empty; distinct from absent.
	empty := []chatproto.DataPoint{}
	if err := acc.ApplyContext(&ContextFragment{DataPoints: &empty}); err != nil {
		t.Fatalf("ApplyContext: %v", err)
	}

	response, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(response.Context.DataPoints) != 0 {
		t.Errorf("present-but-empty key must clear the merged value: %+v", response.Context.DataPoints)
	}
}

func TestAccumulatorContextMergeIdempotent(t *testing.T) {
	fragment := &ContextFragment{
		DataPoints: points("Tofu Bowl"),
		Thoughts:   thoughts("Searched menu"),
	}

	once := NewAccumulator()
	if err := once.ApplyContext(fragment); err != nil {
		t.Fatal(err)
	}
	twice := NewAccumulator()
	if err := twice.ApplyContext(fragment); err != nil {
		t.Fatal(err)
	}
	if err := twice.ApplyContext(fragment); err != nil {
		t.Fatal(err)
	}

	a, _ := once.Finalize()
	b, _ := twice.Finalize()
	if len(a.Context.DataPoints) != len(b.Context.DataPoints) {
		t.Error("applying the same fragment twice must equal applying it once")
	}
	if len(a.Context.Thoughts) != len(b.Context.Thoughts) {
		t.Error("applying the same fragment twice must equal applying it once")
	}
}

func TestAccumulatorContentAppendsInOrder(t *testing.T) {
	acc := NewAccumulator()
	for _, chunk := range []string{"The ", "Tofu ", "Bowl ", "is vegan."} {
		if err := acc.ApplyContentDelta(chunk, ""); err != nil {
			t.Fatalf("ApplyContentDelta: %v", err)
		}
	}
	if got := acc.Content(); got != "The Tofu Bowl is vegan." {
		t.Errorf("content must concatenate in arrival order, got %q", got)
	}
}

func TestAccumulatorRoleLastWriteWins(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.ApplyContentDelta("a", "assistant"); err != nil {
		t.Fatal(err)
	}
	if err := acc.ApplyContentDelta("b", ""); err != nil {
		t.Fatal(err)
	}
	if err := acc.ApplyContentDelta("c", "narrator"); err != nil {
		t.Fatal(err)
	}

	response, err := acc.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if response.Message.Role != "narrator" {
		t.Errorf("role must be last-write-wins, got %q", response.Message.Role)
	}
}

func TestAccumulatorFailKeepsPartialContent(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.ApplyContentDelta("partial answer", ""); err != nil {
		t.Fatal(err)
	}
	if err := acc.Fail("model overloaded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	if acc.State() != StateFailed {
		t.Fatalf("expected failed, got %s", acc.State())
	}
	if acc.Failure() != "model overloaded" {
		t.Errorf("failure message must be verbatim, got %q", acc.Failure())
	}
	// Partial text stays readable for transitional display.
	if acc.Content() != "partial answer" {
		t.Errorf("partial content should survive failure, got %q", acc.Content())
	}
	if _, err := acc.Snapshot(); !errors.Is(err, ErrNotFinalized) {
		t.Errorf("snapshot after failure should error, got %v", err)
	}
}

func TestAccumulatorSessionStateCaptured(t *testing.T) {
	acc := NewAccumulator()
	token := "sess-7"
	if err := acc.Apply(Event{Type: EventContentDelta, Content: "hi", SessionState: &token}); err != nil {
		t.Fatal(err)
	}
	response, err := acc.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if response.SessionState == nil || *response.SessionState != "sess-7" {
		t.Error("session state from an event must reach the finalized response")
	}
}

// The menu-question scenario: interleaved context fragments and deltas,
// including a context update mid-answer, must merge exactly as the
// single-shot endpoint would have responded.
func TestAccumulatorInterleavedScenario(t *testing.T) {
	acc := NewAccumulator()

	steps := []Event{
		{Type: EventContextFragment, Context: &ContextFragment{
			DataPoints: points("Tofu Bowl", "Garden Salad"),
			Thoughts:   thoughts("Searched menu for vegan dishes"),
		}},
		{Type: EventContentDelta, Content: "The "},
		{Type: EventContentDelta, Content: "Tofu Bowl "},
		{Type: EventContextFragment, Context: &ContextFragment{
			DataPoints: points("Tofu Bowl"),
		}},
		{Type: EventContentDelta, Content: "is our most popular vegan dish."},
		{Type: EventFinalize},
	}
	for i, ev := range steps {
		if err := acc.Apply(ev); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	response, err := acc.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if response.Message.Content != "The Tofu Bowl is our most popular vegan dish." {
		t.Errorf("unexpected content %q", response.Message.Content)
	}
	if len(response.Context.DataPoints) != 1 || response.Context.DataPoints[0].Name != "Tofu Bowl" {
		t.Errorf("later fragment must replace data points: %+v", response.Context.DataPoints)
	}
	if len(response.Context.Thoughts) != 1 {
		t.Errorf("thoughts from the first fragment must survive: %+v", response.Context.Thoughts)
	}
}

// Streaming a complete record and decoding the same record single-shot
// must produce identical finalized responses.
func TestAccumulatorSingleShotEquivalence(t *testing.T) {
	record := []byte(`{
		"message": {"content": "Try the Tofu Bowl.", "role": "assistant"},
		"context": {"data_points": [{"name": "Tofu Bowl", "price": "11.50"}], "thoughts": [{"title": "Searched menu"}]},
		"session_state": "sess-1"
	}`)
	decoder := NewRecordDecoder()

	run := func() chatproto.Response {
		events, err := decoder.Decode(record)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		acc := NewAccumulator()
		for _, ev := range events {
			if err := acc.Apply(ev); err != nil {
				t.Fatalf("Apply: %v", err)
			}
		}
		response, err := acc.Finalize()
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		return response
	}

	a, b := run(), run()
	if a.Message != b.Message {
		t.Errorf("messages diverge: %+v vs %+v", a.Message, b.Message)
	}
	if len(a.Context.DataPoints) != len(b.Context.DataPoints) {
		t.Error("data points diverge between runs")
	}
	if *a.SessionState != *b.SessionState {
		t.Error("session state diverges between runs")
	}
}

// The finalized snapshot must not alias the fragment's backing arrays.
func TestAccumulatorSnapshotDoesNotAlias(t *testing.T) {
	source := []chatproto.DataPoint{{Name: "Tofu Bowl"}}
	acc := NewAccumulator()
	if err := acc.ApplyContext(&ContextFragment{DataPoints: &source}); err != nil {
		t.Fatal(err)
	}
	response, err := acc.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	source[0].Name = "mutated"
	if response.Context.DataPoints[0].Name != "Tofu Bowl" {
		t.Error("finalized response must not alias caller-owned slices")
	}
}

func TestAccumulatorUnknownEventType(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.Apply(Event{Type: EventType("mystery")}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
