// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
)

// ChatUI renders the chat exchange to the terminal.
//
// # Description
//
// ChatUI is the presentation edge of the CLI. It receives cumulative
// partial text from the pacing layer and prints only the unseen suffix,
// so the answer appears to type itself regardless of how the backend
// batched its deltas. Retrieved menu items and reasoning steps render
// after the answer completes.
//
// The interface exists so the chat loop can be tested against a buffer
// instead of a live terminal.
type ChatUI interface {
	// Header prints the session banner.
	Header()

	// Question echoes the user's question in interactive transcripts.
	Question(text string)

	// Partial prints the unseen suffix of the cumulative partial text.
	Partial(cumulative string)

	// AnswerDone terminates the streamed answer line. When no partial
	// text was shown (single-shot mode), the full answer prints here.
	AnswerDone(response chatproto.Response)

	// DataPoints renders retrieved menu items.
	DataPoints(points []chatproto.DataPoint)

	// Thoughts renders the backend's reasoning steps.
	Thoughts(thoughts []chatproto.Thought)

	// PurchaseIntent renders the purchase interception message.
	PurchaseIntent()

	// Failure renders an error with a retry hint; the conversation
	// itself is still usable.
	Failure(err error)
}

// terminalUI implements ChatUI for an io.Writer.
type terminalUI struct {
	w       io.Writer
	printed int
}

// NewChatUI creates a ChatUI writing to stdout.
func NewChatUI() ChatUI {
	return NewChatUIWithWriter(os.Stdout)
}

// NewChatUIWithWriter creates a ChatUI writing to w. Used by tests.
func NewChatUIWithWriter(w io.Writer) ChatUI {
	return &terminalUI{w: w}
}

func (t *terminalUI) Header() {
	switch GetPersonality().Level {
	case PersonalityMachine:
		return
	case PersonalityFull:
		fmt.Fprintln(t.w, Styles.Box.Render(Styles.Title.Render("FlavorGenius")+"\n"+
			Styles.Muted.Render("Ask about the menu. Type 'clear' to start over, 'exit' to leave.")))
	default:
		fmt.Fprintln(t.w, Styles.Title.Render("FlavorGenius"))
	}
}

func (t *terminalUI) Question(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Fprintf(t.w, "%s %s\n", Styles.Subtitle.Render("you"), text)
}

func (t *terminalUI) Partial(cumulative string) {
	if len(cumulative) <= t.printed {
		return
	}
	fmt.Fprint(t.w, cumulative[t.printed:])
	t.printed = len(cumulative)
}

func (t *terminalUI) AnswerDone(response chatproto.Response) {
	content := response.Message.Content
	if t.printed == 0 {
		fmt.Fprint(t.w, content)
		t.printed = len(content)
	} else if len(content) > t.printed {
		// The stream can finalize with text the pacer never surfaced.
		fmt.Fprint(t.w, content[t.printed:])
	}
	fmt.Fprintln(t.w)
	t.printed = 0
}

func (t *terminalUI) DataPoints(points []chatproto.DataPoint) {
	if len(points) == 0 {
		return
	}
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		for _, point := range points {
			fmt.Fprintf(t.w, "ITEM: %s | %s | %s\n", point.Name, point.Price, point.Category)
		}
		return
	}

	fmt.Fprintln(t.w, Styles.Subtitle.Render("From the menu:"))
	for _, point := range points {
		line := fmt.Sprintf("%s %s", IconBullet.Render(), Styles.Bold.Render(point.Name))
		if point.Price != "" {
			line += " " + Styles.Price.Render("$"+point.Price)
		}
		if point.Category != "" && p.Level != PersonalityMinimal {
			line += " " + Styles.Muted.Render("("+point.Category+")")
		}
		fmt.Fprintln(t.w, line)
		if point.Description != "" && p.Level == PersonalityFull {
			fmt.Fprintln(t.w, "  "+Styles.Muted.Render(point.Description))
		}
	}
}

func (t *terminalUI) Thoughts(thoughts []chatproto.Thought) {
	if len(thoughts) == 0 || !GetPersonality().ShowThoughts {
		return
	}
	if GetPersonality().Level == PersonalityMachine {
		for _, thought := range thoughts {
			fmt.Fprintf(t.w, "THOUGHT: %s\n", thought.Title)
		}
		return
	}
	fmt.Fprintln(t.w, Styles.Muted.Render("Reasoning:"))
	for _, thought := range thoughts {
		fmt.Fprintf(t.w, "  %s %s\n", IconArrow.Render(), Styles.Muted.Render(thought.Title))
		if desc := strings.TrimSpace(thought.Description); desc != "" {
			fmt.Fprintln(t.w, "    "+Styles.Muted.Render(desc))
		}
	}
}

func (t *terminalUI) PurchaseIntent() {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintln(t.w, "PURCHASE_INTENT")
		return
	}
	fmt.Fprintf(t.w, "%s %s\n", IconCart.Render(),
		"It sounds like you want to order. Ordering is handled at the counter for now.")
}

func (t *terminalUI) Failure(err error) {
	t.printed = 0
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(t.w, "ERROR: %v\n", err)
		return
	}
	fmt.Fprintln(t.w, Styles.ErrorBox.Render(
		Styles.Error.Render(err.Error())+"\n"+
			Styles.Muted.Render("Your conversation is intact. Ask again to retry.")))
}

var _ ChatUI = (*terminalUI)(nil)
