// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
	"github.com/flavorgenius/flavorchat/pkg/chatsession"
	"github.com/flavorgenius/flavorchat/pkg/conversation"
	"github.com/flavorgenius/flavorchat/pkg/logging"
	"github.com/flavorgenius/flavorchat/pkg/ux"
)

// chatApp bundles the wired components for one CLI invocation.
type chatApp struct {
	controller *chatsession.Controller
	ui         ux.ChatUI
	logger     *logging.Logger
}

// buildApp loads config, applies flag overrides, and wires the session
// stack.
func buildApp(cmd *cobra.Command) (*chatApp, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if backendURL != "" {
		config.BackendURL = backendURL
	}
	if cmd.Flags().Changed("retrieval-mode") {
		config.Retrieval.Mode = retrievalMode
	}
	if cmd.Flags().Changed("top") {
		config.Retrieval.Top = topK
	}
	if cmd.Flags().Changed("temperature") {
		config.Retrieval.Temperature = temperature
	}
	if cmd.Flags().Changed("score-threshold") {
		config.Retrieval.ScoreThreshold = scoreThreshold
	}
	if noStream {
		config.Stream = false
	}

	logger := logging.New(logging.Config{
		Level:   parseLogLevel(config.LogLevel),
		LogDir:  config.LogDir,
		Service: "flavorchat",
		Quiet:   ux.GetPersonality().Level != ux.PersonalityMachine,
	})

	client := chatsession.NewAPIClient(config.BackendURL)
	store := conversation.NewStore()
	controller, err := chatsession.NewController(client, store, chatsession.Config{
		Overrides: config.Overrides(),
		Stream:    config.Stream,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &chatApp{
		controller: controller,
		ui:         ux.NewChatUI(),
		logger:     logger,
	}, nil
}

func parseLogLevel(s string) logging.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// runAskCommand handles `flavorchat ask [question]`.
func runAskCommand(cmd *cobra.Command, args []string) {
	app, err := buildApp(cmd)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer app.logger.Close()

	ctx, cancel := signalContext()
	defer cancel()

	question := strings.Join(args, " ")
	if !app.runExchange(ctx, question) {
		os.Exit(1)
	}
}

// runChatCommand handles `flavorchat chat`, the interactive loop.
func runChatCommand(cmd *cobra.Command, args []string) {
	app, err := buildApp(cmd)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	defer app.logger.Close()

	ctx, cancel := signalContext()
	defer cancel()

	app.ui.Header()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if ux.IsInteractive() {
			fmt.Print(ux.Styles.Subtitle.Render("you") + " ")
		}
		if !scanner.Scan() {
			return
		}
		question := strings.TrimSpace(scanner.Text())
		switch {
		case question == "":
			continue
		case question == "exit" || question == "quit":
			return
		case question == "clear":
			app.controller.ClearConversation()
			ux.Success("Conversation cleared.")
			continue
		}

		app.runExchange(ctx, question)
		if ctx.Err() != nil {
			return
		}
	}
}

// runExchange runs one question through the controller and renders the
// outcome. Returns false when the exchange failed.
func (app *chatApp) runExchange(ctx context.Context, question string) bool {
	spinner := ux.NewSpinner("Checking the menu...")
	spinnerActive := ux.ShouldShowProgress()
	if spinnerActive {
		spinner.Start()
	}
	stopSpinner := func() {
		if spinnerActive {
			spinner.Stop()
			spinnerActive = false
		}
	}
	defer stopSpinner()

	result, err := app.controller.Ask(ctx, question, chatsession.Callbacks{
		OnDelta: func(cumulative string) {
			stopSpinner()
			app.ui.Partial(cumulative)
		},
		OnDataPoints: func(points []chatproto.DataPoint) {
			if spinnerActive {
				spinner.UpdateMessage(fmt.Sprintf("Found %d menu items, writing an answer...", len(points)))
			}
		},
	})
	stopSpinner()

	if err != nil {
		app.ui.Failure(err)
		return false
	}
	if result.PurchaseIntent {
		app.ui.PurchaseIntent()
		return true
	}
	if result.Discarded {
		return true
	}

	app.ui.AnswerDone(result.Response)
	app.ui.DataPoints(result.Response.Context.DataPoints)
	app.ui.Thoughts(result.Response.Context.Thoughts)
	return true
}

// signalContext cancels on Ctrl-C so an in-flight stream stops at the
// next suspension point.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
