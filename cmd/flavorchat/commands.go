// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/flavorgenius/flavorchat/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath       string
	backendURL       string
	retrievalMode    string
	topK             int
	temperature      float64
	scoreThreshold   float64
	noStream         bool
	showThoughts     bool
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "flavorchat",
		Short: "A cli to chat with the FlavorGenius menu assistant",
		Long: `FlavorChat is a terminal client for the FlavorGenius RAG backend.
				Ask about the menu in plain language; answers are grounded in
				retrieved menu items and stream in as they are generated.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
			if showThoughts {
				p := ux.GetPersonality()
				p.ShowThoughts = true
				ux.SetPersonality(p)
			}
		},
	}

	// --- Ask ---
	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks the menu assistant a single question",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand, // Defined in chat_runner.go
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session",
		Run:   runChatCommand, // Defined in chat_runner.go
	}
)

// init runs when the Go program starts
func init() {
	// Global UX personality flag
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich), standard, minimal, or machine (scripting)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend root URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&retrievalMode, "retrieval-mode", "",
		"Retrieval strategy: rag (hybrid), vector, or keyword")
	rootCmd.PersistentFlags().IntVar(&topK, "top", 0, "Number of menu items to retrieve")
	rootCmd.PersistentFlags().Float64Var(&temperature, "temperature", -1, "Generation temperature [0,1]")
	rootCmd.PersistentFlags().Float64Var(&scoreThreshold, "score-threshold", -1, "Minimum similarity score [0,1]")
	rootCmd.PersistentFlags().BoolVar(&noStream, "no-stream", false, "Use the single-shot endpoint instead of streaming")
	rootCmd.PersistentFlags().BoolVar(&showThoughts, "thoughts", false, "Show the backend's reasoning steps after each answer")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
}
