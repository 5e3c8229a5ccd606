// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
)

// Config is the CLI configuration, loaded from YAML and overridden by
// flags. Every field has a working default; a missing config file is not
// an error.
type Config struct {
	// BackendURL is the chat backend root, e.g. "http://localhost:50505".
	BackendURL string `yaml:"backend_url"`

	// Stream selects the streaming endpoint.
	Stream bool `yaml:"stream"`

	// Retrieval tunes how the backend grounds answers in the menu.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// LogDir enables JSON file logging when set.
	LogDir string `yaml:"log_dir"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

// RetrievalConfig mirrors the backend's retrieval overrides.
type RetrievalConfig struct {
	Mode           string  `yaml:"mode"`
	Top            int     `yaml:"top"`
	Temperature    float64 `yaml:"temperature"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// DefaultConfig returns a Config with working defaults for a local
// backend.
func DefaultConfig() Config {
	defaults := chatproto.DefaultOverrides()
	return Config{
		BackendURL: "http://localhost:50505",
		Stream:     true,
		Retrieval: RetrievalConfig{
			Mode:           string(defaults.RetrievalMode),
			Top:            defaults.Top,
			Temperature:    defaults.Temperature,
			ScoreThreshold: defaults.ScoreThreshold,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads YAML config from path. When path is empty the default
// locations are tried in order; a missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	candidates := []string{path}
	if path == "" {
		home, _ := os.UserHomeDir()
		candidates = []string{
			"flavorchat.yaml",
			filepath.Join(home, ".flavorchat", "config.yaml"),
		}
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		data, err := os.ReadFile(candidate)
		if err != nil {
			if os.IsNotExist(err) && path == "" {
				continue
			}
			if path == "" {
				continue
			}
			return config, fmt.Errorf("read config %s: %w", candidate, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parse config %s: %w", candidate, err)
		}
		return config, nil
	}
	return config, nil
}

// Overrides converts the retrieval section to wire overrides.
func (c Config) Overrides() chatproto.Overrides {
	return chatproto.Overrides{
		RetrievalMode:  chatproto.RetrievalMode(c.Retrieval.Mode),
		Top:            c.Retrieval.Top,
		Temperature:    c.Retrieval.Temperature,
		ScoreThreshold: c.Retrieval.ScoreThreshold,
	}
}
