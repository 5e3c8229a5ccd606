// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "http://localhost:50505", config.BackendURL)
	assert.True(t, config.Stream)
	assert.NoError(t, config.Overrides().Validate())
	assert.Equal(t, chatproto.DefaultOverrides(), config.Overrides())
}

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `backend_url: http://menu.internal:8080
stream: false
retrieval:
  mode: vector
  top: 5
  temperature: 0.7
  score_threshold: 0.2
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://menu.internal:8080", config.BackendURL)
	assert.False(t, config.Stream)
	assert.Equal(t, chatproto.RetrievalVectors, config.Overrides().RetrievalMode)
	assert.Equal(t, 5, config.Overrides().Top)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: http://other\n"), 0600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://other", config.BackendURL)
	// Untouched fields keep their defaults.
	assert.Equal(t, chatproto.DefaultOverrides().Top, config.Overrides().Top)
}

func TestLoadConfigBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream: [not a bool"), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"other": "INFO",
	}
	for input, want := range cases {
		if got := parseLogLevel(input).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", input, got, want)
		}
	}
}
