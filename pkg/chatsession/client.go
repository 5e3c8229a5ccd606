// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chatsession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
)

// =============================================================================
// HTTP Client Abstraction
// =============================================================================

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// defaultTimeout bounds the single-shot request. Streaming requests run
// without a client timeout; the caller's context bounds them instead.
const defaultTimeout = 120 * time.Second

// APIClient talks to the chat backend over HTTP.
//
// # Description
//
// APIClient owns the wire-level concerns of a chat exchange: request
// serialization, endpoint routing, status handling, and the mapping of
// HTTP failures onto the session error taxonomy. It returns raw bodies;
// decoding and merging belong to the chatstream package.
//
// # Fields
//
//   - baseURL: backend root, no trailing slash
//   - client: HTTP transport for single-shot requests
//   - streamClient: HTTP transport without a timeout for streaming
type APIClient struct {
	baseURL      string
	client       HTTPClient
	streamClient HTTPClient
}

// NewAPIClient creates a client for the backend at baseURL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
	}
}

// NewAPIClientWithClient creates a client with a custom HTTP client for
// both endpoints. Used by tests to inject mock transports.
func NewAPIClientWithClient(baseURL string, client HTTPClient) *APIClient {
	return &APIClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       client,
		streamClient: client,
	}
}

// Complete sends the request to the single-shot endpoint and returns the
// raw response body.
//
// # Outputs
//
//   - []byte: the response body on success
//   - error: *TransportError, *BackendError, or *EmptyBodyError
func (c *APIClient) Complete(ctx context.Context, request chatproto.ChatRequest) ([]byte, error) {
	resp, err := c.post(ctx, c.client, "/chat", request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &EmptyBodyError{}
	}
	return body, nil
}

// CompleteStream sends the request to the streaming endpoint and returns
// the response body as a stream. The caller must close it.
//
// Error statuses are fully read and mapped before returning, so a non-nil
// reader always carries a success response.
func (c *APIClient) CompleteStream(ctx context.Context, request chatproto.ChatRequest) (io.ReadCloser, error) {
	resp, err := c.post(ctx, c.streamClient, "/chat/stream", request)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, checkStatus(resp.StatusCode, body)
	}
	return resp.Body, nil
}

// post serializes the request and performs the HTTP exchange.
func (c *APIClient) post(ctx context.Context, client HTTPClient, path string, request chatproto.ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

// checkStatus maps an error status onto the taxonomy. A body carrying an
// in-band error field becomes a BackendError with the message verbatim;
// anything else is a TransportError with the status attached.
func checkStatus(statusCode int, body []byte) error {
	if statusCode <= 299 {
		return nil
	}
	var envelope struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return &BackendError{Message: *envelope.Error}
	}
	return &TransportError{
		StatusCode: statusCode,
		Err:        fmt.Errorf("backend returned %s", http.StatusText(statusCode)),
	}
}
