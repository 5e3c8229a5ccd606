// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chatsession

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flavorgenius/flavorchat/pkg/chatproto"
)

// mockTransport implements HTTPClient with a function field.
type mockTransport struct {
	do func(req *http.Request) (*http.Response, error)
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	return m.do(req)
}

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testRequest() chatproto.ChatRequest {
	return chatproto.BuildRequest(nil, "any vegan dishes?", chatproto.DefaultOverrides(), nil)
}

func TestClientCompleteSuccess(t *testing.T) {
	var captured *http.Request
	transport := &mockTransport{do: func(req *http.Request) (*http.Response, error) {
		captured = req
		return httpResponse(200, `{"message": {"content": "hi"}}`), nil
	}}
	client := NewAPIClientWithClient("http://backend:50505/", transport)

	body, err := client.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Contains(t, string(body), "hi")

	require.NotNil(t, captured)
	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "http://backend:50505/chat", captured.URL.String())
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
}

func TestClientCompleteNetworkFailure(t *testing.T) {
	cause := errors.New("connection refused")
	transport := &mockTransport{do: func(*http.Request) (*http.Response, error) {
		return nil, cause
	}}
	client := NewAPIClientWithClient("http://backend", transport)

	_, err := client.Complete(context.Background(), testRequest())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, transportErr.Err, cause)
}

func TestClientCompleteErrorStatusWithErrorField(t *testing.T) {
	transport := &mockTransport{do: func(*http.Request) (*http.Response, error) {
		return httpResponse(500, `{"error": "vector index unavailable"}`), nil
	}}
	client := NewAPIClientWithClient("http://backend", transport)

	_, err := client.Complete(context.Background(), testRequest())
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "vector index unavailable", backendErr.Message)
}

func TestClientCompleteErrorStatusWithoutBody(t *testing.T) {
	transport := &mockTransport{do: func(*http.Request) (*http.Response, error) {
		return httpResponse(502, ""), nil
	}}
	client := NewAPIClientWithClient("http://backend", transport)

	_, err := client.Complete(context.Background(), testRequest())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 502, transportErr.StatusCode)
}

func TestClientCompleteEmptyBody(t *testing.T) {
	transport := &mockTransport{do: func(*http.Request) (*http.Response, error) {
		return httpResponse(200, "  \n"), nil
	}}
	client := NewAPIClientWithClient("http://backend", transport)

	_, err := client.Complete(context.Background(), testRequest())
	var emptyErr *EmptyBodyError
	assert.ErrorAs(t, err, &emptyErr)
}

func TestClientCompleteStreamSuccess(t *testing.T) {
	var captured *http.Request
	transport := &mockTransport{do: func(req *http.Request) (*http.Response, error) {
		captured = req
		return httpResponse(200, `{"delta": {"content": "hi"}}`+"\n"), nil
	}}
	client := NewAPIClientWithClient("http://backend", transport)

	body, err := client.CompleteStream(context.Background(), testRequest())
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "delta")
	assert.Equal(t, "http://backend/chat/stream", captured.URL.String())
}

func TestClientCompleteStreamErrorStatus(t *testing.T) {
	transport := &mockTransport{do: func(*http.Request) (*http.Response, error) {
		return httpResponse(429, `{"error": "rate limited"}`), nil
	}}
	client := NewAPIClientWithClient("http://backend", transport)

	_, err := client.CompleteStream(context.Background(), testRequest())
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "rate limited", backendErr.Message)
}

func TestClientStatusBoundary(t *testing.T) {
	// 299 is still a success by the backend contract; 300 is not.
	assert.NoError(t, checkStatus(299, nil))
	assert.Error(t, checkStatus(300, nil))
}
