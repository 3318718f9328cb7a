/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// ssePrefix marks the payload lines of a server-sent-event stream.
const ssePrefix = "data: "

// SSE is the streaming transport: each call POSTs its envelope and reads a
// server-sent-event stream back. The stream is always drained fully; the
// last data frame carrying a result or error member is authoritative, and
// earlier frames are protocol chatter kept only for diagnostics.
type SSE struct {
	config HTTPConfig
	log    logr.Logger

	mu     sync.Mutex
	client *http.Client
	nextID atomic.Int64
}

// NewSSE creates a server-sent-events transport.
func NewSSE(config HTTPConfig, log logr.Logger) *SSE {
	config.applyDefaults()
	return &SSE{
		config: config,
		log:    log.WithName("sse").WithValues("baseURL", config.BaseURL),
	}
}

// Connect opens the pooled client and probes the server health endpoint.
func (t *SSE) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return nil
	}

	client := &http.Client{Timeout: t.config.Timeout}
	if err := probeHealth(ctx, client, t.config); err != nil {
		return err
	}

	t.client = client
	t.log.Info("connected to operation server")
	return nil
}

// Disconnect closes the pooled client. Idempotent.
func (t *SSE) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		t.client.CloseIdleConnections()
		t.client = nil
		t.log.Info("disconnected from operation server")
	}
	return nil
}

// ListOperations fetches descriptors via POST /sse/operations/list.
func (t *SSE) ListOperations(ctx context.Context) ([]protocol.OperationDescriptor, error) {
	result, err := t.stream(ctx, protocol.PathSSEList, protocol.MethodListOperations, struct{}{})
	if err != nil {
		return nil, err
	}
	return decodeOperations(result)
}

// Invoke calls an operation via POST /sse/operations/call.
func (t *SSE) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	params := protocol.CallParams{Name: name, Arguments: args}
	result, err := t.stream(ctx, protocol.PathSSECall, protocol.MethodCallOperation, params)
	if err != nil {
		return nil, err
	}
	return decodeResult(result)
}

func (t *SSE) stream(ctx context.Context, path, method string, params any) (json.RawMessage, error) {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if client == nil {
		return nil, ErrNotConnected
	}

	id := t.nextID.Add(1)
	body, err := marshalRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	t.log.V(1).Info("sending request", "id", id, "method", method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	setAuth(req, t.config.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	// Drain the whole stream; the last result/error-bearing frame wins.
	var final *protocol.Response
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		var frame protocol.Response
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, ssePrefix)), &frame); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("malformed event payload: %v", err)}
		}
		if frame.Result == nil && frame.Error == nil {
			t.log.V(1).Info("ignoring intermediate event", "id", id)
			continue
		}
		final = &frame
	}
	if err := scanner.Err(); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("failed to read event stream: %v", err)}
	}
	if final == nil {
		return nil, &ProtocolError{Reason: "event stream ended without a result"}
	}

	return splitEnvelope(final)
}
