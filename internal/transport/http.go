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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// HTTPConfig contains configuration shared by the HTTP-based transports.
type HTTPConfig struct {
	// BaseURL is the server base URL, e.g. http://localhost:8000.
	BaseURL string

	// APIKey, when set, is sent as a bearer token on every request.
	APIKey string

	// Timeout bounds each request including response body reads.
	// Defaults to 30 seconds.
	Timeout time.Duration
}

func (c *HTTPConfig) applyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// HTTP is the plain request/response transport: one POST per call, one JSON
// envelope back.
type HTTP struct {
	config HTTPConfig
	log    logr.Logger

	mu     sync.Mutex
	client *http.Client
	nextID atomic.Int64
}

// NewHTTP creates a plain HTTP transport.
func NewHTTP(config HTTPConfig, log logr.Logger) *HTTP {
	config.applyDefaults()
	return &HTTP{
		config: config,
		log:    log.WithName("http").WithValues("baseURL", config.BaseURL),
	}
}

// Connect opens the pooled client and probes the server health endpoint.
// Anything but HTTP 200 is a connect failure.
func (t *HTTP) Connect(ctx context.Context) error {
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
func (t *HTTP) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		t.client.CloseIdleConnections()
		t.client = nil
		t.log.Info("disconnected from operation server")
	}
	return nil
}

// ListOperations fetches descriptors via POST /api/operations/list.
func (t *HTTP) ListOperations(ctx context.Context) ([]protocol.OperationDescriptor, error) {
	result, err := t.post(ctx, protocol.PathAPIList, protocol.MethodListOperations, struct{}{})
	if err != nil {
		return nil, err
	}
	return decodeOperations(result)
}

// Invoke calls an operation via POST /api/operations/call.
func (t *HTTP) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	params := protocol.CallParams{Name: name, Arguments: args}
	result, err := t.post(ctx, protocol.PathAPICall, protocol.MethodCallOperation, params)
	if err != nil {
		return nil, err
	}
	return decodeResult(result)
}

func (t *HTTP) post(ctx context.Context, path, method string, params any) (json.RawMessage, error) {
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
	setAuth(req, t.config.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("failed to read response: %v", err)}
	}

	// A non-2xx status is a carrier-level failure, distinct from an error
	// member inside a 2xx envelope.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, firstBytes(respBody, 200)),
		}
	}

	return decodeEnvelope(respBody)
}

// marshalRequest builds one request envelope.
func marshalRequest(id int64, method string, params any) ([]byte, error) {
	body, err := json.Marshal(protocol.Request{
		JSONRPC: protocol.Version,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// probeHealth issues the connect-time GET /health check.
func probeHealth(ctx context.Context, client *http.Client, config HTTPConfig) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.BaseURL+protocol.PathHealth, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	setAuth(req, config.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func setAuth(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

func firstBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
