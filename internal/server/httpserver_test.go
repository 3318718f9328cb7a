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

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

func testHTTPServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	s := NewHTTPServer(testDispatcher(t), HTTPServerConfig{APIKey: apiKey}, logr.Discard())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthRoute(t *testing.T) {
	srv := testHTTPServer(t, "")

	resp, err := http.Get(srv.URL + protocol.PathHealth)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPICallRoute(t *testing.T) {
	srv := testHTTPServer(t, "")

	body := `{"jsonrpc":"2.0","id":1,"method":"operations/call","params":{"name":"echo","arguments":{"value":"hi"}}}`
	resp, err := http.Post(srv.URL+protocol.PathAPICall, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded protocol.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, json.RawMessage(`"hi"`), decoded.Result)
}

func TestAPIListRoute(t *testing.T) {
	srv := testHTTPServer(t, "")

	body := `{"jsonrpc":"2.0","id":1,"method":"operations/list"}`
	resp, err := http.Post(srv.URL+protocol.PathAPIList, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var decoded protocol.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Nil(t, decoded.Error)

	var result protocol.ListResult
	require.NoError(t, json.Unmarshal(decoded.Result, &result))
	assert.Len(t, result.Operations, 2)
}

func TestAPIMethodNotAllowed(t *testing.T) {
	srv := testHTTPServer(t, "")

	resp, err := http.Get(srv.URL + protocol.PathAPICall)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBearerTokenEnforced(t *testing.T) {
	srv := testHTTPServer(t, "sekret")
	body := `{"jsonrpc":"2.0","id":1,"method":"operations/list"}`

	// Missing token on the operation routes.
	resp, err := http.Post(srv.URL+protocol.PathAPIList, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Health stays open.
	resp, err = http.Get(srv.URL + protocol.PathHealth)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Correct token is accepted.
	req, err := http.NewRequest(http.MethodPost, srv.URL+protocol.PathAPIList, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sekret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSSERouteFrames(t *testing.T) {
	srv := testHTTPServer(t, "")

	body := `{"jsonrpc":"2.0","id":3,"method":"operations/call","params":{"name":"echo","arguments":{"value":"streamed"}}}`
	resp, err := http.Post(srv.URL+protocol.PathSSECall, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var frames []string
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	require.GreaterOrEqual(t, len(frames), 2)

	// The last frame carries the authoritative response.
	var final protocol.Response
	require.NoError(t, json.Unmarshal([]byte(frames[len(frames)-1]), &final))
	assert.Equal(t, int64(3), final.ID)
	assert.Equal(t, json.RawMessage(`"streamed"`), final.Result)

	// Earlier frames are progress only.
	var progress map[string]any
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &progress))
	assert.Equal(t, "processing", progress["status"])
}

func TestMetricsRoute(t *testing.T) {
	srv := testHTTPServer(t, "")

	resp, err := http.Get(srv.URL + protocol.PathMetrics)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
