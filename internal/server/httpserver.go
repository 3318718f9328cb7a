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
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// HTTPServerConfig configures the HTTP-facing carriers.
type HTTPServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string

	// APIKey, when set, requires a matching bearer token on the operation
	// routes. The health probe stays open.
	APIKey string

	// ReadTimeout and WriteTimeout bound request handling. Zero values
	// select 30s read and 120s write; SSE responses stay open while
	// operations run.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HTTPServer serves the plain-HTTP and SSE carriers plus the health and
// metrics routes.
type HTTPServer struct {
	dispatcher *Dispatcher
	config     HTTPServerConfig
	log        logr.Logger
}

// NewHTTPServer creates the HTTP-facing server.
func NewHTTPServer(d *Dispatcher, config HTTPServerConfig, log logr.Logger) *HTTPServer {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 120 * time.Second
	}
	return &HTTPServer{
		dispatcher: d,
		config:     config,
		log:        log.WithName("http"),
	}
}

// Handler builds the route mux. Exposed separately so tests can drive it
// without a listener.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.PathHealth, s.handleHealth)
	mux.Handle(protocol.PathMetrics, promhttp.Handler())
	mux.HandleFunc(protocol.PathAPIList, s.authorized(s.handleJSON))
	mux.HandleFunc(protocol.PathAPICall, s.authorized(s.handleJSON))
	mux.HandleFunc(protocol.PathSSEList, s.authorized(s.handleSSE))
	mux.HandleFunc(protocol.PathSSECall, s.authorized(s.handleSSE))
	return mux
}

// ListenAndServe runs the server until it fails.
func (s *HTTPServer) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info("listening", "addr", s.config.Addr)
	return srv.ListenAndServe()
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// authorized enforces the bearer token when one is configured.
func (s *HTTPServer) authorized(next http.HandlerFunc) http.HandlerFunc {
	if s.config.APIKey == "" {
		return next
	}
	expected := "Bearer " + s.config.APIKey
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			s.log.V(1).Info("rejected unauthorized request", "path", r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleJSON answers one request with a single JSON response body.
func (s *HTTPServer) handleJSON(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.dispatch(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error(err, "failed to write response", "path", r.URL.Path)
	}
}

// handleSSE answers one request as an event stream: an acknowledgement
// event first, then the result event. The last data frame carries the
// authoritative response.
func (s *HTTPServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || r.Method != http.MethodPost {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame := func(v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			s.log.Error(err, "failed to serialize event")
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	writeFrame(map[string]any{"status": "processing"})
	writeFrame(s.dispatcher.DispatchRaw(r.Context(), body))
}

// dispatch reads and dispatches the request body for the plain-HTTP
// carrier.
func (s *HTTPServer) dispatch(w http.ResponseWriter, r *http.Request) (protocol.Response, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return protocol.Response{}, false
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return protocol.Response{}, false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return protocol.Response{}, false
	}

	return s.dispatcher.DispatchRaw(r.Context(), body), true
}
