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

package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/virtualsre/virtualsre/internal/bridge"
	"github.com/virtualsre/virtualsre/internal/protocol"
)

const (
	openAIAPIURL       = "https://api.openai.com/v1/chat/completions"
	openAIDefaultModel = "gpt-4o-mini"
	openAITemperature  = 0.7
	contentTypeKey     = "Content-Type"
)

// OpenAIProvider binds the loop to the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// OpenAIOption configures the OpenAI provider.
type OpenAIOption func(*OpenAIProvider)

// WithModel sets the model to use.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.httpClient = client
	}
}

// WithBaseURL overrides the API endpoint, for gateways and tests.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.baseURL = url
	}
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:     apiKey,
		model:      openAIDefaultModel,
		httpClient: http.DefaultClient,
		baseURL:    openAIAPIURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name implements the Provider interface.
func (p *OpenAIProvider) Name() string { return "openai" }

// openAIRequest represents a request to the chat completions API.
type openAIRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIMessage     `json:"messages"`
	Temperature float64             `json:"temperature"`
	Tools       []bridge.OpenAITool `json:"tools,omitempty"`
	ToolChoice  string              `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// Decide implements the Provider interface.
func (p *OpenAIProvider) Decide(ctx context.Context, messages []Message, operations []protocol.OperationDescriptor) (*Decision, error) {
	reqBody := openAIRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: openAITemperature,
	}
	if len(operations) > 0 {
		reqBody.Tools = make([]bridge.OpenAITool, len(operations))
		for i, op := range operations {
			reqBody.Tools[i] = bridge.ToOpenAI(op)
		}
		reqBody.ToolChoice = "auto"
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(contentTypeKey, "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI response contained no choices")
	}

	choice := parsed.Choices[0].Message
	decision := &Decision{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		decision.Calls = append(decision.Calls, Call{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseArguments(tc.Function.Arguments),
		})
	}

	return decision, nil
}

// toOpenAIMessages converts loop messages to the wire format. Operation
// requests and results carry through as tool_calls and tool messages so
// the model can see its own prior requests.
func toOpenAIMessages(messages []Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		m := openAIMessage{Role: string(msg.Role), Content: msg.Content}
		for _, call := range msg.Calls {
			tc := openAIToolCall{ID: call.ID, Type: "function"}
			tc.Function.Name = call.Name
			tc.Function.Arguments = encodeArguments(call.Arguments)
			m.ToolCalls = append(m.ToolCalls, tc)
		}
		if msg.Role == RoleTool {
			m.ToolCallID = msg.CallID
		}
		out = append(out, m)
	}
	return out
}

// parseArguments decodes the JSON-string argument payload. Malformed
// payloads degrade to an empty argument set rather than failing the turn.
func parseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
