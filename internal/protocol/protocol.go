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

// Package protocol defines the JSON-RPC style wire protocol spoken between
// the VirtualSRE operation server and its transports.
package protocol

import "encoding/json"

// Version is the JSON-RPC protocol version stamped on every envelope.
const Version = "2.0"

// Protocol methods.
const (
	MethodListOperations = "operations/list"
	MethodCallOperation  = "operations/call"
)

// HTTP paths served by the SSE and HTTP transports.
const (
	PathHealth  = "/health"
	PathMetrics = "/metrics"

	PathSSEList = "/sse/operations/list"
	PathSSECall = "/sse/operations/call"

	PathAPIList = "/api/operations/list"
	PathAPICall = "/api/operations/call"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is the JSON-RPC request envelope. IDs are assigned by the client,
// monotonically increasing per connection starting at 1, and never reused.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Response is the JSON-RPC response envelope. Exactly one of Result and
// Error is set on a well-formed response; the request ID is echoed back.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the error member of a response envelope.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// CallParams carries the parameters of an operations/call request.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ListResult is the result payload of an operations/list response.
type ListResult struct {
	Operations []OperationDescriptor `json:"operations"`
}

// OperationDescriptor describes a remotely invocable operation. It is
// produced once per server session by operations/list and read-only
// afterward.
type OperationDescriptor struct {
	// Name is the operation's unique identifier within a server.
	Name string `json:"name"`

	// Description describes what the operation does.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON Schema for the operation's arguments.
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}
