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

// Package transport implements the client side of the operation server
// protocol over three interchangeable carriers: a local subprocess with
// piped stdin/stdout, HTTP with server-sent-event streaming, and plain
// HTTP request/response.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// ErrNotConnected is returned when an operation is attempted on a transport
// that has not completed Connect or has already been disconnected.
var ErrNotConnected = errors.New("not connected to operation server")

// RemoteError is a well-formed error member returned by the far side. It is
// distinct from an error marker carried inside a result payload, which is
// data and flows through Invoke unchanged.
type RemoteError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// ProtocolError indicates a malformed response envelope or a carrier-level
// failure such as an unexpected HTTP status.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// Transport is the channel-specific client for the operation server. A
// transport owns exactly one connection; Connect must complete before any
// other call, and Disconnect is idempotent.
type Transport interface {
	// Connect establishes the channel. Failure to connect is an expected
	// condition reported as an error, never a panic.
	Connect(ctx context.Context) error

	// Disconnect tears the channel down. No-op when already disconnected.
	Disconnect() error

	// ListOperations fetches the server's operation descriptors.
	ListOperations(ctx context.Context) ([]protocol.OperationDescriptor, error)

	// Invoke calls a named operation and returns its decoded result payload.
	// An {"error": ...} object inside the payload is a valid result; a
	// *RemoteError return means the far side rejected the call itself.
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// decodeEnvelope parses one response envelope and splits it into its result
// payload or the corresponding error kind.
func decodeEnvelope(data []byte) (json.RawMessage, error) {
	var resp protocol.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed response: %v", err)}
	}
	return splitEnvelope(&resp)
}

// splitEnvelope maps a parsed envelope to its result or error kind.
func splitEnvelope(resp *protocol.Response) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, &RemoteError{
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Data:    resp.Error.Data,
		}
	}
	if resp.Result == nil {
		return nil, &ProtocolError{Reason: "response carries neither result nor error"}
	}
	return resp.Result, nil
}

// decodeOperations extracts the operations array from a list result payload.
func decodeOperations(result json.RawMessage) ([]protocol.OperationDescriptor, error) {
	var list protocol.ListResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed operations list: %v", err)}
	}
	return list.Operations, nil
}

// decodeResult decodes an arbitrary result payload into its Go value.
func decodeResult(result json.RawMessage) (any, error) {
	var value any
	if err := json.Unmarshal(result, &value); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed result payload: %v", err)}
	}
	return value, nil
}
