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
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// Dispatcher routes decoded protocol requests to the operation registry.
type Dispatcher struct {
	registry *Registry
	metrics  *Metrics
	log      logr.Logger
}

// NewDispatcher creates a dispatcher over a registry. metrics may be nil.
func NewDispatcher(registry *Registry, metrics *Metrics, log logr.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		metrics:  metrics,
		log:      log.WithName("dispatch"),
	}
}

// DispatchRaw decodes one request payload and dispatches it. Undecodable
// payloads produce a parse-error response with a zero id.
func (d *Dispatcher) DispatchRaw(ctx context.Context, payload []byte) protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		d.log.V(1).Info("undecodable request", "error", err.Error())
		return errorResponse(0, protocol.CodeParseError, "parse error", err.Error())
	}
	return d.Dispatch(ctx, req)
}

// Dispatch executes one protocol request and builds its response.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	if d.metrics != nil {
		d.metrics.RequestsTotal.WithLabelValues(req.Method).Inc()
	}

	switch req.Method {
	case protocol.MethodListOperations:
		return d.list(req)
	case protocol.MethodCallOperation:
		return d.call(ctx, req)
	default:
		d.log.V(1).Info("unknown method", "method", req.Method, "id", req.ID)
		return errorResponse(req.ID, protocol.CodeMethodNotFound, "method not found", req.Method)
	}
}

func (d *Dispatcher) list(req protocol.Request) protocol.Response {
	return resultResponse(req.ID, protocol.ListResult{Operations: d.registry.Descriptors()})
}

func (d *Dispatcher) call(ctx context.Context, req protocol.Request) protocol.Response {
	params, err := decodeCallParams(req.Params)
	if err != nil {
		return errorResponse(req.ID, protocol.CodeInvalidParams, "invalid params", err.Error())
	}

	start := time.Now()
	result, err := d.registry.Call(ctx, params.Name, params.Arguments)
	if d.metrics != nil {
		d.metrics.ObserveCall(params.Name, start, err)
	}

	if err != nil {
		d.log.Info("operation call failed", "operation", params.Name, "error", err.Error())

		var unknown *UnknownOperationError
		if errors.As(err, &unknown) {
			return errorResponse(req.ID, protocol.CodeMethodNotFound, "unknown operation", unknown.Operation)
		}
		var invalid *InvalidArgsError
		if errors.As(err, &invalid) {
			return errorResponse(req.ID, protocol.CodeInvalidParams, "invalid arguments", invalid.Violations)
		}
		return errorResponse(req.ID, protocol.CodeInternalError, err.Error(), nil)
	}

	d.log.V(1).Info("operation call completed", "operation", params.Name, "duration", time.Since(start).String())
	return resultResponse(req.ID, result)
}

// decodeCallParams re-decodes the loosely typed params member into call
// parameters.
func decodeCallParams(params any) (protocol.CallParams, error) {
	var out protocol.CallParams
	raw, err := json.Marshal(params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	if out.Name == "" {
		return out, errors.New("missing operation name")
	}
	return out, nil
}

func resultResponse(id int64, result any) protocol.Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, protocol.CodeInternalError, "failed to serialize result", err.Error())
	}
	return protocol.Response{JSONRPC: protocol.Version, ID: id, Result: raw}
}

func errorResponse(id int64, code int, message string, data any) protocol.Response {
	obj := &protocol.ErrorObject{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			obj.Data = raw
		}
	}
	return protocol.Response{JSONRPC: protocol.Version, ID: id, Error: obj}
}
