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

// Package server implements the operations endpoint: an operation registry
// dispatched over line-delimited JSON on standard streams, SSE, or plain
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// Handler executes one operation.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Operation is a registered operation with its argument schema.
type Operation struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// InvalidArgsError reports arguments rejected by an operation's schema.
// The dispatcher maps it to an invalid-params protocol error.
type InvalidArgsError struct {
	Operation  string
	Violations []string
}

func (e *InvalidArgsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Operation, strings.Join(e.Violations, "; "))
}

// UnknownOperationError reports a call to an unregistered operation. The
// dispatcher maps it to a method-not-found protocol error.
type UnknownOperationError struct {
	Operation string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Operation)
}

// Registry holds the operations an endpoint exposes.
type Registry struct {
	mu         sync.RWMutex
	operations map[string]*registered
}

type registered struct {
	op     Operation
	schema *gojsonschema.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{operations: make(map[string]*registered)}
}

// Register adds an operation. Registration fails on duplicate names or an
// input schema that is not itself valid JSON Schema.
func (r *Registry) Register(op Operation) error {
	if op.Name == "" {
		return fmt.Errorf("operation name must not be empty")
	}
	if op.Handler == nil {
		return fmt.Errorf("operation %s has no handler", op.Name)
	}

	var compiled *gojsonschema.Schema
	if len(op.InputSchema) > 0 {
		raw, err := json.Marshal(op.InputSchema)
		if err != nil {
			return fmt.Errorf("failed to marshal schema for %s: %w", op.Name, err)
		}
		compiled, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return fmt.Errorf("invalid schema for %s: %w", op.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.operations[op.Name]; exists {
		return fmt.Errorf("operation %s already registered", op.Name)
	}
	r.operations[op.Name] = &registered{op: op, schema: compiled}
	return nil
}

// MustRegister is Register that panics on error, for static wiring at
// startup.
func (r *Registry) MustRegister(ops ...Operation) {
	for _, op := range ops {
		if err := r.Register(op); err != nil {
			panic(err)
		}
	}
}

// Descriptors lists the registered operations sorted by name.
func (r *Registry) Descriptors() []protocol.OperationDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.OperationDescriptor, 0, len(r.operations))
	for _, reg := range r.operations {
		out = append(out, protocol.OperationDescriptor{
			Name:        reg.op.Name,
			Description: reg.op.Description,
			InputSchema: reg.op.InputSchema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call validates arguments against the operation's schema and executes its
// handler.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	reg, ok := r.operations[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownOperationError{Operation: name}
	}

	if args == nil {
		args = map[string]any{}
	}

	if reg.schema != nil {
		result, err := reg.schema.Validate(gojsonschema.NewGoLoader(args))
		if err != nil {
			return nil, fmt.Errorf("argument validation error for %s: %w", name, err)
		}
		if !result.Valid() {
			violations := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				violations = append(violations, desc.String())
			}
			return nil, &InvalidArgsError{Operation: name, Violations: violations}
		}
	}

	return reg.op.Handler(ctx, args)
}
