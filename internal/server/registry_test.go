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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoOperation(name string) Operation {
	return Operation{
		Name:        name,
		Description: "echo",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{"type": "string"},
			},
			"required": []any{"value"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return args["value"], nil
		},
	}
}

func TestRegistryRegisterAndCall(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoOperation("echo")))

	result, err := r.Call(context.Background(), "echo", map[string]any{"value": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoOperation("echo")))

	err := r.Register(echoOperation("echo"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryUnknownOperation(t *testing.T) {
	r := NewRegistry()

	_, err := r.Call(context.Background(), "absent", nil)
	var unknown *UnknownOperationError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "absent", unknown.Operation)
}

func TestRegistrySchemaViolation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoOperation("echo")))

	_, err := r.Call(context.Background(), "echo", map[string]any{"value": 42})
	var invalid *InvalidArgsError
	require.ErrorAs(t, err, &invalid)
	assert.NotEmpty(t, invalid.Violations)

	_, err = r.Call(context.Background(), "echo", nil)
	require.ErrorAs(t, err, &invalid)
}

func TestRegistryNoSchemaAcceptsAnything(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Operation{
		Name: "free",
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return len(args), nil
		},
	}))

	result, err := r.Call(context.Background(), "free", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result)
}

func TestRegistryDescriptorsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoOperation("zulu")))
	require.NoError(t, r.Register(echoOperation("alpha")))

	descriptors := r.Descriptors()
	require.Len(t, descriptors, 2)
	assert.Equal(t, "alpha", descriptors[0].Name)
	assert.Equal(t, "zulu", descriptors[1].Name)
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Operation{Name: "", Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }}))
	assert.Error(t, r.Register(Operation{Name: "nohandler"}))
}
