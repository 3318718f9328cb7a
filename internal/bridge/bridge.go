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

// Package bridge converts operation descriptors into the tool schemas the
// reasoning-engine providers accept. Conversion is total: defaults cover
// every absent field, so it never fails.
package bridge

import (
	"fmt"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// OpenAITool is the OpenAI function-calling tool shape.
type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAIFunction is the function member of an OpenAI tool.
type OpenAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// BedrockTool is the Bedrock Converse toolSpec shape.
type BedrockTool struct {
	ToolSpec BedrockToolSpec `json:"toolSpec"`
}

// BedrockToolSpec is the tool specification member of a Bedrock tool.
type BedrockToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema BedrockInputSchema `json:"inputSchema"`
}

// BedrockInputSchema wraps the JSON schema the way Converse expects.
type BedrockInputSchema struct {
	JSON map[string]any `json:"json"`
}

// ToOpenAI converts a descriptor to the OpenAI function-calling shape.
func ToOpenAI(op protocol.OperationDescriptor) OpenAITool {
	return OpenAITool{
		Type: "function",
		Function: OpenAIFunction{
			Name:        op.Name,
			Description: defaultDescription(op),
			Parameters:  defaultSchema(op),
		},
	}
}

// ToBedrock converts a descriptor to the Bedrock Converse toolSpec shape.
func ToBedrock(op protocol.OperationDescriptor) BedrockTool {
	return BedrockTool{
		ToolSpec: BedrockToolSpec{
			Name:        op.Name,
			Description: defaultDescription(op),
			InputSchema: BedrockInputSchema{JSON: defaultSchema(op)},
		},
	}
}

// FromOpenAI recovers a descriptor from the OpenAI tool shape.
func FromOpenAI(tool OpenAITool) protocol.OperationDescriptor {
	return protocol.OperationDescriptor{
		Name:        tool.Function.Name,
		Description: tool.Function.Description,
		InputSchema: tool.Function.Parameters,
	}
}

// FromBedrock recovers a descriptor from the Bedrock toolSpec shape.
func FromBedrock(tool BedrockTool) protocol.OperationDescriptor {
	return protocol.OperationDescriptor{
		Name:        tool.ToolSpec.Name,
		Description: tool.ToolSpec.Description,
		InputSchema: tool.ToolSpec.InputSchema.JSON,
	}
}

func defaultDescription(op protocol.OperationDescriptor) string {
	if op.Description != "" {
		return op.Description
	}
	return fmt.Sprintf("Execute %s", op.Name)
}

func defaultSchema(op protocol.OperationDescriptor) map[string]any {
	if op.InputSchema != nil {
		return op.InputSchema
	}
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []any{},
	}
}
