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
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/virtualsre/virtualsre/internal/bridge"
	"github.com/virtualsre/virtualsre/internal/protocol"
)

const bedrockDefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

// converseClient is the slice of the Bedrock runtime client the provider
// needs; satisfied by *bedrockruntime.Client.
type converseClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider binds the loop to the Bedrock Converse API.
type BedrockProvider struct {
	client  converseClient
	modelID string
}

// BedrockOption configures the Bedrock provider.
type BedrockOption func(*BedrockProvider)

// WithModelID sets the Bedrock model identifier.
func WithModelID(id string) BedrockOption {
	return func(p *BedrockProvider) {
		p.modelID = id
	}
}

// WithConverseClient sets a custom Converse client, for tests.
func WithConverseClient(client converseClient) BedrockOption {
	return func(p *BedrockProvider) {
		p.client = client
	}
}

// NewBedrockProvider creates a new Bedrock provider over the given AWS
// configuration.
func NewBedrockProvider(cfg aws.Config, opts ...BedrockOption) *BedrockProvider {
	p := &BedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: bedrockDefaultModel,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name implements the Provider interface.
func (p *BedrockProvider) Name() string { return "bedrock" }

// Decide implements the Provider interface.
func (p *BedrockProvider) Decide(ctx context.Context, messages []Message, operations []protocol.OperationDescriptor) (*Decision, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.modelID),
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: msg.Content})
		case RoleUser:
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Content}},
			})
		case RoleAssistant:
			input.Messages = append(input.Messages, toBedrockAssistant(msg))
		case RoleTool:
			input.Messages = append(input.Messages, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(msg.CallID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{Value: msg.Content},
						},
					},
				}},
			})
		}
	}

	if len(operations) > 0 {
		toolConfig := &types.ToolConfiguration{}
		for _, op := range operations {
			converted := bridge.ToBedrock(op).ToolSpec
			toolConfig.Tools = append(toolConfig.Tools, &types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        aws.String(converted.Name),
					Description: aws.String(converted.Description),
					InputSchema: &types.ToolInputSchemaMemberJson{
						Value: document.NewLazyDocument(converted.InputSchema.JSON),
					},
				},
			})
		}
		input.ToolConfig = toolConfig
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("Bedrock converse failed: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected Bedrock output type %T", out.Output)
	}

	decision := &Decision{}
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			decision.Text += b.Value
		case *types.ContentBlockMemberToolUse:
			call := Call{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: map[string]any{},
			}
			if b.Value.Input != nil {
				var args map[string]any
				if err := b.Value.Input.UnmarshalSmithyDocument(&args); err == nil && args != nil {
					call.Arguments = args
				}
			}
			decision.Calls = append(decision.Calls, call)
		}
	}

	if out.StopReason != types.StopReasonToolUse {
		decision.Calls = nil
	}

	return decision, nil
}

// toBedrockAssistant rebuilds an assistant message, replaying any tool-use
// blocks so results can reference them by id.
func toBedrockAssistant(msg Message) types.Message {
	var content []types.ContentBlock
	if msg.Content != "" {
		content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
	}
	for _, call := range msg.Calls {
		content = append(content, &types.ContentBlockMemberToolUse{
			Value: types.ToolUseBlock{
				ToolUseId: aws.String(call.ID),
				Name:      aws.String(call.Name),
				Input:     document.NewLazyDocument(call.Arguments),
			},
		})
	}
	if len(content) == 0 {
		content = append(content, &types.ContentBlockMemberText{Value: " "})
	}
	return types.Message{Role: types.ConversationRoleAssistant, Content: content}
}
