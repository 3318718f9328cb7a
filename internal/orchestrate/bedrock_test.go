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
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

type stubConverse struct {
	output *bedrockruntime.ConverseOutput
	err    error
	input  *bedrockruntime.ConverseInput
}

func (s *stubConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.input = params
	return s.output, s.err
}

func newBedrockForTest(stub *stubConverse) *BedrockProvider {
	return NewBedrockProvider(aws.Config{}, WithConverseClient(stub))
}

func TestBedrockDecideTextAnswer(t *testing.T) {
	stub := &stubConverse{output: &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonEndTurn,
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "hello"}},
		}},
	}}

	decision, err := newBedrockForTest(stub).Decide(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "hello", decision.Text)
	assert.Empty(t, decision.Calls)

	// The system entry travels as system content, not as a message.
	require.Len(t, stub.input.System, 1)
	require.Len(t, stub.input.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, stub.input.Messages[0].Role)
	assert.Equal(t, bedrockDefaultModel, aws.ToString(stub.input.ModelId))
}

func TestBedrockDecideToolUse(t *testing.T) {
	stub := &stubConverse{output: &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonToolUse,
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "checking"},
				&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String("use-1"),
					Name:      aws.String("list_pods"),
					Input:     document.NewLazyDocument(map[string]any{"namespace": "default"}),
				}},
			},
		}},
	}}

	ops := []protocol.OperationDescriptor{{Name: "list_pods", Description: "List pods"}}
	decision, err := newBedrockForTest(stub).Decide(context.Background(), []Message{{Role: RoleUser, Content: "pods?"}}, ops)
	require.NoError(t, err)

	assert.Equal(t, "checking", decision.Text)
	require.Len(t, decision.Calls, 1)
	assert.Equal(t, "use-1", decision.Calls[0].ID)
	assert.Equal(t, "list_pods", decision.Calls[0].Name)
	assert.Equal(t, map[string]any{"namespace": "default"}, decision.Calls[0].Arguments)

	require.NotNil(t, stub.input.ToolConfig)
	require.Len(t, stub.input.ToolConfig.Tools, 1)
	spec, ok := stub.input.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, "list_pods", aws.ToString(spec.Value.Name))
}

func TestBedrockDecideReplaysToolResults(t *testing.T) {
	stub := &stubConverse{output: &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonEndTurn,
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "done"}},
		}},
	}}

	_, err := newBedrockForTest(stub).Decide(context.Background(), []Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Calls: []Call{{ID: "use-1", Name: "list_pods", Arguments: map[string]any{}}}},
		{Role: RoleTool, CallID: "use-1", Content: `["web-0"]`},
	}, nil)
	require.NoError(t, err)

	require.Len(t, stub.input.Messages, 3)
	assert.Equal(t, types.ConversationRoleAssistant, stub.input.Messages[1].Role)

	// Tool results travel as user-role tool_result blocks.
	assert.Equal(t, types.ConversationRoleUser, stub.input.Messages[2].Role)
	result, ok := stub.input.Messages[2].Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "use-1", aws.ToString(result.Value.ToolUseId))
}

func TestBedrockDecideIgnoresCallsWithoutStopReason(t *testing.T) {
	// A tool_use block without the matching stop reason is treated as a
	// final answer.
	stub := &stubConverse{output: &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonMaxTokens,
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "partial"},
				&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String("use-1"),
					Name:      aws.String("list_pods"),
				}},
			},
		}},
	}}

	decision, err := newBedrockForTest(stub).Decide(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, decision.Calls)
	assert.Equal(t, "partial", decision.Text)
}
