package model

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rybuilt/humelink/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParams(t *testing.T) {
	backend := NewAnthropicBackend("sk-test")

	t.Run("should carry system prompt, model and token budget", func(t *testing.T) {
		params := backend.buildParams(Request{
			Model:     "claude-haiku-4-5",
			System:    "Be brief.",
			MaxTokens: 1000,
			Messages:  []Message{{Role: RoleUser, Content: "Hi"}},
		})

		assert.Equal(t, anthropic.Model("claude-haiku-4-5"), params.Model)
		assert.Equal(t, int64(1000), params.MaxTokens)
		require.Len(t, params.System, 1)
		assert.Equal(t, "Be brief.", params.System[0].Text)
		require.Len(t, params.Messages, 1)
		assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
	})

	t.Run("should skip system-role messages in the sequence", func(t *testing.T) {
		params := backend.buildParams(Request{
			Model:     "m",
			MaxTokens: 100,
			Messages: []Message{
				{Role: RoleSystem, Content: "ignored"},
				{Role: RoleUser, Content: "Hi"},
			},
		})

		require.Len(t, params.Messages, 1)
	})

	t.Run("should coalesce consecutive tool results into one user turn", func(t *testing.T) {
		params := backend.buildParams(Request{
			Model:     "m",
			MaxTokens: 100,
			Messages: []Message{
				{Role: RoleUser, Content: "Hi"},
				{
					Role:    RoleAssistant,
					Content: "Let me check.",
					ToolCalls: []ToolCall{
						{ID: "toolu_1", Name: "get_memory", Input: map[string]interface{}{"key": "a"}},
						{ID: "toolu_2", Name: "list_memories", Input: map[string]interface{}{}},
					},
				},
				{Role: RoleTool, ToolCallID: "toolu_1", Content: "value-a"},
				{Role: RoleTool, ToolCallID: "toolu_2", Content: "No memories stored yet."},
				{Role: RoleUser, Content: "Thanks"},
			},
		})

		require.Len(t, params.Messages, 4)

		assistant := params.Messages[1]
		assert.Equal(t, anthropic.MessageParamRoleAssistant, assistant.Role)
		require.Len(t, assistant.Content, 3)
		require.NotNil(t, assistant.Content[0].OfText)
		assert.Equal(t, "Let me check.", assistant.Content[0].OfText.Text)
		require.NotNil(t, assistant.Content[1].OfToolUse)
		assert.Equal(t, "toolu_1", assistant.Content[1].OfToolUse.ID)

		results := params.Messages[2]
		assert.Equal(t, anthropic.MessageParamRoleUser, results.Role)
		require.Len(t, results.Content, 2)
		require.NotNil(t, results.Content[0].OfToolResult)
		assert.Equal(t, "toolu_1", results.Content[0].OfToolResult.ToolUseID)
		require.NotNil(t, results.Content[1].OfToolResult)
		assert.Equal(t, "toolu_2", results.Content[1].OfToolResult.ToolUseID)

		assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[3].Role)
	})

	t.Run("should declare the full tool listing", func(t *testing.T) {
		params := backend.buildParams(Request{
			Model:     "m",
			MaxTokens: 100,
			Messages:  []Message{{Role: RoleUser, Content: "Hi"}},
			Tools:     tools.Declarations(),
		})

		require.Len(t, params.Tools, 6)
		require.NotNil(t, params.Tools[0].OfTool)
		assert.Equal(t, tools.NameSaveMemory, params.Tools[0].OfTool.Name)
		assert.Equal(t, []string{"key", "value"}, params.Tools[0].OfTool.InputSchema.Required)
	})
}

func TestResponseText(t *testing.T) {
	resp := &Response{TextBlocks: []string{"Hello", " there"}}
	assert.Equal(t, "Hello there", resp.Text())
}
