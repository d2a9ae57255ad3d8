package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rybuilt/humelink/internal/observability"
)

// AnthropicBackend implements Backend against the Anthropic API
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend creates a new Anthropic backend
func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	observability.EnsureRegistered()

	return &AnthropicBackend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the backend name
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// Complete makes a single non-streaming call and returns the final message
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	params := b.buildParams(req)

	message, err := b.client.Messages.New(ctx, params)
	if err != nil {
		observability.RecordModelCall(false)
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	observability.RecordModelCall(true)

	return responseFromMessage(message)
}

// Stream opens a streaming call. The returned Stream yields text
// fragments as they arrive and accumulates the final message.
func (b *AnthropicBackend) Stream(ctx context.Context, req Request) (Stream, error) {
	params := b.buildParams(req)

	raw := b.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{raw: raw}, nil
}

type anthropicStream struct {
	raw  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	acc  anthropic.Message
	text string
	err  error
	done bool
}

func (s *anthropicStream) Next() bool {
	if s.done {
		return false
	}

	for s.raw.Next() {
		event := s.raw.Current()
		if err := s.acc.Accumulate(event); err != nil {
			s.err = err
			s.done = true
			return false
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				s.text = delta.Text
				return true
			}
		}
	}

	s.err = s.raw.Err()
	s.done = true
	return false
}

func (s *anthropicStream) Text() string {
	return s.text
}

func (s *anthropicStream) Final() (*Response, error) {
	if s.err != nil {
		observability.RecordModelCall(false)
		return nil, fmt.Errorf("model stream failed: %w", s.err)
	}
	observability.RecordModelCall(true)

	return responseFromMessage(&s.acc)
}

// buildParams converts the generic request into SDK parameters. System
// turns never appear in the message sequence (they are folded into the
// system prompt upstream); consecutive tool-result turns are coalesced
// into a single user message so every correlation token is answered in
// the turn that follows its request.
func (b *AnthropicBackend) buildParams(req Request) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam

	for i := 0; i < len(req.Messages); i++ {
		msg := req.Messages[i]

		switch msg.Role {
		case RoleSystem:
			continue

		case RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			for ; i < len(req.Messages) && req.Messages[i].Role == RoleTool; i++ {
				tr := req.Messages[i]
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, false))
			}
			i--
			messages = append(messages, anthropic.NewUserMessage(blocks...))

		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				var blocks []anthropic.ContentBlockParamUnion
				if msg.Content != "" {
					blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Input, tc.Name))
				}
				messages = append(messages, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: blocks,
				})
				continue
			}
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})

		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokens),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	if len(req.Tools) > 0 {
		var toolParams []anthropic.ToolUnionParam
		for _, decl := range req.Tools {
			toolParam := anthropic.ToolParam{
				Name:        decl.Name,
				Description: anthropic.String(decl.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: decl.InputSchema["properties"],
				},
			}

			if required, ok := decl.InputSchema["required"].([]string); ok {
				toolParam.InputSchema.Required = required
			}

			toolParams = append(toolParams, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = toolParams
	}

	return params
}

// responseFromMessage extracts ordered text blocks and tool calls
func responseFromMessage(message *anthropic.Message) (*Response, error) {
	resp := &Response{
		StopReason: StopReason(message.StopReason),
	}

	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.TextBlocks = append(resp.TextBlocks, b.Text)
		case anthropic.ToolUseBlock:
			var input map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &input); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:    b.ID,
				Name:  b.Name,
				Input: input,
			})
		}
	}

	return resp, nil
}
